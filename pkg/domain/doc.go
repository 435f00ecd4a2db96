/*
Package domain holds the platform-neutral types shared by every layer of courier.

# Key Types

  - Event: one normalized unit of platform activity derived from a webhook delivery.
  - Session: durable per-conversation state keyed by a platform-derived identity.
  - User: immutable identity snapshot attached to a Session.
  - Request / Response: the HTTP-shaped envelope a Connector inspects and answers.

The package also defines the error taxonomy (validation, mapping, handler, lock timeout)
and the lifecycle hooks used for observability.
*/
package domain
