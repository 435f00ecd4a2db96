/*
Package ports defines the driven ports (interfaces) of the courier dispatcher.

These interfaces decouple the dispatch pipeline from platform adapters and storage
backends.

# Key Interfaces

  - Connector: translates a platform's webhook deliveries into Events and builds Contexts.
  - SessionStore: persists and loads Sessions.
  - DistributedLocker: extends session exclusivity across replicas.
*/
package ports
