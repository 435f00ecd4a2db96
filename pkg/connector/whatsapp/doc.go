/*
Package whatsapp implements the WhatsApp Business (Meta Cloud API) connector.

Deliveries are verified with the hub.* GET handshake and, when an app secret is
configured, the X-Hub-Signature-256 header. Each change of each entry yields its
messages first and then its statuses, in payload order. Replies go through the
Graph API messages endpoint of the configured phone number.
*/
package whatsapp
