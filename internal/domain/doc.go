// Package domain defines the entities and event payloads of the chat client.
//
// Channel and the identity states are the materialized view of joined rooms and of
// this client's own account. Event payload types are what registered handlers
// receive. errors.go holds the error taxonomy shared across packages.
package domain
