// Package client runs the chat read loop: it routes server messages to
// command handlers, keeps the channel tables, delays messages for channels
// that are not ready yet and dispatches registered event handlers.
package client
