// Package connection owns the websocket to the chat server.
//
// A Conn negotiates capabilities, logs in, and then yields parsed messages from
// Next. PINGs are answered internally. With keep-alive enabled, transport
// failures on either the read or the write side route through Restart, which
// waits out the reconnect Backoff and redials. Overlapping restarts share one
// in-flight attempt.
package connection
