package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrLoginFailed is fatal: the server rejected the credentials.
	ErrLoginFailed = errors.New("login failed")
	// ErrCapabilitiesRejected is fatal: the server NAK'd the capability request.
	ErrCapabilitiesRejected = errors.New("capabilities rejected")
	// ErrChannelNotPrepared means a handler needs a channel that is not ready yet.
	// It never leaves the client: the message is delayed instead.
	ErrChannelNotPrepared = errors.New("channel not prepared")
	// ErrUnknownEvent is returned when registering a handler for a name outside the catalog.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrNotACallback is returned when a handler has the wrong signature for its event.
	ErrNotACallback = errors.New("not a callback")
	// ErrConnectionClosed reports a clean, server-initiated close.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrNotConnected is returned by writes without a live socket and without keep-alive.
	ErrNotConnected = errors.New("not connected")
	// ErrNotRunning is returned by client operations that need the read loop.
	ErrNotRunning = errors.New("client not running")
)

// LoginError carries the server's notice text for a rejected login.
type LoginError struct {
	Notice string
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("%s: %s", ErrLoginFailed, e.Notice)
}

func (e *LoginError) Unwrap() error { return ErrLoginFailed }
