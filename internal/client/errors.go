package client

import (
	"errors"
	"fmt"
)

var (
	ErrSessionClosed  = errors.New("session closed")
	ErrNoLocalMedia   = errors.New("local media not started")
	ErrAlreadySharing = errors.New("screen share already active")
	ErrClientClosed   = errors.New("signaling client closed")
)

// PeerError ties a failure to the remote participant it happened with.
type PeerError struct {
	Peer string
	Op   string
	Err  error
}

func (e *PeerError) Error() string {
	if e.Peer != "" {
		return fmt.Sprintf("%s with %s: %v", e.Op, e.Peer, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PeerError) Unwrap() error {
	return e.Err
}

func newPeerError(peer, op string, err error) *PeerError {
	return &PeerError{Peer: peer, Op: op, Err: err}
}
