package domain

import "errors"

var (
	ErrInvalidRoomID       = errors.New("invalid room id")
	ErrRoomNotFound        = errors.New("room not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrRelayTargetGone     = errors.New("relay target gone")
	ErrUnsupportedMessage  = errors.New("unsupported message type")
	ErrInvalidMessage      = errors.New("invalid message")
	ErrNotInRoom           = errors.New("connection has not joined a room")

	ErrMediaAccessDenied  = errors.New("media access denied")
	ErrNegotiationFailed  = errors.New("negotiation failed")
	ErrGatewayUnreachable = errors.New("gateway unreachable")
)
