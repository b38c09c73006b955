package client

import (
	"github.com/immxrtalbeast/axenix_call/internal/domain"
	"github.com/pion/webrtc/v3"
)

// PeerConnection is the slice of a WebRTC peer connection the session state
// machine drives. The pion adapter implements it for real calls.
type PeerConnection interface {
	CreateOffer(iceRestart bool) (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	// Rollback discards a local offer that has not been answered.
	Rollback() error
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	AddTrack(track *LocalTrack) error
	RemoveTrack(track *LocalTrack) error
	Close() error
}

// PeerCallbacks are invoked by a PeerConnection from its own goroutines.
type PeerCallbacks struct {
	OnICECandidate          func(candidate webrtc.ICECandidateInit)
	OnConnectionStateChange func(state webrtc.PeerConnectionState)
	OnTrack                 func(track RemoteTrack)
}

type PeerConnectionFactory interface {
	NewPeerConnection(callbacks PeerCallbacks) (PeerConnection, error)
}

// RemoteTrack is a media track received from a remote participant.
type RemoteTrack struct {
	ID       string
	StreamID string
	Kind     TrackKind
	Remote   *webrtc.TrackRemote
}

// Renderer displays remote media. Rendering itself is outside this package.
type Renderer interface {
	Attach(participantID string, track RemoteTrack)
	Release(participantID string)
}

// Signaler delivers envelopes to the signaling gateway.
type Signaler interface {
	Send(message domain.SignalMessage) error
}
