package domain

import (
	"time"

	"github.com/pion/webrtc/v3"
)

const (
	MessageJoinRoom           = "join-room"
	MessageRoomJoined         = "room-joined"
	MessageUserJoined         = "user-joined"
	MessageOffer              = "offer"
	MessageAnswer             = "answer"
	MessageICECandidate       = "ice-candidate"
	MessageNewMessage         = "new-message"
	MessageUserMediaChanged   = "user-media-changed"
	MessageScreenShareStarted = "screen-share-started"
	MessageScreenShareStopped = "screen-share-stopped"
	MessageLeaveRoom          = "leave-room"
	MessageUserLeft           = "user-left"
	MessageHostChanged        = "host-changed"
	MessageError              = "error"
)

// SignalMessage is the single envelope used in both directions on the
// signaling socket. Only the fields relevant to Type are populated.
type SignalMessage struct {
	Type           string                     `json:"type"`
	RoomID         string                     `json:"roomId,omitempty"`
	SelfID         string                     `json:"selfId,omitempty"`
	SenderID       string                     `json:"senderId,omitempty"`
	TargetID       string                     `json:"targetId,omitempty"`
	SDP            *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate      *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
	UserInfo       *UserInfo                  `json:"userInfo,omitempty"`
	IsCreatingRoom bool                       `json:"isCreatingRoom,omitempty"`
	IsHost         bool                       `json:"isHost,omitempty"`
	HostID         string                     `json:"hostId,omitempty"`
	Participants   []Participant              `json:"participants,omitempty"`
	Messages       []ChatMessage              `json:"messages,omitempty"`
	MessageID      int64                      `json:"id,omitempty"`
	Text           string                     `json:"text,omitempty"`
	Sender         *ChatSender                `json:"sender,omitempty"`
	Timestamp      *time.Time                 `json:"timestamp,omitempty"`
	MediaState     *MediaState                `json:"mediaState,omitempty"`
	Error          string                     `json:"error,omitempty"`
}

// IsRelay reports whether the message is forwarded between clients untouched.
func (m SignalMessage) IsRelay() bool {
	switch m.Type {
	case MessageOffer, MessageAnswer, MessageICECandidate:
		return true
	}
	return false
}

func ErrorMessage(err error) SignalMessage {
	return SignalMessage{Type: MessageError, Error: err.Error()}
}
