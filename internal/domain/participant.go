package domain

import "time"

// UserInfo is the display identity handed over by the identity provider.
type UserInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

type MediaState struct {
	Audio       bool `json:"audio"`
	Video       bool `json:"video"`
	ScreenShare bool `json:"screenShare"`
}

// DefaultMediaState is what a participant publishes right after joining.
func DefaultMediaState() MediaState {
	return MediaState{Audio: true, Video: true}
}

// Participant is a live connection inside a room.
type Participant struct {
	ConnectionID string     `json:"id"`
	UserInfo     UserInfo   `json:"userInfo"`
	IsHost       bool       `json:"isHost"`
	JoinedAt     time.Time  `json:"joinedAt"`
	MediaState   MediaState `json:"mediaState"`
}

func NewParticipant(connectionID string, info UserInfo, joinedAt time.Time) *Participant {
	return &Participant{
		ConnectionID: connectionID,
		UserInfo:     info,
		JoinedAt:     joinedAt.UTC(),
		MediaState:   DefaultMediaState(),
	}
}

// JoinedBefore orders participants by join time, falling back to the
// connection id so both ends of a pair agree on the order.
func (p Participant) JoinedBefore(other Participant) bool {
	if !p.JoinedAt.Equal(other.JoinedAt) {
		return p.JoinedAt.Before(other.JoinedAt)
	}
	return p.ConnectionID < other.ConnectionID
}
