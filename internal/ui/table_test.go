package ui

import (
	"testing"
	"time"

	"github.com/immxrtalbeast/axenix_call/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestParticipantTableView(t *testing.T) {
	joined := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rows := []ParticipantRow{
		{
			Participant: domain.Participant{
				ConnectionID: "a",
				UserInfo:     domain.UserInfo{Name: "Alice"},
				IsHost:       true,
				JoinedAt:     joined,
				MediaState:   domain.MediaState{Audio: true, Video: true},
			},
			Self: true,
		},
		{
			Participant: domain.Participant{
				ConnectionID: "b",
				UserInfo:     domain.UserInfo{Name: "Bob"},
				JoinedAt:     joined.Add(time.Minute),
				MediaState:   domain.MediaState{Video: true, ScreenShare: true},
			},
			Session: "connected",
		},
	}

	view := ParticipantTableView(rows)
	assert.Contains(t, view, "Alice (you)")
	assert.Contains(t, view, IconHost)
	assert.Contains(t, view, "Bob")
	assert.Contains(t, view, "connected")
	assert.Contains(t, view, "screen")
	assert.Contains(t, view, "mic off")
}

func TestParticipantTableViewEmpty(t *testing.T) {
	assert.Contains(t, ParticipantTableView(nil), "Nobody here yet")
}

func TestMediaFlags(t *testing.T) {
	assert.Equal(t, "mic, cam", mediaFlags(domain.MediaState{Audio: true, Video: true}))
	assert.Equal(t, "mic off, cam off, screen", mediaFlags(domain.MediaState{ScreenShare: true}))
}

func TestChatLineView(t *testing.T) {
	line := ChatLineView(domain.ChatMessage{
		ID:        1,
		Text:      "hello there",
		Sender:    domain.ChatSender{Name: "Alice"},
		Timestamp: time.Now(),
	})
	assert.Contains(t, line, "Alice:")
	assert.Contains(t, line, "hello there")
}
