package converter

import (
	"time"

	"github.com/immxrtalbeast/axenix_call/internal/config"
	"github.com/immxrtalbeast/axenix_call/internal/domain"
	"github.com/immxrtalbeast/axenix_call/internal/service"
	"github.com/pion/webrtc/v3"
)

type RoomResponse struct {
	ID           string                `json:"id"`
	CreatedAt    time.Time             `json:"created_at"`
	EmptySince   *time.Time            `json:"empty_since,omitempty"`
	HostID       string                `json:"host_id,omitempty"`
	Participants []ParticipantResponse `json:"participants"`
	MessageCount int                   `json:"message_count"`
}

type ParticipantResponse struct {
	ID         string            `json:"id"`
	UserID     string            `json:"user_id,omitempty"`
	Name       string            `json:"name"`
	Avatar     string            `json:"avatar,omitempty"`
	IsHost     bool              `json:"is_host"`
	JoinedAt   time.Time         `json:"joined_at"`
	MediaState domain.MediaState `json:"media_state"`
}

func RoomToApi(s *service.RoomSnapshot) *RoomResponse {
	participants := make([]ParticipantResponse, 0, len(s.Participants))
	for _, p := range s.Participants {
		participants = append(participants, ParticipantResponse{
			ID:         p.ConnectionID,
			UserID:     p.UserInfo.ID,
			Name:       p.UserInfo.Name,
			Avatar:     p.UserInfo.Avatar,
			IsHost:     p.IsHost,
			JoinedAt:   p.JoinedAt,
			MediaState: p.MediaState,
		})
	}

	return &RoomResponse{
		ID:           s.ID,
		CreatedAt:    s.CreatedAt,
		EmptySince:   s.EmptySince,
		HostID:       s.HostID,
		Participants: participants,
		MessageCount: s.MessageCount,
	}
}

// ICEServers turns the configured STUN and TURN urls into the structure
// browsers and pion both accept.
func ICEServers(cfg config.WebRTCConfig) []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, 2)
	if len(cfg.STUNServers) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: cfg.STUNServers})
	}
	if len(cfg.TURNServers) > 0 {
		servers = append(servers, webrtc.ICEServer{
			URLs:           cfg.TURNServers,
			Username:       cfg.TURNUsername,
			Credential:     cfg.TURNCredential,
			CredentialType: webrtc.ICECredentialTypePassword,
		})
	}
	return servers
}
