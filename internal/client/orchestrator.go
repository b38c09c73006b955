package client

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/immxrtalbeast/axenix_call/internal/domain"
	"github.com/immxrtalbeast/axenix_call/lib/logger/sl"
)

// Hooks let the embedding application observe the call. Every hook is
// optional. OnSessionState runs on a per-session goroutine and sees that
// session's transitions in order.
type Hooks struct {
	OnJoined       func(roomID, selfID string, isHost bool)
	OnParticipants func(participants []domain.Participant)
	OnChat         func(message domain.ChatMessage)
	OnSessionState func(remoteID string, state SessionState)
	OnError        func(err error)
}

// Orchestrator keeps one PeerSession per remote participant and routes
// signaling envelopes to them. For every pair the participant that joined
// first is the initiator and sends the offer.
type Orchestrator struct {
	log      *slog.Logger
	signaler Signaler
	factory  PeerConnectionFactory
	media    *MediaController
	renderer Renderer
	hooks    Hooks

	mu           sync.Mutex
	roomID       string
	selfID       string
	participants map[string]domain.Participant
	sessions     map[string]*PeerSession
}

// NewOrchestrator wires the orchestrator to its collaborators. media and
// renderer may be nil for a signaling-only participant.
func NewOrchestrator(log *slog.Logger, signaler Signaler, factory PeerConnectionFactory, media *MediaController, renderer Renderer, hooks Hooks) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	o := &Orchestrator{
		log:          log,
		signaler:     signaler,
		factory:      factory,
		media:        media,
		renderer:     renderer,
		hooks:        hooks,
		participants: make(map[string]domain.Participant),
		sessions:     make(map[string]*PeerSession),
	}
	if media != nil {
		media.bind(o)
	}
	return o
}

// Join asks the gateway to put this client into roomID.
func (o *Orchestrator) Join(roomID string, info domain.UserInfo, create bool) error {
	return o.signaler.Send(domain.SignalMessage{
		Type:           domain.MessageJoinRoom,
		RoomID:         roomID,
		UserInfo:       &info,
		IsCreatingRoom: create,
	})
}

func (o *Orchestrator) SendChat(text string) error {
	o.mu.Lock()
	roomID := o.roomID
	o.mu.Unlock()
	if roomID == "" {
		return domain.ErrNotInRoom
	}
	return o.signaler.Send(domain.SignalMessage{
		Type:   domain.MessageNewMessage,
		RoomID: roomID,
		Text:   text,
	})
}

// HandleMessage applies one envelope received from the gateway.
func (o *Orchestrator) HandleMessage(message domain.SignalMessage) error {
	const op = "client.orchestrator.handle"

	switch message.Type {
	case domain.MessageRoomJoined:
		o.roomJoined(message)
	case domain.MessageUserJoined, domain.MessageUserLeft, domain.MessageHostChanged,
		domain.MessageUserMediaChanged, domain.MessageScreenShareStarted, domain.MessageScreenShareStopped:
		o.syncParticipants(message.Participants)
	case domain.MessageOffer:
		if message.SDP == nil {
			return fmt.Errorf("%s: offer without sdp: %w", op, domain.ErrInvalidMessage)
		}
		session, err := o.session(message.SenderID)
		if err != nil {
			return err
		}
		return session.HandleOffer(*message.SDP)
	case domain.MessageAnswer:
		if message.SDP == nil {
			return fmt.Errorf("%s: answer without sdp: %w", op, domain.ErrInvalidMessage)
		}
		session := o.Session(message.SenderID)
		if session == nil {
			o.log.Debug("answer for unknown session", slog.String("remote_id", message.SenderID))
			return nil
		}
		return session.HandleAnswer(*message.SDP)
	case domain.MessageICECandidate:
		if message.Candidate == nil {
			return fmt.Errorf("%s: candidate missing: %w", op, domain.ErrInvalidMessage)
		}
		session, err := o.session(message.SenderID)
		if err != nil {
			return err
		}
		return session.HandleCandidate(*message.Candidate)
	case domain.MessageNewMessage:
		if o.hooks.OnChat != nil {
			chat := domain.ChatMessage{ID: message.MessageID, Text: message.Text}
			if message.Sender != nil {
				chat.Sender = *message.Sender
			}
			if message.Timestamp != nil {
				chat.Timestamp = *message.Timestamp
			}
			o.hooks.OnChat(chat)
		}
	case domain.MessageError:
		o.reportError(fmt.Errorf("gateway: %s", message.Error))
	default:
		o.log.Debug("ignoring message", slog.String("op", op), slog.String("type", message.Type))
	}
	return nil
}

func (o *Orchestrator) SelfID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.selfID
}

func (o *Orchestrator) RoomID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.roomID
}

// Participants returns the last known room roster in join order.
func (o *Orchestrator) Participants() []domain.Participant {
	o.mu.Lock()
	defer o.mu.Unlock()
	return sortedParticipants(o.participants)
}

func (o *Orchestrator) Session(remoteID string) *PeerSession {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessions[remoteID]
}

func (o *Orchestrator) Sessions() []*PeerSession {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*PeerSession, 0, len(o.sessions))
	for _, s := range o.sessions {
		out = append(out, s)
	}
	return out
}

// Close leaves the room, tears down every session and stops local media.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	roomID := o.roomID
	sessions := o.sessions
	o.sessions = make(map[string]*PeerSession)
	o.roomID = ""
	o.mu.Unlock()

	if roomID != "" {
		if err := o.signaler.Send(domain.SignalMessage{Type: domain.MessageLeaveRoom, RoomID: roomID}); err != nil {
			o.log.Debug("leave-room not delivered", sl.Err(err))
		}
	}
	for id, s := range sessions {
		s.Close()
		o.release(id)
	}
	if o.media != nil {
		o.media.Close()
	}
}

func (o *Orchestrator) roomJoined(message domain.SignalMessage) {
	o.mu.Lock()
	var stale map[string]*PeerSession
	if o.selfID != "" && o.selfID != message.SelfID {
		// Rejoined on a new connection; the old pairings are gone on the
		// other side too.
		stale = o.sessions
		o.sessions = make(map[string]*PeerSession)
	}
	o.roomID = message.RoomID
	o.selfID = message.SelfID
	o.mu.Unlock()

	for id, s := range stale {
		s.Close()
		o.release(id)
	}

	o.log.Info("joined room",
		slog.String("room_id", message.RoomID),
		slog.String("self_id", message.SelfID),
		slog.Bool("is_host", message.IsHost),
	)
	if o.hooks.OnJoined != nil {
		o.hooks.OnJoined(message.RoomID, message.SelfID, message.IsHost)
	}
	o.syncParticipants(message.Participants)
}

// syncParticipants reconciles sessions with the roster: departed participants
// lose their session, new ones get one, and the initiator side offers.
func (o *Orchestrator) syncParticipants(participants []domain.Participant) {
	if participants == nil {
		return
	}

	o.mu.Lock()
	current := make(map[string]domain.Participant, len(participants))
	for _, p := range participants {
		current[p.ConnectionID] = p
	}
	o.participants = current

	var gone []*PeerSession
	for id, s := range o.sessions {
		if _, ok := current[id]; !ok {
			gone = append(gone, s)
			delete(o.sessions, id)
		}
	}

	var toStart []*PeerSession
	if _, joined := current[o.selfID]; joined {
		for _, p := range participants {
			if p.ConnectionID == o.selfID {
				continue
			}
			if _, ok := o.sessions[p.ConnectionID]; ok {
				continue
			}
			s, err := o.newSessionLocked(p.ConnectionID)
			if err != nil {
				o.mu.Unlock()
				o.reportError(err)
				o.mu.Lock()
				continue
			}
			if s.Initiator {
				toStart = append(toStart, s)
			}
		}
	}
	o.mu.Unlock()

	for _, s := range gone {
		s.Close()
		o.release(s.RemoteID)
	}
	for _, s := range toStart {
		if err := s.Start(); err != nil {
			o.log.Warn("initial offer failed", slog.String("remote_id", s.RemoteID), sl.Err(err))
		}
	}
	if o.hooks.OnParticipants != nil {
		o.hooks.OnParticipants(participants)
	}
}

// session returns the session for remoteID, creating a passive one when a
// remote participant reaches us before the roster does.
func (o *Orchestrator) session(remoteID string) (*PeerSession, error) {
	if remoteID == "" {
		return nil, fmt.Errorf("client.orchestrator.session: sender missing: %w", domain.ErrInvalidMessage)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.sessions[remoteID]; ok {
		return s, nil
	}
	return o.newSessionLocked(remoteID)
}

func (o *Orchestrator) newSessionLocked(remoteID string) (*PeerSession, error) {
	initiator := false
	self, okSelf := o.participants[o.selfID]
	remote, okRemote := o.participants[remoteID]
	if okSelf && okRemote {
		initiator = self.JoinedBefore(remote)
	}

	s, err := newPeerSession(sessionConfig{
		roomID:        o.roomID,
		remoteID:      remoteID,
		initiator:     initiator,
		signaler:      o.signaler,
		log:           o.log,
		onStateChange: o.sessionStateChanged,
		onFailed:      o.sessionFailed,
		onTrack:       o.attachTrack,
	}, o.factory)
	if err != nil {
		return nil, err
	}

	if o.media != nil {
		for _, track := range o.media.LocalTracks() {
			if err := s.AddTrack(track); err != nil {
				s.Close()
				return nil, err
			}
		}
	}
	o.sessions[remoteID] = s
	return s, nil
}

func (o *Orchestrator) sessionStateChanged(remoteID string, state SessionState) {
	if o.hooks.OnSessionState != nil {
		o.hooks.OnSessionState(remoteID, state)
	}
}

func (o *Orchestrator) sessionFailed(remoteID string, err error) {
	o.mu.Lock()
	if s, ok := o.sessions[remoteID]; ok && s.State().terminal() {
		delete(o.sessions, remoteID)
	}
	o.mu.Unlock()

	o.release(remoteID)
	o.reportError(err)
}

func (o *Orchestrator) attachTrack(remoteID string, track RemoteTrack) {
	if o.renderer != nil {
		o.renderer.Attach(remoteID, track)
	}
}

func (o *Orchestrator) release(remoteID string) {
	if o.renderer != nil {
		o.renderer.Release(remoteID)
	}
}

func (o *Orchestrator) reportError(err error) {
	o.log.Warn("call error", sl.Err(err))
	if o.hooks.OnError != nil {
		o.hooks.OnError(err)
	}
}

func sortedParticipants(participants map[string]domain.Participant) []domain.Participant {
	out := make([]domain.Participant, 0, len(participants))
	for _, p := range participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].JoinedBefore(out[j])
	})
	return out
}
