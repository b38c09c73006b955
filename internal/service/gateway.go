package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/immxrtalbeast/axenix_call/internal/domain"
	"github.com/immxrtalbeast/axenix_call/lib/logger/sl"
)

const (
	maxChatMessageLength = 4000
	maxChatSenderLength  = 255
)

// Gateway routes signaling envelopes between connections. It owns the set
// of live connections; room state lives in the Registry.
type Gateway struct {
	registry *Registry
	history  *HistoryRecorder
	log      *slog.Logger

	mu    sync.RWMutex
	conns map[string]*domain.Connection
}

// NewGateway wires a gateway to its registry. history may be nil.
func NewGateway(log *slog.Logger, registry *Registry, history *HistoryRecorder) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		registry: registry,
		history:  history,
		log:      log,
		conns:    make(map[string]*domain.Connection),
	}
}

func (g *Gateway) Connect(conn *domain.Connection) {
	g.mu.Lock()
	g.conns[conn.ID] = conn
	g.mu.Unlock()

	g.log.Info("connection opened",
		slog.String("connection_id", conn.ID),
		slog.String("remote_addr", conn.RemoteAddr),
	)
}

// Disconnect removes the connection from its room and closes its outbound
// queue. Safe to call for unknown or already closed connections.
func (g *Gateway) Disconnect(ctx context.Context, connectionID string) {
	const op = "service.gateway.disconnect"
	ctx = context.WithoutCancel(ctx)

	g.mu.Lock()
	conn, ok := g.conns[connectionID]
	delete(g.conns, connectionID)
	g.mu.Unlock()
	if !ok {
		return
	}

	if err := g.leave(ctx, conn); err != nil {
		g.log.Warn("leave on disconnect failed",
			slog.String("op", op),
			slog.String("connection_id", connectionID),
			sl.Err(err),
		)
	}
	conn.Close()
	g.log.Info("connection closed",
		slog.String("connection_id", connectionID),
		slog.Time("last_seen", conn.LastSeen()),
	)
}

// HandleMessage processes one inbound envelope. Any error is also reported to
// the sending connection as an error envelope.
func (g *Gateway) HandleMessage(ctx context.Context, connectionID string, message *domain.SignalMessage) error {
	const op = "service.gateway.handle"

	conn := g.connection(connectionID)
	if conn == nil {
		return fmt.Errorf("%s: %w", op, domain.ErrParticipantNotFound)
	}
	if message == nil {
		return g.fail(conn, fmt.Errorf("%s: %w", op, domain.ErrInvalidMessage))
	}
	conn.Touch()

	var err error
	switch {
	case message.IsRelay():
		err = g.relay(conn, message)
	case message.Type == domain.MessageJoinRoom:
		err = g.join(ctx, conn, message)
	case message.Type == domain.MessageNewMessage:
		err = g.chat(ctx, conn, message)
	case message.Type == domain.MessageUserMediaChanged:
		err = g.mediaChanged(ctx, conn, message)
	case message.Type == domain.MessageScreenShareStarted, message.Type == domain.MessageScreenShareStopped:
		err = g.screenShare(ctx, conn, message)
	case message.Type == domain.MessageLeaveRoom:
		err = g.leave(ctx, conn)
	default:
		err = fmt.Errorf("%s: %q: %w", op, message.Type, domain.ErrUnsupportedMessage)
	}
	if err != nil {
		return g.fail(conn, err)
	}
	return nil
}

func (g *Gateway) join(ctx context.Context, conn *domain.Connection, message *domain.SignalMessage) error {
	const op = "service.gateway.join"
	if message.UserInfo == nil || strings.TrimSpace(message.UserInfo.Name) == "" {
		return fmt.Errorf("%s: user info is required: %w", op, domain.ErrInvalidMessage)
	}
	info := *message.UserInfo
	info.Name = strings.TrimSpace(info.Name)

	// An empty id asks the registry for a generated code; anything else must
	// be valid before the current room is given up.
	if message.RoomID != "" || !message.IsCreatingRoom {
		if err := domain.ValidateRoomID(message.RoomID); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if current, _ := conn.Room(); current != "" && current != message.RoomID {
		if err := g.leave(ctx, conn); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	res, err := g.registry.Join(ctx, message.RoomID, conn.ID, info, message.IsCreatingRoom)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	conn.SetRoom(res.RoomID, info)

	g.send(conn, domain.SignalMessage{
		Type:         domain.MessageRoomJoined,
		RoomID:       res.RoomID,
		SelfID:       conn.ID,
		IsHost:       res.IsHost,
		HostID:       hostID(res.Participants),
		Participants: res.Participants,
		Messages:     res.Messages,
	})
	if res.Duplicate {
		return nil
	}

	g.broadcast(res.Participants, domain.SignalMessage{
		Type:         domain.MessageUserJoined,
		RoomID:       res.RoomID,
		SenderID:     conn.ID,
		HostID:       hostID(res.Participants),
		Participants: res.Participants,
	}, conn.ID)

	if g.history != nil {
		g.history.ObserveParticipants(res.RoomID, res.Participants)
		g.history.CallStarted(res.RoomID, res.Participant, res.Participants)
	}
	return nil
}

// relay forwards SDP and candidates without looking inside them.
func (g *Gateway) relay(conn *domain.Connection, message *domain.SignalMessage) error {
	const op = "service.gateway.relay"

	roomID, err := g.roomOf(conn, message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if message.Type == domain.MessageICECandidate && message.Candidate == nil {
		return fmt.Errorf("%s: candidate is required: %w", op, domain.ErrInvalidMessage)
	}
	if message.Type != domain.MessageICECandidate && message.SDP == nil {
		return fmt.Errorf("%s: sdp is required: %w", op, domain.ErrInvalidMessage)
	}

	forward := *message
	forward.RoomID = roomID
	forward.SenderID = conn.ID

	if forward.TargetID == "" {
		g.broadcast(g.registry.Members(roomID), forward, conn.ID)
		return nil
	}

	target := g.connection(forward.TargetID)
	if target == nil || !g.registry.IsMember(roomID, forward.TargetID) {
		g.log.Debug("relay dropped",
			slog.String("op", op),
			slog.String("room_id", roomID),
			slog.String("sender_id", conn.ID),
			slog.String("target_id", forward.TargetID),
			sl.Err(domain.ErrRelayTargetGone),
		)
		return nil
	}
	g.send(target, forward)
	return nil
}

func (g *Gateway) chat(ctx context.Context, conn *domain.Connection, message *domain.SignalMessage) error {
	const op = "service.gateway.chat"

	roomID, err := g.roomOf(conn, message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	text := strings.TrimSpace(message.Text)
	if text == "" {
		return fmt.Errorf("%s: message is empty: %w", op, domain.ErrInvalidMessage)
	}
	if utf8.RuneCountInString(text) > maxChatMessageLength {
		return fmt.Errorf("%s: message is too long: %w", op, domain.ErrInvalidMessage)
	}

	var sender *domain.ChatSender
	if message.Sender != nil {
		s := *message.Sender
		s.Name = strings.TrimSpace(s.Name)
		if utf8.RuneCountInString(s.Name) > maxChatSenderLength {
			return fmt.Errorf("%s: sender is too long: %w", op, domain.ErrInvalidMessage)
		}
		sender = &s
	}

	var ts time.Time
	if message.Timestamp != nil {
		ts = *message.Timestamp
	}
	msg, participants, err := g.registry.AppendMessage(ctx, roomID, conn.ID, text, sender, ts)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	stamp := msg.Timestamp
	from := msg.Sender
	g.broadcast(participants, domain.SignalMessage{
		Type:      domain.MessageNewMessage,
		RoomID:    roomID,
		SenderID:  conn.ID,
		MessageID: msg.ID,
		Text:      msg.Text,
		Sender:    &from,
		Timestamp: &stamp,
	}, "")
	return nil
}

func (g *Gateway) mediaChanged(ctx context.Context, conn *domain.Connection, message *domain.SignalMessage) error {
	const op = "service.gateway.mediaChanged"

	roomID, err := g.roomOf(conn, message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if message.MediaState == nil {
		return fmt.Errorf("%s: media state is required: %w", op, domain.ErrInvalidMessage)
	}

	participants, err := g.registry.UpdateMedia(ctx, roomID, conn.ID, *message.MediaState)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	g.broadcastMedia(roomID, conn.ID, domain.MessageUserMediaChanged, participants)
	return nil
}

func (g *Gateway) screenShare(ctx context.Context, conn *domain.Connection, message *domain.SignalMessage) error {
	const op = "service.gateway.screenShare"

	roomID, err := g.roomOf(conn, message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	sharing := message.Type == domain.MessageScreenShareStarted
	participants, err := g.registry.SetScreenShare(ctx, roomID, conn.ID, sharing)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	g.broadcastMedia(roomID, conn.ID, message.Type, participants)
	return nil
}

func (g *Gateway) broadcastMedia(roomID, senderID, messageType string, participants []domain.Participant) {
	event := domain.SignalMessage{
		Type:         messageType,
		RoomID:       roomID,
		SenderID:     senderID,
		Participants: participants,
	}
	for _, p := range participants {
		if p.ConnectionID == senderID {
			state := p.MediaState
			event.MediaState = &state
			break
		}
	}
	g.broadcast(participants, event, senderID)
}

// leave drops conn from its current room, if any, and tells the others.
func (g *Gateway) leave(ctx context.Context, conn *domain.Connection) error {
	const op = "service.gateway.leave"

	roomID, _ := conn.Room()
	if roomID == "" {
		return nil
	}

	res, err := g.registry.Leave(ctx, roomID, conn.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	conn.ClearRoom()

	if g.history != nil {
		g.history.CallEnded(roomID, conn.ID)
	}
	if res.Removed == nil {
		return nil
	}

	g.broadcast(res.Participants, domain.SignalMessage{
		Type:         domain.MessageUserLeft,
		RoomID:       roomID,
		SenderID:     conn.ID,
		HostID:       hostID(res.Participants),
		Participants: res.Participants,
	}, conn.ID)

	if res.NewHost != nil {
		g.broadcast(res.Participants, domain.SignalMessage{
			Type:         domain.MessageHostChanged,
			RoomID:       roomID,
			HostID:       res.NewHost.ConnectionID,
			Participants: res.Participants,
		}, "")
	}
	return nil
}

// roomOf returns the room the connection has joined. A message naming a
// different room is rejected.
func (g *Gateway) roomOf(conn *domain.Connection, message *domain.SignalMessage) (string, error) {
	roomID, _ := conn.Room()
	if roomID == "" {
		return "", domain.ErrNotInRoom
	}
	if message.RoomID != "" && message.RoomID != roomID {
		return "", domain.ErrNotInRoom
	}
	return roomID, nil
}

func (g *Gateway) connection(connectionID string) *domain.Connection {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.conns[connectionID]
}

func (g *Gateway) send(conn *domain.Connection, message domain.SignalMessage) {
	if !conn.EnqueueEvent(message) {
		g.log.Debug("dropping event",
			slog.String("connection_id", conn.ID),
			slog.String("type", message.Type),
		)
	}
}

func (g *Gateway) broadcast(participants []domain.Participant, message domain.SignalMessage, exclude string) {
	for _, p := range participants {
		if p.ConnectionID == exclude {
			continue
		}
		if conn := g.connection(p.ConnectionID); conn != nil {
			g.send(conn, message)
		}
	}
}

// fail reports err to the sender and returns it unchanged.
func (g *Gateway) fail(conn *domain.Connection, err error) error {
	g.send(conn, domain.ErrorMessage(publicError(err)))
	return err
}

var publicErrors = []error{
	domain.ErrInvalidRoomID,
	domain.ErrRoomNotFound,
	domain.ErrParticipantNotFound,
	domain.ErrUnsupportedMessage,
	domain.ErrNotInRoom,
	domain.ErrInvalidMessage,
}

// publicError strips internal operation names before an error reaches a
// client.
func publicError(err error) error {
	for _, known := range publicErrors {
		if errors.Is(err, known) {
			return known
		}
	}
	return domain.ErrInvalidMessage
}

func hostID(participants []domain.Participant) string {
	for _, p := range participants {
		if p.IsHost {
			return p.ConnectionID
		}
	}
	return ""
}
