package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/immxrtalbeast/axenix_call/internal/domain"
)

type RegistryOptions struct {
	ChatBacklog int
	GracePeriod time.Duration
	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

type JoinResult struct {
	RoomID       string
	IsHost       bool
	Duplicate    bool
	Participant  domain.Participant
	Participants []domain.Participant
	Messages     []domain.ChatMessage
}

type LeaveResult struct {
	RoomID       string
	Removed      *domain.Participant
	Participants []domain.Participant
	NewHost      *domain.Participant
	Empty        bool
}

type RoomSnapshot struct {
	ID           string               `json:"id"`
	CreatedAt    time.Time            `json:"createdAt"`
	EmptySince   *time.Time           `json:"emptySince,omitempty"`
	HostID       string               `json:"hostId,omitempty"`
	Participants []domain.Participant `json:"participants"`
	MessageCount int                  `json:"messageCount"`
}

// Registry is the authoritative store of rooms and their members. The
// registry lock only guards the room map; membership, chat and media state
// are serialized by each room's own mutex.
type Registry struct {
	log   *slog.Logger
	opts  RegistryOptions
	mu    sync.RWMutex
	rooms map[string]*domain.Room
}

func NewRegistry(log *slog.Logger, opts RegistryOptions) *Registry {
	if log == nil {
		log = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ChatBacklog <= 0 {
		opts.ChatBacklog = 100
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = 5 * time.Minute
	}
	return &Registry{
		log:   log,
		opts:  opts,
		rooms: make(map[string]*domain.Room),
	}
}

// Join adds connectionID to roomID, creating the room when it does not
// exist. The participant becomes host only if the room was empty at the
// instant of the call. An empty roomID is replaced by a generated code when
// asCreator is set.
func (r *Registry) Join(ctx context.Context, roomID, connectionID string, info domain.UserInfo, asCreator bool) (*JoinResult, error) {
	const op = "service.registry.join"
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if roomID == "" && asCreator {
		roomID = r.newRoomID()
	}
	if err := domain.ValidateRoomID(roomID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log := r.log.With(
		slog.String("op", op),
		slog.String("room_id", roomID),
		slog.String("connection_id", connectionID),
	)

	for {
		room, created := r.acquire(roomID)
		if !created {
			room.Mutex.Lock()
		}
		if room.IsDeleted() {
			// Lost a race with the sweeper; the next acquire sees a fresh room.
			room.Mutex.Unlock()
			continue
		}

		if existing, ok := room.Participant(connectionID); ok {
			res := joinResult(room, *existing)
			res.Duplicate = true
			room.Mutex.Unlock()
			log.Debug("duplicate join ignored")
			return res, nil
		}

		p := domain.NewParticipant(connectionID, info, r.opts.Now())
		p.IsHost = room.Len() == 0
		room.AddParticipant(p)
		res := joinResult(room, *p)
		room.Mutex.Unlock()

		if asCreator && !p.IsHost {
			log.Info("creator joined an occupied room, host unchanged")
		}
		log.Info("participant joined",
			slog.Bool("is_host", p.IsHost),
			slog.Int("participants", len(res.Participants)),
		)
		return res, nil
	}
}

// Leave removes connectionID from roomID. A departing host hands the flag to
// the oldest survivor. An emptied room stays in place until the sweeper
// reclaims it. Unknown rooms are a no-op.
func (r *Registry) Leave(ctx context.Context, roomID, connectionID string) (*LeaveResult, error) {
	const op = "service.registry.leave"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := r.log.With(
		slog.String("op", op),
		slog.String("room_id", roomID),
		slog.String("connection_id", connectionID),
	)

	res := &LeaveResult{RoomID: roomID, Participants: []domain.Participant{}}

	room := r.get(roomID)
	if room == nil {
		log.Debug("room already gone")
		return res, nil
	}

	room.Mutex.Lock()
	defer room.Mutex.Unlock()

	if room.IsDeleted() {
		return res, nil
	}

	removed, ok := room.RemoveParticipant(connectionID)
	if !ok {
		res.Participants = room.Participants()
		return res, nil
	}
	removedCopy := *removed
	res.Removed = &removedCopy

	switch {
	case room.Len() == 0:
		room.EmptySince = r.opts.Now().UTC()
		res.Empty = true
		log.Info("room is empty, scheduled for cleanup")
	case removed.IsHost:
		next := room.Oldest()
		next.IsHost = true
		hostCopy := *next
		res.NewHost = &hostCopy
		log.Info("host reassigned", slog.String("new_host", next.ConnectionID))
	}

	res.Participants = room.Participants()
	log.Info("participant left", slog.Int("participants", len(res.Participants)))
	return res, nil
}

// UpdateMedia replaces the participant's media state. Screen share is kept
// under the control of SetScreenShare.
func (r *Registry) UpdateMedia(ctx context.Context, roomID, connectionID string, state domain.MediaState) ([]domain.Participant, error) {
	const op = "service.registry.updateMedia"
	return r.mutateParticipant(ctx, op, roomID, connectionID, func(p *domain.Participant) {
		state.ScreenShare = p.MediaState.ScreenShare
		p.MediaState = state
	})
}

func (r *Registry) SetScreenShare(ctx context.Context, roomID, connectionID string, sharing bool) ([]domain.Participant, error) {
	const op = "service.registry.setScreenShare"
	return r.mutateParticipant(ctx, op, roomID, connectionID, func(p *domain.Participant) {
		p.MediaState.ScreenShare = sharing
	})
}

// AppendMessage adds a chat line to the room backlog. A nil sender falls back
// to the participant's identity.
func (r *Registry) AppendMessage(ctx context.Context, roomID, connectionID, text string, sender *domain.ChatSender, ts time.Time) (domain.ChatMessage, []domain.Participant, error) {
	const op = "service.registry.appendMessage"
	if err := ctx.Err(); err != nil {
		return domain.ChatMessage{}, nil, err
	}

	room, err := r.lockMember(roomID, connectionID)
	if err != nil {
		return domain.ChatMessage{}, nil, fmt.Errorf("%s: %w", op, err)
	}
	defer room.Mutex.Unlock()

	p, _ := room.Participant(connectionID)
	from := domain.SenderFromUser(p.UserInfo)
	if sender != nil && sender.Name != "" {
		from = *sender
	}
	if ts.IsZero() {
		ts = r.opts.Now()
	}

	msg := room.AppendMessage(text, from, ts)
	return msg, room.Participants(), nil
}

// Members returns the current participant list, or nil for unknown rooms.
func (r *Registry) Members(roomID string) []domain.Participant {
	room := r.get(roomID)
	if room == nil {
		return nil
	}
	room.Mutex.Lock()
	defer room.Mutex.Unlock()
	if room.IsDeleted() {
		return nil
	}
	return room.Participants()
}

func (r *Registry) IsMember(roomID, connectionID string) bool {
	room := r.get(roomID)
	if room == nil {
		return false
	}
	room.Mutex.Lock()
	defer room.Mutex.Unlock()
	_, ok := room.Participant(connectionID)
	return ok && !room.IsDeleted()
}

func (r *Registry) Snapshot(ctx context.Context, roomID string) (*RoomSnapshot, error) {
	const op = "service.registry.snapshot"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	room := r.get(roomID)
	if room == nil {
		return nil, fmt.Errorf("%s: %w", op, domain.ErrRoomNotFound)
	}

	room.Mutex.Lock()
	defer room.Mutex.Unlock()
	if room.IsDeleted() {
		return nil, fmt.Errorf("%s: %w", op, domain.ErrRoomNotFound)
	}

	snap := &RoomSnapshot{
		ID:           room.ID,
		CreatedAt:    room.CreatedAt,
		Participants: room.Participants(),
		MessageCount: len(room.Messages()),
	}
	if host := room.Host(); host != nil {
		snap.HostID = host.ConnectionID
	}
	if !room.EmptySince.IsZero() {
		t := room.EmptySince
		snap.EmptySince = &t
	}
	return snap, nil
}

// SweepExpired deletes rooms that have been empty for longer than the grace
// period and returns their ids.
func (r *Registry) SweepExpired(now time.Time) []string {
	const op = "service.registry.sweep"

	r.mu.RLock()
	candidates := make([]*domain.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		candidates = append(candidates, room)
	}
	r.mu.RUnlock()

	var deleted []string
	for _, room := range candidates {
		room.Mutex.Lock()
		if !room.IsDeleted() && room.IsExpired(now, r.opts.GracePeriod) {
			room.MarkDeleted()
			r.mu.Lock()
			if r.rooms[room.ID] == room {
				delete(r.rooms, room.ID)
			}
			r.mu.Unlock()
			deleted = append(deleted, room.ID)
		}
		room.Mutex.Unlock()
	}

	if len(deleted) > 0 {
		r.log.Info("rooms reclaimed", slog.String("op", op), slog.Any("room_ids", deleted))
	}
	return deleted
}

func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *Registry) mutateParticipant(ctx context.Context, op, roomID, connectionID string, mutate func(p *domain.Participant)) ([]domain.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	room, err := r.lockMember(roomID, connectionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer room.Mutex.Unlock()

	p, _ := room.Participant(connectionID)
	mutate(p)
	return room.Participants(), nil
}

// lockMember returns the room locked when connectionID is a member of it.
func (r *Registry) lockMember(roomID, connectionID string) (*domain.Room, error) {
	room := r.get(roomID)
	if room == nil {
		return nil, domain.ErrRoomNotFound
	}
	room.Mutex.Lock()
	if room.IsDeleted() {
		room.Mutex.Unlock()
		return nil, domain.ErrRoomNotFound
	}
	if _, ok := room.Participant(connectionID); !ok {
		room.Mutex.Unlock()
		return nil, domain.ErrParticipantNotFound
	}
	return room, nil
}

func (r *Registry) get(roomID string) *domain.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[roomID]
}

// acquire returns the room for roomID. A newly created room is returned
// already locked so that no other goroutine observes it without its first
// participant.
func (r *Registry) acquire(roomID string) (*domain.Room, bool) {
	if room := r.get(roomID); room != nil {
		return room, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[roomID]; ok {
		return room, false
	}
	room := domain.NewRoom(roomID, r.opts.ChatBacklog, r.opts.Now())
	room.Mutex.Lock()
	r.rooms[roomID] = room
	return room, true
}

func (r *Registry) newRoomID() string {
	for {
		id := domain.GenerateRoomCode()
		if r.get(id) == nil {
			return id
		}
	}
}

func joinResult(room *domain.Room, p domain.Participant) *JoinResult {
	return &JoinResult{
		RoomID:       room.ID,
		IsHost:       p.IsHost,
		Participant:  p,
		Participants: room.Participants(),
		Messages:     room.Messages(),
	}
}
