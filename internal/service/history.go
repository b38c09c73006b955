package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/immxrtalbeast/axenix_call/internal/domain"
	"github.com/immxrtalbeast/axenix_call/internal/repository"
	"github.com/immxrtalbeast/axenix_call/lib/logger/sl"
)

const (
	DefaultHistoryLimit = 50
	historyQueueSize    = 512
)

var ErrHistoryClosed = errors.New("history recorder closed")

type activeCall struct {
	record *domain.CallRecord
	self   string
	seen   map[string]struct{}
	names  []string
}

func (c *activeCall) observe(participants []domain.Participant) {
	for _, p := range participants {
		if p.ConnectionID == c.self || p.UserInfo.Name == "" {
			continue
		}
		if _, ok := c.seen[p.ConnectionID]; ok {
			continue
		}
		c.seen[p.ConnectionID] = struct{}{}
		c.names = append(c.names, p.UserInfo.Name)
	}
}

// HistoryRecorder keeps one open CallRecord per identified participant and
// hands snapshots to a single writer goroutine. Writes never block signaling:
// a full queue drops the write with a warning.
type HistoryRecorder struct {
	repo    repository.CallHistoryRepository
	log     *slog.Logger
	timeout time.Duration
	now     func() time.Time

	mu     sync.Mutex
	active map[string]*activeCall
	queue  chan *domain.CallRecord
	closed bool
	done   chan struct{}
}

func NewHistoryRecorder(log *slog.Logger, repo repository.CallHistoryRepository, timeout time.Duration) *HistoryRecorder {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	h := &HistoryRecorder{
		repo:    repo,
		log:     log,
		timeout: timeout,
		now:     time.Now,
		active:  make(map[string]*activeCall),
		queue:   make(chan *domain.CallRecord, historyQueueSize),
		done:    make(chan struct{}),
	}
	go h.run()
	return h
}

func callKey(roomID, connectionID string) string {
	return roomID + "/" + connectionID
}

// CallStarted opens a record for p. The host of the room gets an outgoing
// call, everyone else an incoming one. Anonymous participants are skipped.
func (h *HistoryRecorder) CallStarted(roomID string, p domain.Participant, participants []domain.Participant) {
	if p.UserInfo.ID == "" {
		return
	}

	callType := domain.CallTypeIncoming
	if p.IsHost {
		callType = domain.CallTypeOutgoing
	}

	call := &activeCall{
		record: domain.NewCallRecord(p.UserInfo.ID, roomID, callType, h.now()),
		self:   p.ConnectionID,
		seen:   make(map[string]struct{}),
	}
	call.observe(participants)
	call.record.Participants = append([]string{}, call.names...)

	h.mu.Lock()
	h.active[callKey(roomID, p.ConnectionID)] = call
	h.mu.Unlock()

	h.enqueue(call.record)
}

// ObserveParticipants folds newly seen names into every open record of the
// room.
func (h *HistoryRecorder) ObserveParticipants(roomID string, participants []domain.Participant) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range participants {
		if call, ok := h.active[callKey(roomID, p.ConnectionID)]; ok {
			call.observe(participants)
		}
	}
}

// CallEnded finishes the record opened for connectionID in roomID.
func (h *HistoryRecorder) CallEnded(roomID, connectionID string) {
	key := callKey(roomID, connectionID)

	h.mu.Lock()
	call, ok := h.active[key]
	delete(h.active, key)
	h.mu.Unlock()
	if !ok {
		return
	}

	call.record.Finish(h.now(), append([]string{}, call.names...))
	h.enqueue(call.record)
}

func (h *HistoryRecorder) List(ctx context.Context, userID string, limit int) ([]*domain.CallRecord, error) {
	const op = "service.history.list"
	if userID == "" {
		return nil, repository.ErrInvalidUserID
	}
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}

	records, err := h.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		h.log.Error("failed to list call history",
			slog.String("op", op),
			slog.String("user_id", userID),
			sl.Err(err),
		)
		return nil, err
	}
	return records, nil
}

// Close finishes every open record, drains the queue and stops the writer.
func (h *HistoryRecorder) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		<-h.done
		return
	}
	now := h.now()
	for key, call := range h.active {
		call.record.Finish(now, append([]string{}, call.names...))
		h.enqueueLocked(call.record)
		delete(h.active, key)
	}
	h.closed = true
	close(h.queue)
	h.mu.Unlock()

	<-h.done
}

func (h *HistoryRecorder) enqueue(record *domain.CallRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.enqueueLocked(record)
}

func (h *HistoryRecorder) enqueueLocked(record *domain.CallRecord) {
	snapshot := *record
	snapshot.Participants = append([]string{}, record.Participants...)
	select {
	case h.queue <- &snapshot:
	default:
		h.log.Warn("call history queue is full, dropping write",
			slog.String("record_id", record.ID.String()),
		)
	}
}

func (h *HistoryRecorder) run() {
	const op = "service.history.write"
	defer close(h.done)

	for record := range h.queue {
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		err := h.repo.Save(ctx, record)
		cancel()
		if err != nil {
			h.log.Error("failed to save call record",
				slog.String("op", op),
				slog.String("record_id", record.ID.String()),
				slog.String("user_id", record.UserID),
				sl.Err(err),
			)
		}
	}
}
