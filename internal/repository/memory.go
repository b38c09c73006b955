package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/axenix_call/internal/domain"
)

type InMemoryCallHistoryRepository struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*domain.CallRecord
	byUser  map[string][]uuid.UUID
}

func NewInMemoryCallHistoryRepository() *InMemoryCallHistoryRepository {
	return &InMemoryCallHistoryRepository{
		records: make(map[uuid.UUID]*domain.CallRecord),
		byUser:  make(map[string][]uuid.UUID),
	}
}

func (r *InMemoryCallHistoryRepository) Save(ctx context.Context, record *domain.CallRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record == nil {
		return ErrRecordNil
	}
	if record.UserID == "" {
		return ErrInvalidUserID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[record.ID]; !ok {
		r.byUser[record.UserID] = append(r.byUser[record.UserID], record.ID)
	}
	r.records[record.ID] = cloneRecord(record)
	return nil
}

func (r *InMemoryCallHistoryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.CallRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byUser[userID]
	result := make([]*domain.CallRecord, 0, len(ids))
	for _, id := range ids {
		result = append(result, cloneRecord(r.records[id]))
	}

	sortNewestFirst(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func sortNewestFirst(records []*domain.CallRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].StartTime.After(records[j].StartTime)
	})
}

func cloneRecord(record *domain.CallRecord) *domain.CallRecord {
	c := *record
	c.Participants = append([]string(nil), record.Participants...)
	if record.EndTime != nil {
		end := *record.EndTime
		c.EndTime = &end
	}
	return &c
}
