package repository

import (
	"context"
	"errors"

	"github.com/immxrtalbeast/axenix_call/internal/domain"
)

var (
	ErrRecordNil     = errors.New("call record is nil")
	ErrInvalidUserID = errors.New("user id is required")
)

// CallHistoryRepository persists per-user call records. Save is an upsert
// keyed by record id.
type CallHistoryRepository interface {
	Save(ctx context.Context, record *domain.CallRecord) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.CallRecord, error)
}
