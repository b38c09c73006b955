package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/immxrtalbeast/axenix_call/internal/domain"
	"github.com/immxrtalbeast/axenix_call/internal/repository"
	"github.com/immxrtalbeast/axenix_call/lib/logger/handlers/slogdiscard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingHistoryRepository struct {
	mu    sync.Mutex
	calls int
}

func (r *failingHistoryRepository) Save(context.Context, *domain.CallRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return errors.New("database is down")
}

func (r *failingHistoryRepository) ListByUser(context.Context, string, int) ([]*domain.CallRecord, error) {
	return nil, errors.New("database is down")
}

func TestHistoryRecorderWritesStartAndEnd(t *testing.T) {
	clock := newTestClock()
	repo := repository.NewInMemoryCallHistoryRepository()
	rec := NewHistoryRecorder(slogdiscard.NewDiscardLogger(), repo, time.Second)
	rec.now = clock.Now

	host := domain.Participant{ConnectionID: "a", UserInfo: user("u1", "Alice"), IsHost: true}
	guest := domain.Participant{ConnectionID: "b", UserInfo: user("u2", "Bob")}

	rec.CallStarted("ROOM01", host, []domain.Participant{host})
	rec.ObserveParticipants("ROOM01", []domain.Participant{host, guest})
	clock.Advance(30 * time.Second)
	rec.CallEnded("ROOM01", "a")
	rec.CallEnded("ROOM01", "a")
	rec.Close()

	records, err := rec.List(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "ROOM01", records[0].RoomID)
	assert.Equal(t, domain.CallTypeOutgoing, records[0].Type)
	assert.Equal(t, int64(30), records[0].Duration)
	assert.Equal(t, []string{"Bob"}, records[0].Participants)
}

func TestHistoryRecorderCloseFinishesOpenCalls(t *testing.T) {
	repo := repository.NewInMemoryCallHistoryRepository()
	rec := NewHistoryRecorder(slogdiscard.NewDiscardLogger(), repo, time.Second)

	rec.CallStarted("ROOM01", domain.Participant{ConnectionID: "b", UserInfo: user("u2", "Bob")}, nil)
	rec.Close()
	rec.CallStarted("ROOM01", domain.Participant{ConnectionID: "c", UserInfo: user("u3", "Carol")}, nil)

	records, err := repo.ListByUser(context.Background(), "u2", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.CallTypeIncoming, records[0].Type)
	assert.NotNil(t, records[0].EndTime)

	records, err = repo.ListByUser(context.Background(), "u3", 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestHistoryRecorderSwallowsWriteErrors(t *testing.T) {
	repo := &failingHistoryRepository{}
	rec := NewHistoryRecorder(slogdiscard.NewDiscardLogger(), repo, time.Second)

	rec.CallStarted("ROOM01", domain.Participant{ConnectionID: "a", UserInfo: user("u1", "Alice")}, nil)
	rec.CallEnded("ROOM01", "a")
	rec.Close()

	assert.Equal(t, 2, repo.calls)

	_, err := rec.List(context.Background(), "u1", 10)
	assert.Error(t, err)
	_, err = rec.List(context.Background(), "", 10)
	assert.ErrorIs(t, err, repository.ErrInvalidUserID)
}

func TestHistoryRecorderKeepsNamesakes(t *testing.T) {
	repo := repository.NewInMemoryCallHistoryRepository()
	rec := NewHistoryRecorder(slogdiscard.NewDiscardLogger(), repo, time.Second)

	host := domain.Participant{ConnectionID: "a", UserInfo: user("u1", "Alice"), IsHost: true}
	sam1 := domain.Participant{ConnectionID: "b", UserInfo: user("u2", "Sam")}
	sam2 := domain.Participant{ConnectionID: "c", UserInfo: user("u3", "Sam")}

	rec.CallStarted("ROOM01", host, []domain.Participant{host, sam1})
	rec.ObserveParticipants("ROOM01", []domain.Participant{host, sam1, sam2})
	rec.ObserveParticipants("ROOM01", []domain.Participant{host, sam1, sam2})
	rec.CallEnded("ROOM01", "a")
	rec.Close()

	records, err := repo.ListByUser(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"Sam", "Sam"}, records[0].Participants)
}
