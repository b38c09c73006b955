package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/immxrtalbeast/axenix_call/internal/domain"
	"github.com/immxrtalbeast/axenix_call/internal/repository/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newRedisRepository(t *testing.T) *RedisCallHistoryRepository {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCallHistoryRepository(client)
}

func newPostgresRepository(t *testing.T) *PostgresCallHistoryRepository {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN is not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.CallRecord{}))
	return NewPostgresCallHistoryRepository(db)
}

func TestCallHistoryRepositories(t *testing.T) {
	backends := map[string]func(t *testing.T) CallHistoryRepository{
		"memory":   func(t *testing.T) CallHistoryRepository { return NewInMemoryCallHistoryRepository() },
		"redis":    func(t *testing.T) CallHistoryRepository { return newRedisRepository(t) },
		"postgres": func(t *testing.T) CallHistoryRepository { return newPostgresRepository(t) },
	}

	for name, build := range backends {
		t.Run(name, func(t *testing.T) {
			repo := build(t)
			ctx := context.Background()
			userID := "user-" + name + "-" + time.Now().Format("150405.000000")
			base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

			older := domain.NewCallRecord(userID, "ROOM01", domain.CallTypeOutgoing, base)
			newer := domain.NewCallRecord(userID, "ROOM02", domain.CallTypeIncoming, base.Add(time.Hour))
			other := domain.NewCallRecord(userID+"-other", "ROOM03", domain.CallTypeIncoming, base)

			require.NoError(t, repo.Save(ctx, older))
			require.NoError(t, repo.Save(ctx, newer))
			require.NoError(t, repo.Save(ctx, other))

			older.Finish(base.Add(90*time.Second), []string{"Bob"})
			require.NoError(t, repo.Save(ctx, older))

			records, err := repo.ListByUser(ctx, userID, 50)
			require.NoError(t, err)
			require.Len(t, records, 2)

			assert.Equal(t, "ROOM02", records[0].RoomID)
			assert.Equal(t, "ROOM01", records[1].RoomID)
			require.NotNil(t, records[1].EndTime)
			assert.Equal(t, int64(90), records[1].Duration)
			assert.Equal(t, []string{"Bob"}, records[1].Participants)
			assert.Equal(t, domain.CallTypeOutgoing, records[1].Type)

			limited, err := repo.ListByUser(ctx, userID, 1)
			require.NoError(t, err)
			require.Len(t, limited, 1)
			assert.Equal(t, "ROOM02", limited[0].RoomID)
		})
	}
}

func TestSaveRejectsInvalidRecords(t *testing.T) {
	repo := NewInMemoryCallHistoryRepository()
	ctx := context.Background()

	assert.ErrorIs(t, repo.Save(ctx, nil), ErrRecordNil)
	assert.ErrorIs(t, repo.Save(ctx, &domain.CallRecord{}), ErrInvalidUserID)
}

func TestInMemoryReturnsCopies(t *testing.T) {
	repo := NewInMemoryCallHistoryRepository()
	ctx := context.Background()

	record := domain.NewCallRecord("u1", "ROOM01", domain.CallTypeOutgoing, time.Now())
	record.Participants = []string{"Alice"}
	require.NoError(t, repo.Save(ctx, record))

	record.Participants[0] = "Mallory"

	records, err := repo.ListByUser(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"Alice"}, records[0].Participants)
}
