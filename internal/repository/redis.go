package repository

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/immxrtalbeast/axenix_call/internal/domain"
	"github.com/vmihailenco/msgpack/v5"
)

// RedisCallHistoryRepository stores each record msgpack-encoded under its own
// key and keeps a per-user sorted set ordered by start time.
type RedisCallHistoryRepository struct {
	client *redis.Client
}

func NewRedisCallHistoryRepository(client *redis.Client) *RedisCallHistoryRepository {
	return &RedisCallHistoryRepository{client: client}
}

func recordKey(id string) string {
	return "call_history:record:" + id
}

func userKey(userID string) string {
	return "call_history:user:" + userID
}

func (r *RedisCallHistoryRepository) Save(ctx context.Context, record *domain.CallRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record == nil {
		return ErrRecordNil
	}
	if record.UserID == "" {
		return ErrInvalidUserID
	}

	data, err := msgpack.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode call record: %w", err)
	}

	id := record.ID.String()
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, recordKey(id), data, 0)
		pipe.ZAdd(ctx, userKey(record.UserID), &redis.Z{
			Score:  float64(record.StartTime.UnixNano()),
			Member: id,
		})
		return nil
	})
	return err
}

func (r *RedisCallHistoryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.CallRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	ids, err := r.client.ZRevRange(ctx, userKey(userID), 0, stop).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*domain.CallRecord{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = recordKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	result := make([]*domain.CallRecord, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var record domain.CallRecord
		if err := msgpack.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("decode call record: %w", err)
		}
		result = append(result, &record)
	}
	return result, nil
}

// Ping reports whether the backing redis is reachable.
func (r *RedisCallHistoryRepository) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
