package service

import (
	"context"

	"github.com/immxrtalbeast/axenix_call/internal/domain"
)

type SignalGateway interface {
	Connect(conn *domain.Connection)
	HandleMessage(ctx context.Context, connectionID string, message *domain.SignalMessage) error
	Disconnect(ctx context.Context, connectionID string)
}

type RoomReader interface {
	Snapshot(ctx context.Context, roomID string) (*RoomSnapshot, error)
}

type HistoryReader interface {
	List(ctx context.Context, userID string, limit int) ([]*domain.CallRecord, error)
}
