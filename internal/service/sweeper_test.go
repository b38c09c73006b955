package service

import (
	"context"
	"testing"
	"time"

	"github.com/immxrtalbeast/axenix_call/lib/logger/handlers/slogdiscard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeperReclaimsExpiredRooms(t *testing.T) {
	clock := newTestClock()
	reg := newTestRegistry(clock)
	ctx := context.Background()

	_, err := reg.Join(ctx, "ROOM01", "a", user("u1", "Alice"), false)
	require.NoError(t, err)
	_, err = reg.Join(ctx, "ROOM02", "b", user("u2", "Bob"), false)
	require.NoError(t, err)
	_, err = reg.Leave(ctx, "ROOM01", "a")
	require.NoError(t, err)

	sweeper := NewSweeper(slogdiscard.NewDiscardLogger(), reg, time.Minute)
	sweeper.now = clock.Now

	assert.Empty(t, sweeper.Sweep())
	clock.Advance(6 * time.Minute)
	assert.Equal(t, []string{"ROOM01"}, sweeper.Sweep())
	assert.Equal(t, 1, reg.RoomCount())
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	reg := NewRegistry(slogdiscard.NewDiscardLogger(), RegistryOptions{GracePeriod: time.Millisecond})
	_, err := reg.Join(context.Background(), "ROOM01", "a", user("u1", "Alice"), false)
	require.NoError(t, err)
	_, err = reg.Leave(context.Background(), "ROOM01", "a")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewSweeper(slogdiscard.NewDiscardLogger(), reg, 5*time.Millisecond).Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return reg.RoomCount() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
