package service

import (
	"sync"
	"time"

	"github.com/immxrtalbeast/axenix_call/internal/domain"
	"github.com/immxrtalbeast/axenix_call/lib/logger/handlers/slogdiscard"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRegistry(clock *testClock) *Registry {
	return NewRegistry(slogdiscard.NewDiscardLogger(), RegistryOptions{
		ChatBacklog: 100,
		GracePeriod: 5 * time.Minute,
		Now:         clock.Now,
	})
}

func user(id, name string) domain.UserInfo {
	return domain.UserInfo{ID: id, Name: name}
}
