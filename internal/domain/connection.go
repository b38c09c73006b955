package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type ConnectionStatus string

const (
	ConnectionStatusConnected    ConnectionStatus = "connected"
	ConnectionStatusDisconnected ConnectionStatus = "disconnected"
)

const connectionBuffer = 256

// Connection is one live signaling socket. Outbound events are queued on a
// buffered channel drained by the socket writer.
type Connection struct {
	ID          string
	RemoteAddr  string
	ConnectedAt time.Time

	mu       sync.RWMutex
	status   ConnectionStatus
	lastSeen time.Time
	roomID   string
	user     UserInfo
	events   chan SignalMessage
	closed   bool
}

func NewConnection(remoteAddr string) *Connection {
	now := time.Now().UTC()
	return &Connection{
		ID:          uuid.New().String(),
		RemoteAddr:  remoteAddr,
		ConnectedAt: now,
		status:      ConnectionStatusConnected,
		lastSeen:    now,
		events:      make(chan SignalMessage, connectionBuffer),
	}
}

func (c *Connection) Events() <-chan SignalMessage {
	return c.events
}

// EnqueueEvent queues an outbound message without blocking. It reports false
// when the connection is closed or its buffer is full.
func (c *Connection) EnqueueEvent(event SignalMessage) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.events <- event:
		return true
	default:
		return false
	}
}

// Close stops the outbound queue. Safe to call more than once.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.status = ConnectionStatusDisconnected
	close(c.events)
}

func (c *Connection) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSeen = time.Now().UTC()
}

func (c *Connection) LastSeen() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSeen
}

func (c *Connection) Status() ConnectionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

func (c *Connection) Room() (string, UserInfo) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomID, c.user
}

func (c *Connection) SetRoom(roomID string, user UserInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID = roomID
	c.user = user
}

func (c *Connection) ClearRoom() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID = ""
}
