package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/axenix_call/internal/domain"
	"github.com/immxrtalbeast/axenix_call/lib/logger/sl"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	outgoingBuffer = 64
	incomingBuffer = 64
)

type SignalingOptions struct {
	// MaxReconnect bounds the total time spent reconnecting after the
	// gateway drops the socket.
	MaxReconnect time.Duration
	Header       http.Header
	Dialer       *websocket.Dialer
}

// SignalingClient keeps a websocket to the gateway. When the socket drops it
// redials with exponential backoff and repeats the last join so the client
// lands back in its room.
type SignalingClient struct {
	url  string
	opts SignalingOptions
	log  *slog.Logger

	outgoing chan domain.SignalMessage
	incoming chan domain.SignalMessage
	done     chan struct{}

	mu       sync.Mutex
	conn     *websocket.Conn
	lastJoin *domain.SignalMessage
	closed   bool
	finished bool
	err      error
}

func NewSignalingClient(url string, log *slog.Logger, opts SignalingOptions) *SignalingClient {
	if log == nil {
		log = slog.Default()
	}
	if opts.MaxReconnect <= 0 {
		opts.MaxReconnect = 30 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &SignalingClient{
		url:      url,
		opts:     opts,
		log:      log.With(slog.String("gateway", url)),
		outgoing: make(chan domain.SignalMessage, outgoingBuffer),
		incoming: make(chan domain.SignalMessage, incomingBuffer),
		done:     make(chan struct{}),
	}
}

// Connect dials the gateway once and starts the pumps.
func (c *SignalingClient) Connect(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	c.start(ctx, conn)
	return nil
}

// Send queues message for the gateway. A join-room is remembered so it can
// be replayed after a reconnect.
func (c *SignalingClient) Send(message domain.SignalMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}

	switch message.Type {
	case domain.MessageJoinRoom:
		join := message
		c.lastJoin = &join
	case domain.MessageLeaveRoom:
		c.lastJoin = nil
	}

	select {
	case c.outgoing <- message:
		return nil
	default:
		return fmt.Errorf("outgoing queue full: %w", domain.ErrGatewayUnreachable)
	}
}

// Incoming yields envelopes from the gateway. It is closed when the client
// is closed or reconnecting gives up.
func (c *SignalingClient) Incoming() <-chan domain.SignalMessage {
	return c.incoming
}

// Err reports why Incoming was closed, if it was not a normal Close.
func (c *SignalingClient) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close sends a close frame and stops reconnecting. Queued messages are
// flushed first on a best effort basis.
func (c *SignalingClient) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()
}

func (c *SignalingClient) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := c.opts.Dialer.DialContext(ctx, c.url, c.opts.Header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w: %w", c.url, domain.ErrGatewayUnreachable, err)
	}
	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return conn, nil
}

func (c *SignalingClient) start(ctx context.Context, conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	stop := make(chan struct{})
	go c.writePump(conn, stop)
	go c.readPump(ctx, conn, stop)
}

func (c *SignalingClient) readPump(ctx context.Context, conn *websocket.Conn, stop chan struct{}) {
	defer close(stop)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	for {
		var msg domain.SignalMessage
		if err := conn.ReadJSON(&msg); err != nil {
			conn.Close()
			if c.isClosed() {
				c.finish(nil)
				return
			}
			c.log.Warn("gateway connection lost", sl.Err(err))
			go c.reconnect(ctx)
			return
		}

		if msg.Type == domain.MessageRoomJoined {
			c.rememberRoom(msg.RoomID)
		}

		select {
		case c.incoming <- msg:
		case <-c.done:
		}
	}
}

// rememberRoom pins a join that asked for a generated room to the code the
// gateway handed out, so a reconnect lands back in the same room.
func (c *SignalingClient) rememberRoom(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastJoin != nil && c.lastJoin.RoomID == "" && roomID != "" {
		c.lastJoin.RoomID = roomID
	}
}

func (c *SignalingClient) writePump(conn *websocket.Conn, stop chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message := <-c.outgoing:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(message); err != nil {
				c.log.Debug("gateway write failed", slog.String("type", message.Type), sl.Err(err))
				conn.Close()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		case <-c.done:
			c.flush(conn)
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
			return
		case <-stop:
			return
		}
	}
}

func (c *SignalingClient) flush(conn *websocket.Conn) {
	for {
		select {
		case message := <-c.outgoing:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(message); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *SignalingClient) reconnect(ctx context.Context) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = c.opts.MaxReconnect

	var conn *websocket.Conn
	operation := func() error {
		if c.isClosed() {
			return backoff.Permanent(ErrClientClosed)
		}
		dialed, err := c.dial(ctx)
		if err != nil {
			return err
		}
		conn = dialed
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.log.Info("reconnecting to gateway", slog.Duration("retry_in", wait), sl.Err(err))
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify); err != nil {
		if errors.Is(err, ErrClientClosed) {
			c.finish(nil)
			return
		}
		c.log.Error("gateway unreachable, giving up", sl.Err(err))
		c.finish(fmt.Errorf("reconnect: %w", err))
		return
	}

	c.log.Info("reconnected to gateway")
	c.start(ctx, conn)

	c.mu.Lock()
	join := c.lastJoin
	c.mu.Unlock()
	if join != nil {
		if err := c.Send(*join); err != nil {
			c.log.Warn("failed to rejoin room", sl.Err(err))
		}
	}
}

func (c *SignalingClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *SignalingClient) finish(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return
	}
	if err != nil && !errors.Is(err, domain.ErrGatewayUnreachable) {
		err = fmt.Errorf("%w: %w", domain.ErrGatewayUnreachable, err)
	}
	c.finished = true
	c.err = err
	close(c.incoming)
}
