package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/axenix_call/internal/config"
	"github.com/immxrtalbeast/axenix_call/internal/domain"
	"github.com/immxrtalbeast/axenix_call/internal/service"
	"github.com/immxrtalbeast/axenix_call/lib/logger/sl"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// SignalController upgrades /ws requests and pumps envelopes between the
// socket and the gateway.
type SignalController struct {
	gateway  service.SignalGateway
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewSignalController(gateway service.SignalGateway, cfg config.HTTPConfig, log *slog.Logger) *SignalController {
	if log == nil {
		log = slog.Default()
	}
	return &SignalController{
		gateway: gateway,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
	}
}

func (c *SignalController) Connect(ctx *gin.Context) {
	const op = "api.http.signal.connect"

	socket, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		c.log.Warn("websocket upgrade failed", slog.String("op", op), sl.Err(err))
		return
	}

	conn := domain.NewConnection(ctx.Request.RemoteAddr)
	c.gateway.Connect(conn)

	reqCtx := context.WithoutCancel(ctx.Request.Context())
	go c.writePump(socket, conn)
	c.readPump(reqCtx, socket, conn)
}

// readPump handles inbound envelopes one at a time, in arrival order.
func (c *SignalController) readPump(ctx context.Context, socket *websocket.Conn, conn *domain.Connection) {
	const op = "api.http.signal.read"
	log := c.log.With(slog.String("op", op), slog.String("connection_id", conn.ID))

	defer func() {
		c.gateway.Disconnect(ctx, conn.ID)
		socket.Close()
	}()

	socket.SetReadLimit(maxMessageSize)
	socket.SetReadDeadline(time.Now().Add(pongWait))
	socket.SetPongHandler(func(string) error {
		conn.Touch()
		return socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg domain.SignalMessage
		if err := socket.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("socket read stopped", sl.Err(err))
			}
			return
		}

		if err := c.gateway.HandleMessage(ctx, conn.ID, &msg); err != nil {
			log.Info("signal rejected", slog.String("type", msg.Type), sl.Err(err))
		}
	}
}

// writePump drains the connection's outbound queue and keeps the socket
// alive with pings. It exits when the gateway closes the queue.
func (c *SignalController) writePump(socket *websocket.Conn, conn *domain.Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		socket.Close()
	}()

	for {
		select {
		case event, ok := <-conn.Events():
			socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := socket.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
