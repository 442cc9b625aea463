// Package signal is the server end of the rendezvous websocket: it binds a
// socket to a (self, remote) pair and moves frames between it and the hub.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Rendezvous/internal/app/rendezvous"
	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

type Config struct {
	ReadLimit   int64
	PingPeriod  time.Duration
	WriteWait   time.Duration
	MaxLifetime time.Duration
	SendBuffer  int
}

func DefaultConfig() Config {
	return Config{
		ReadLimit:   32768,
		PingPeriod:  54 * time.Second,
		WriteWait:   5 * time.Second,
		MaxLifetime: 30 * time.Minute,
		SendBuffer:  32,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ReadLimit <= 0 {
		c.ReadLimit = d.ReadLimit
	}
	if c.PingPeriod <= 0 {
		c.PingPeriod = d.PingPeriod
	}
	if c.WriteWait <= 0 {
		c.WriteWait = d.WriteWait
	}
	if c.MaxLifetime <= 0 {
		c.MaxLifetime = d.MaxLifetime
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	return c
}

type SignalWSController struct {
	Hub     *rendezvous.Hub
	Limiter *RateLimiter
	cfg     Config
}

func NewSignalWSController(hub *rendezvous.Hub, limiter *RateLimiter, cfg Config) *SignalWSController {
	return &SignalWSController{
		Hub:     hub,
		Limiter: limiter,
		cfg:     cfg.withDefaults(),
	}
}

// WsSignalConn queues control replies for the write pump.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

var _ core.SignalConnection = (*WsSignalConn)(nil)

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Pair reads userID and peerID from the query. A missing userID falls back to
// the client token cookie.
func Pair(c *gin.Context) (domain.Pair, error) {
	self := c.Query("userID")
	if self == "" {
		self = c.GetString("client_token")
	}
	return domain.NewPair(self, c.Query("peerID"))
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	pair, err := Pair(c)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("rejecting WS connection")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	logger := log.With().Str("module", "signal").Str("user", string(pair.Self)).Str("peer", string(pair.Remote)).Logger()
	logger.Info().Msg("new WS connection")

	// Subscribed before the handshake completes, so an open socket never
	// misses a frame published to it.
	sub := ctl.Hub.Subscribe(pair.Self)
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error().Err(err).Msg("ws upgrade")
		sub.Close()
		return
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.cfg.SendBuffer),
	}

	ctx, cancel := context.WithTimeout(ctx, ctl.cfg.MaxLifetime)

	go ctl.writePump(ctx, cancel, conn, sub)
	go ctl.readPump(ctx, cancel, pair, conn)
}
