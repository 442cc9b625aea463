package channel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Conn is the part of *websocket.Conn the channel uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

type wsDialer struct {
	d *websocket.Dialer
}

// NewDialer returns a gorilla dialer with a cookie jar, so every reconnect
// presents the client token the rendezvous handed out on the first one.
func NewDialer(handshakeTimeout time.Duration) Dialer {
	jar, _ := cookiejar.New(nil)
	return &wsDialer{d: &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
		Jar:              jar,
	}}
}

func (w *wsDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := w.d.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

const (
	DefaultReconnectInitial     = time.Second
	DefaultReconnectMaxAttempts = 6
)

type ReconnectPolicy struct {
	Initial     time.Duration
	MaxInterval time.Duration
	// MaxAttempts caps consecutive failed reconnects; non-positive means
	// DefaultReconnectMaxAttempts. There is no unbounded mode.
	MaxAttempts int
	Jitter      float64
}

func (p ReconnectPolicy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Initial
	if b.InitialInterval <= 0 {
		b.InitialInterval = DefaultReconnectInitial
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.Multiplier = 2
	b.RandomizationFactor = p.Jitter
	b.MaxElapsedTime = 0
	b.Reset()
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultReconnectMaxAttempts
	}
	return backoff.WithMaxRetries(b, uint64(attempts))
}

type Config struct {
	ReadLimit  int64
	PingPeriod time.Duration
	WriteWait  time.Duration
	Reconnect  ReconnectPolicy
}

// Channel is a reconnecting websocket client to the rendezvous. It
// implements core.SignalTransport.
type Channel struct {
	url    string
	dialer Dialer
	cfg    Config
	log    zerolog.Logger

	mu        sync.Mutex
	conn      Conn
	readiness domain.Readiness
	onMessage func(domain.Message)
	onReady   func(domain.Readiness, error)

	closeOnce sync.Once
	closed    chan struct{}
}

var _ core.SignalTransport = (*Channel)(nil)

func New(url string, dialer Dialer, cfg Config) *Channel {
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 5 * time.Second
	}
	return &Channel{
		url:       url,
		dialer:    dialer,
		cfg:       cfg,
		log:       log.With().Str("module", "channel").Str("url", url).Logger(),
		readiness: domain.ReadinessConnecting,
		closed:    make(chan struct{}),
	}
}

func (c *Channel) Readiness() domain.Readiness {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readiness
}

func (c *Channel) OnMessage(fn func(domain.Message)) {
	c.mu.Lock()
	c.onMessage = fn
	c.mu.Unlock()
}

func (c *Channel) OnReadinessChange(fn func(domain.Readiness, error)) {
	c.mu.Lock()
	c.onReady = fn
	c.mu.Unlock()
}

// Send writes msg on the current connection. A failed write drops the
// connection, which starts a reconnect.
func (c *Channel) Send(msg domain.Message) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	conn := c.conn
	if c.readiness != domain.ReadinessOpen || conn == nil {
		c.mu.Unlock()
		return core.ErrNotOpen
	}
	err = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
	if err == nil {
		err = conn.WriteMessage(websocket.TextMessage, data)
	}
	c.mu.Unlock()

	if err != nil {
		c.log.Warn().Err(err).Str("type", string(msg.Type)).Msg("write failed, dropping connection")
		_ = conn.Close()
		return &core.TransportError{Op: "send", Err: err}
	}
	return nil
}

// Run keeps the channel connected until ctx is done, Close is called or the
// reconnect policy gives up. Only the last case returns an error.
func (c *Channel) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.closed:
			cancel()
		case <-ctx.Done():
		}
	}()

	policy := c.cfg.Reconnect.backOff()
	attempts := 0
	for {
		c.setReadiness(domain.ReadinessConnecting, nil)
		conn, err := c.dialer.Dial(ctx, c.url)
		if err == nil {
			attempts = 0
			policy.Reset()
			err = c.serve(ctx, conn)
		}
		if ctx.Err() != nil {
			c.setReadiness(domain.ReadinessClosed, nil)
			return nil
		}

		attempts++
		wait := policy.NextBackOff()
		if wait == backoff.Stop {
			terr := &core.TransportError{
				Op:  "reconnect",
				Err: fmt.Errorf("gave up after %d attempts: %w", attempts, err),
			}
			c.log.Error().Err(err).Int("attempts", attempts).Msg("reconnect failed")
			c.setReadiness(domain.ReadinessClosed, terr)
			return terr
		}
		c.log.Warn().Err(err).Int("attempt", attempts).Dur("wait", wait).Msg("connection lost, reconnecting")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.setReadiness(domain.ReadinessClosed, nil)
			return nil
		case <-timer.C:
		}
	}
}

// serve pumps one connection until it fails.
func (c *Channel) serve(ctx context.Context, conn Conn) error {
	if c.cfg.ReadLimit > 0 {
		conn.SetReadLimit(c.cfg.ReadLimit)
	}
	if c.cfg.PingPeriod > 0 {
		pongWait := c.cfg.PingPeriod * 10 / 9
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(connCtx, func() { _ = conn.Close() })
	defer stop()

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.setReadiness(domain.ReadinessOpen, nil)

	if c.cfg.PingPeriod > 0 {
		go c.pingLoop(connCtx, conn)
	}

	var err error
	for {
		var data []byte
		_, data, err = conn.ReadMessage()
		if err != nil {
			break
		}
		c.dispatch(data)
	}

	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()
	_ = conn.Close()
	c.setReadiness(domain.ReadinessConnecting, nil)

	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		return errors.New("closed by rendezvous")
	}
	return err
}

func (c *Channel) pingLoop(ctx context.Context, conn Conn) {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteWait)); err != nil {
				c.log.Warn().Err(err).Msg("ping failed")
				_ = conn.Close()
				return
			}
		}
	}
}

func (c *Channel) dispatch(data []byte) {
	msg, err := Decode(data)
	if err != nil {
		c.log.Warn().Err(err).Msg("inbound frame dropped")
		return
	}
	c.mu.Lock()
	fn := c.onMessage
	c.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
}

func (c *Channel) setReadiness(r domain.Readiness, err error) {
	c.mu.Lock()
	if c.readiness == r {
		c.mu.Unlock()
		return
	}
	prev := c.readiness
	c.readiness = r
	fn := c.onReady
	c.mu.Unlock()

	c.log.Debug().Str("from", prev.String()).Str("to", r.String()).Msg("readiness")
	if fn != nil {
		fn(r, err)
	}
}

// Close stops Run and drops the current connection. Safe to call twice.
func (c *Channel) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
	})
}
