package session

import (
	"context"
	"errors"

	"github.com/dkeye/Rendezvous/internal/app/negotiation"
	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	ID             string
	Role           domain.Role
	BufferCapacity int
	Source         core.MediaSource
	Sink           core.TrackSink
	// OnEvent receives every coordinator notification after the session
	// has acted on it. It runs on the coordinator goroutine.
	OnEvent func(negotiation.Notification)
}

// Session is one 1:1 media session: channel, engine, coordinator and the
// media controller, started and stopped together.
type Session struct {
	id      string
	conn    core.MediaConnection
	channel core.SignalTransport
	coord   *negotiation.Coordinator
	ctrl    *Controller
	onEvent func(negotiation.Notification)
}

func New(conn core.MediaConnection, channel core.SignalTransport, opts Options) *Session {
	s := &Session{
		id:      opts.ID,
		conn:    conn,
		channel: channel,
		onEvent: opts.OnEvent,
	}
	s.ctrl = NewController(conn, opts.Source, opts.Sink, opts.ID)
	s.coord = negotiation.New(conn, channel, negotiation.Options{
		Role:           opts.Role,
		BufferCapacity: opts.BufferCapacity,
		SessionID:      opts.ID,
		OnEvent:        s.handle,
	})
	return s
}

func (s *Session) handle(n negotiation.Notification) {
	s.ctrl.HandleNotification(n)
	if s.onEvent != nil {
		s.onEvent(n)
	}
}

// Run blocks until ctx is done or the session fails. Stopping through ctx
// returns nil; a dead signaling channel returns its TransportError.
func (s *Session) Run(ctx context.Context) error {
	logger := log.With().Str("module", "session").Str("sid", s.id).Logger()

	runCtx, cancel := context.WithCancel(ctx)
	defer s.teardown()
	defer cancel()

	if err := s.ctrl.Start(runCtx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return s.channel.Run(gctx) })
	g.Go(func() error { return s.coord.Run(gctx) })
	logger.Info().Msg("session started")

	err := g.Wait()
	if ctx.Err() != nil {
		logger.Info().Msg("session stopped")
		return nil
	}
	var te *core.TransportError
	if errors.As(err, &te) {
		logger.Error().Err(err).Msg("session lost its signaling channel")
	}
	return err
}

func (s *Session) Status() negotiation.Status { return s.coord.Status() }

// Controller exposes the media side, mostly for inspection.
func (s *Session) Controller() *Controller { return s.ctrl }

func (s *Session) teardown() {
	s.channel.Close()
	if err := s.conn.Close(); err != nil {
		log.Warn().Err(err).Str("module", "session").Str("sid", s.id).Msg("engine close")
	}
	s.ctrl.Wait()
}
