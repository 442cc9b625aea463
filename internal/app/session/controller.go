package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkeye/Rendezvous/internal/app/negotiation"
	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// TrackEngine is the media half of core.MediaConnection.
type TrackEngine interface {
	AddTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error)
	OnRemoteTrack(func(ctx context.Context, track *webrtc.TrackRemote, streamID string))
}

// Controller moves media between the engine and the application: local
// tracks in, remote tracks out.
type Controller struct {
	engine TrackEngine
	source core.MediaSource
	sink   core.TrackSink
	log    zerolog.Logger

	ctx       context.Context
	mu        sync.Mutex
	streams   map[string]struct{}
	streaming bool
	wg        sync.WaitGroup
}

// NewController accepts a nil source (receive only) or a nil sink (remote
// tracks are announced and ignored).
func NewController(engine TrackEngine, source core.MediaSource, sink core.TrackSink, sid string) *Controller {
	return &Controller{
		engine:  engine,
		source:  source,
		sink:    sink,
		log:     log.With().Str("module", "session").Str("sid", sid).Logger(),
		ctx:     context.Background(),
		streams: make(map[string]struct{}),
	}
}

// Start binds remote track handling and publishes the source's tracks.
// Adding tracks makes the engine ask for negotiation.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()

	c.engine.OnRemoteTrack(c.onRemoteTrack)
	if c.source == nil {
		return nil
	}
	tracks, err := c.source.Tracks()
	if err != nil {
		return fmt.Errorf("acquire tracks: %w", err)
	}
	for _, t := range tracks {
		if _, err := c.engine.AddTrack(t); err != nil {
			return fmt.Errorf("add %s track: %w", t.Kind(), err)
		}
	}
	c.log.Info().Int("tracks", len(tracks)).Msg("local media attached")
	return nil
}

// HandleNotification reacts to coordinator notifications. Media starts
// flowing the first time the connection reports connected.
func (c *Controller) HandleNotification(n negotiation.Notification) {
	if n.Kind != negotiation.NotifyConnectionState {
		return
	}
	switch n.State {
	case domain.ConnectionConnected:
		c.startStreaming()
	case domain.ConnectionFailed, domain.ConnectionDisconnected:
		c.log.Warn().Str("state", string(n.State)).Msg("media connection degraded")
	}
}

func (c *Controller) startStreaming() {
	c.mu.Lock()
	if c.streaming || c.source == nil {
		c.mu.Unlock()
		return
	}
	c.streaming = true
	ctx := c.ctx
	c.mu.Unlock()

	c.log.Info().Msg("connected, starting local media")
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.source.Stream(ctx); err != nil {
			c.log.Error().Err(err).Msg("local media stopped")
		}
	}()
}

func (c *Controller) onRemoteTrack(ctx context.Context, track *webrtc.TrackRemote, streamID string) {
	c.mu.Lock()
	_, seen := c.streams[streamID]
	c.streams[streamID] = struct{}{}
	c.mu.Unlock()

	if seen {
		c.log.Debug().Str("stream_id", streamID).Msg("stream already bound")
	} else {
		c.log.Info().Str("stream_id", streamID).Msg("remote stream bound")
	}
	if c.sink == nil {
		return
	}
	if err := c.sink.Consume(ctx, track, streamID); err != nil {
		c.log.Error().Err(err).Str("stream_id", streamID).Msg("consume remote track")
	}
}

// Streams lists the remote stream ids seen so far.
func (c *Controller) Streams() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.streams))
	for id := range c.streams {
		out = append(out, id)
	}
	return out
}

// Wait blocks until local streaming has returned.
func (c *Controller) Wait() { c.wg.Wait() }
