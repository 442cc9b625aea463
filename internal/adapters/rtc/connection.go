package rtc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/intervalpli"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultPLIInterval = 3 * time.Second

type Config struct {
	ICEServers           []webrtc.ICEServer
	ICECandidatePoolSize uint8
	PLIInterval          time.Duration
}

func DefaultConfig() Config {
	return Config{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
		PLIInterval: DefaultPLIInterval,
	}
}

// NewAPI builds the pion API every connection of the process shares.
func NewAPI(cfg Config) (*webrtc.API, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	interval := cfg.PLIInterval
	if interval <= 0 {
		interval = DefaultPLIInterval
	}
	pli, err := intervalpli.NewReceiverInterceptor(intervalpli.GeneratorInterval(interval))
	if err != nil {
		return nil, fmt.Errorf("interval pli: %w", err)
	}
	registry.Add(pli)

	settings := webrtc.SettingEngine{LoggerFactory: loggerFactory{}}

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(registry),
		webrtc.WithSettingEngine(settings),
	), nil
}

// Connection is a pion PeerConnection behind core.MediaConnection.
type Connection struct {
	pc     *webrtc.PeerConnection
	sid    string
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	onNegotiation func()
	onCandidate   func(*domain.Candidate)
	onState       func(domain.ConnectionState)
	onTrack       func(ctx context.Context, track *webrtc.TrackRemote, streamID string)
}

var _ core.MediaConnection = (*Connection)(nil)

// NewConnection creates the peer connection. ctx bounds the lifetime of
// remote track consumers.
func NewConnection(ctx context.Context, api *webrtc.API, cfg Config, sid string) (*Connection, error) {
	pc, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers:           cfg.ICEServers,
		ICECandidatePoolSize: cfg.ICECandidatePoolSize,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	c := &Connection{
		pc:     pc,
		sid:    sid,
		log:    log.With().Str("module", "webrtc").Str("sid", sid).Logger(),
		ctx:    ctx,
		cancel: cancel,
	}

	pc.OnNegotiationNeeded(func() {
		c.mu.Lock()
		fn := c.onNegotiation
		c.mu.Unlock()
		if fn != nil {
			fn()
		}
	})

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		c.mu.Lock()
		fn := c.onCandidate
		c.mu.Unlock()
		if fn == nil {
			return
		}
		if cand == nil {
			fn(nil)
			return
		}
		init := cand.ToJSON()
		fn(&domain.Candidate{
			Candidate:        init.Candidate,
			SDPMid:           init.SDPMid,
			SDPMLineIndex:    init.SDPMLineIndex,
			UsernameFragment: init.UsernameFragment,
		})
	})

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		c.log.Info().Str("ice_state", s.String()).Msg("ICE state")
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		c.log.Info().Str("peer_connection_state", s.String()).Msg("Peer state")
		c.mu.Lock()
		fn := c.onState
		c.mu.Unlock()
		if fn != nil {
			fn(domain.ConnectionState(s.String()))
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		c.log.Info().
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Str("codec", track.Codec().MimeType).
			Msg("OnTrack received")
		c.mu.Lock()
		fn := c.onTrack
		c.mu.Unlock()
		if fn != nil {
			fn(c.ctx, track, track.StreamID())
		}
	})

	return c, nil
}

func toPion(d domain.SessionDescription) webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.NewSDPType(string(d.Type)), SDP: d.SDP}
}

func (c *Connection) ApplyRemoteDescription(d domain.SessionDescription) error {
	if summary, err := Summarize(d.SDP); err != nil {
		c.log.Warn().Err(err).Str("type", string(d.Type)).Msg("remote description does not parse")
	} else {
		c.log.Debug().Str("type", string(d.Type)).Str("media", summary.String()).Msg("remote description")
	}
	return c.pc.SetRemoteDescription(toPion(d))
}

func (c *Connection) CreateOffer() (domain.SessionDescription, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return domain.SessionDescription{}, err
	}
	return domain.SessionDescription{Type: domain.SDPTypeOffer, SDP: offer.SDP}, nil
}

func (c *Connection) CreateAnswer() (domain.SessionDescription, error) {
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return domain.SessionDescription{}, err
	}
	return domain.SessionDescription{Type: domain.SDPTypeAnswer, SDP: answer.SDP}, nil
}

func (c *Connection) SetLocalDescription(d domain.SessionDescription) error {
	return c.pc.SetLocalDescription(toPion(d))
}

// Rollback needs the pending offer's SDP; pion rejects an empty rollback.
func (c *Connection) Rollback() error {
	pending := c.pc.PendingLocalDescription()
	if pending == nil {
		return nil
	}
	return c.pc.SetLocalDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeRollback,
		SDP:  pending.SDP,
	})
}

func (c *Connection) AddCandidate(cand domain.Candidate) error {
	return c.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:        cand.Candidate,
		SDPMid:           cand.SDPMid,
		SDPMLineIndex:    cand.SDPMLineIndex,
		UsernameFragment: cand.UsernameFragment,
	})
}

func (c *Connection) OnNegotiationNeeded(fn func()) {
	c.mu.Lock()
	c.onNegotiation = fn
	c.mu.Unlock()
}

func (c *Connection) OnLocalCandidate(fn func(*domain.Candidate)) {
	c.mu.Lock()
	c.onCandidate = fn
	c.mu.Unlock()
}

func (c *Connection) OnConnectionStateChange(fn func(domain.ConnectionState)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

// OnRemoteTrack sets application-level callback for remote tracks.
func (c *Connection) OnRemoteTrack(fn func(ctx context.Context, track *webrtc.TrackRemote, streamID string)) {
	c.mu.Lock()
	c.onTrack = fn
	c.mu.Unlock()
}

// AddTrack attaches a local track and keeps its RTCP flowing into the interceptors.
func (c *Connection) AddTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error) {
	sender, err := c.pc.AddTrack(track)
	if err != nil {
		return nil, err
	}
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()
	c.log.Info().Str("kind", track.Kind().String()).Str("track_id", track.ID()).Msg("local track added")
	return sender, nil
}

func (c *Connection) Close() error {
	c.cancel()
	if err := c.pc.Close(); err != nil {
		c.log.Error().Err(err).Msg("close error")
		return err
	}
	c.log.Info().Msg("closed")
	return nil
}
