package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// TrackAdder is the engine side an echo track is published on.
type TrackAdder interface {
	AddTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error)
}

type FanoutConfig struct {
	// RecordDir enables recording of VP8 to .ivf and Opus to .ogg.
	RecordDir string
	// Echo sends every remote track back to the peer on a new local track.
	Echo bool
}

// Fanout is a core.TrackSink running one Relay per remote track.
type Fanout struct {
	cfg  FanoutConfig
	echo TrackAdder
	log  zerolog.Logger

	mu     sync.Mutex
	relays map[string]*Relay
	wg     sync.WaitGroup
}

var _ core.TrackSink = (*Fanout)(nil)

func NewFanout(cfg FanoutConfig, echo TrackAdder) *Fanout {
	return &Fanout{
		cfg:    cfg,
		echo:   echo,
		log:    log.With().Str("module", "media").Logger(),
		relays: make(map[string]*Relay),
	}
}

func (f *Fanout) Consume(ctx context.Context, track *webrtc.TrackRemote, streamID string) error {
	outputs, err := f.outputsFor(track.Codec().RTPCodecCapability, track.Kind(), track.ID(), streamID)
	if err != nil {
		return err
	}
	return f.Attach(ctx, streamID+"/"+track.ID(), track, outputs...)
}

// Attach starts relaying src to outputs under key. A key already relayed is
// replaced.
func (f *Fanout) Attach(ctx context.Context, key string, src PacketReader, outputs ...*Output) error {
	logger := f.log.With().Str("track", key).Logger()

	relayCtx, cancel := context.WithCancel(ctx)
	relay := NewRelay(src, cancel)
	for _, out := range outputs {
		relay.AddOutput(out)
	}

	f.mu.Lock()
	if old, ok := f.relays[key]; ok {
		logger.Info().Msg("replacing existing relay for track")
		old.markAllDelete()
		old.cancel()
	}
	f.relays[key] = relay
	f.mu.Unlock()

	logger.Info().Int("outputs", len(outputs)).Msg("starting relay loop")

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		relay.loop(relayCtx, &logger)
		f.mu.Lock()
		if f.relays[key] == relay {
			delete(f.relays, key)
		}
		f.mu.Unlock()
	}()
	return nil
}

// Relay returns the relay for key while it runs.
func (f *Fanout) Relay(key string) (*Relay, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.relays[key]
	return r, ok
}

// Close stops every relay. Relays blocked on a read exit when the track ends.
func (f *Fanout) Close() {
	f.mu.Lock()
	for _, r := range f.relays {
		r.markAllDelete()
		r.cancel()
	}
	f.mu.Unlock()
}

func (f *Fanout) Wait() { f.wg.Wait() }

func (f *Fanout) outputsFor(codec webrtc.RTPCodecCapability, kind webrtc.RTPCodecType, trackID, streamID string) ([]*Output, error) {
	var outputs []*Output

	if f.cfg.RecordDir != "" {
		rec, err := f.recorder(codec, trackID, streamID)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			outputs = append(outputs, rec)
		}
	}

	if f.cfg.Echo && f.echo != nil {
		local, err := webrtc.NewTrackLocalStaticRTP(codec, "echo-"+trackID, "echo-"+streamID)
		if err != nil {
			return nil, fmt.Errorf("echo track: %w", err)
		}
		if _, err := f.echo.AddTrack(local); err != nil {
			return nil, fmt.Errorf("add echo track: %w", err)
		}
		f.log.Info().Str("kind", kind.String()).Str("track_id", trackID).Msg("echo track added")
		outputs = append(outputs, NewOutput("echo", local))
	}
	return outputs, nil
}

func (f *Fanout) recorder(codec webrtc.RTPCodecCapability, trackID, streamID string) (*Output, error) {
	if err := os.MkdirAll(f.cfg.RecordDir, 0o755); err != nil {
		return nil, fmt.Errorf("record dir: %w", err)
	}
	base := filepath.Join(f.cfg.RecordDir, recordName(streamID, trackID))

	switch {
	case strings.EqualFold(codec.MimeType, webrtc.MimeTypeVP8):
		w, err := ivfwriter.New(base + ".ivf")
		if err != nil {
			return nil, fmt.Errorf("ivf writer: %w", err)
		}
		return NewOutput("record", w), nil
	case strings.EqualFold(codec.MimeType, webrtc.MimeTypeOpus):
		w, err := oggwriter.New(base+".ogg", 48000, 2)
		if err != nil {
			return nil, fmt.Errorf("ogg writer: %w", err)
		}
		return NewOutput("record", w), nil
	default:
		f.log.Warn().Str("codec", codec.MimeType).Str("track_id", trackID).Msg("no recorder for codec")
		return nil, nil
	}
}

// recordName keeps remote-chosen ids from escaping the record dir.
func recordName(streamID, trackID string) string {
	clean := func(s string) string {
		return strings.Map(func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
				return r
			}
			return '_'
		}, s)
	}
	return clean(streamID) + "-" + clean(trackID)
}
