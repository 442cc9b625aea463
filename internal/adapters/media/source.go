package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const opusClockRate = 48000

type SampleWriter interface {
	WriteSample(pionmedia.Sample) error
}

type FileSourceConfig struct {
	// Video is an IVF file with VP8 frames.
	Video string
	// Audio is an Ogg file with Opus pages.
	Audio    string
	StreamID string
}

// FileSource publishes media read from disk, paced by the container timing.
type FileSource struct {
	cfg   FileSourceConfig
	video *webrtc.TrackLocalStaticSample
	audio *webrtc.TrackLocalStaticSample
}

var _ core.MediaSource = (*FileSource)(nil)

func NewFileSource(cfg FileSourceConfig) *FileSource {
	if cfg.StreamID == "" {
		cfg.StreamID = "rendezvous"
	}
	return &FileSource{cfg: cfg}
}

func (s *FileSource) Tracks() ([]webrtc.TrackLocal, error) {
	var tracks []webrtc.TrackLocal
	if s.cfg.Video != "" {
		t, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", s.cfg.StreamID)
		if err != nil {
			return nil, fmt.Errorf("video track: %w", err)
		}
		s.video = t
		tracks = append(tracks, t)
	}
	if s.cfg.Audio != "" {
		t, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", s.cfg.StreamID)
		if err != nil {
			return nil, fmt.Errorf("audio track: %w", err)
		}
		s.audio = t
		tracks = append(tracks, t)
	}
	return tracks, nil
}

// Stream plays every configured file once.
func (s *FileSource) Stream(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if s.video != nil {
		g.Go(func() error { return playFile(ctx, s.cfg.Video, s.video, StreamIVF) })
	}
	if s.audio != nil {
		g.Go(func() error { return playFile(ctx, s.cfg.Audio, s.audio, StreamOgg) })
	}
	return g.Wait()
}

type streamFunc func(ctx context.Context, r io.Reader, w SampleWriter) error

func playFile(ctx context.Context, path string, w SampleWriter, stream streamFunc) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	logger := log.With().Str("module", "media").Str("file", path).Logger()
	logger.Info().Msg("streaming started")
	if err := stream(ctx, f, w); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stream %s: %w", path, err)
	}
	logger.Info().Msg("streaming finished")
	return nil
}

// StreamIVF writes one sample per IVF frame, one frame per timebase tick.
func StreamIVF(ctx context.Context, r io.Reader, w SampleWriter) error {
	ivf, header, err := ivfreader.NewWith(r)
	if err != nil {
		return fmt.Errorf("ivf header: %w", err)
	}
	frameDuration := time.Millisecond
	if header.TimebaseDenominator != 0 {
		if d := time.Duration(uint64(time.Second) * uint64(header.TimebaseNumerator) / uint64(header.TimebaseDenominator)); d > 0 {
			frameDuration = d
		}
	}

	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame, _, err := ivf.ParseNextFrame()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("ivf frame: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := w.WriteSample(pionmedia.Sample{Data: frame, Duration: frameDuration}); err != nil {
			return fmt.Errorf("write sample: %w", err)
		}
	}
}

// StreamOgg writes one sample per Ogg page, sleeping for the page's share
// of the granule clock.
func StreamOgg(ctx context.Context, r io.Reader, w SampleWriter) error {
	ogg, _, err := oggreader.NewWith(r)
	if err != nil {
		return fmt.Errorf("ogg header: %w", err)
	}
	var lastGranule uint64
	for {
		page, header, err := ogg.ParseNextPage()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("ogg page: %w", err)
		}
		samples := header.GranulePosition - lastGranule
		lastGranule = header.GranulePosition
		duration := time.Duration(samples * uint64(time.Second) / opusClockRate)

		if err := w.WriteSample(pionmedia.Sample{Data: page, Duration: duration}); err != nil {
			return fmt.Errorf("write sample: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(duration):
		}
	}
}
