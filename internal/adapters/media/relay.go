package media

import (
	"context"
	"io"
	"maps"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/rs/zerolog"
)

// PacketReader is the read side of a remote track.
type PacketReader interface {
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// Relay copies packets from one remote track to its outputs.
type Relay struct {
	Src PacketReader

	mu      sync.RWMutex
	outputs map[string]*Output

	cancel context.CancelFunc
}

func NewRelay(src PacketReader, cancel context.CancelFunc) *Relay {
	return &Relay{
		Src:     src,
		outputs: make(map[string]*Output),
		cancel:  cancel,
	}
}

// loop reads RTP packets from the source track and forwards them to all outputs.
func (r *Relay) loop(ctx context.Context, logger *zerolog.Logger) {
	defer r.closeOutputs(logger)
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("relay ctx done, marking all outputs for delete")
			r.markAllDelete()
			return
		default:
		}
		pkt, _, err := r.Src.ReadRTP()
		if err != nil {
			if err == io.EOF {
				logger.Info().Msg("remote track ended")
			} else {
				logger.Error().Err(err).Msg("relay read RTP error, stopping")
			}
			r.markAllDelete()
			return
		}
		r.forward(pkt, logger)
	}
}

func (r *Relay) forward(pkt *rtp.Packet, logger *zerolog.Logger) {
	r.mu.RLock()
	snapshot := maps.Clone(r.outputs)
	r.mu.RUnlock()

	var dirty []string
	for name, out := range snapshot {
		switch out.State() {
		case OutputDelete:
			dirty = append(dirty, name)
		case OutputMuted:
		case OutputOk:
			if err := out.Writer.WriteRTP(pkt); err != nil {
				logger.Error().
					Err(err).
					Str("output", name).
					Msg("relay write RTP error, marking output as delete")
				out.MarkDelete()
				dirty = append(dirty, name)
			}
		}
	}

	if len(dirty) > 0 {
		r.cleanupDeleted(dirty, logger)
	}
}

func (r *Relay) cleanupDeleted(dirty []string, logger *zerolog.Logger) {
	r.mu.Lock()
	removed := make([]*Output, 0, len(dirty))
	for _, name := range dirty {
		if out, ok := r.outputs[name]; ok {
			removed = append(removed, out)
			delete(r.outputs, name)
		}
	}
	r.mu.Unlock()
	for _, out := range removed {
		closeWriter(out, logger)
	}
}

func (r *Relay) markAllDelete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, out := range r.outputs {
		out.MarkDelete()
	}
}

func (r *Relay) closeOutputs(logger *zerolog.Logger) {
	r.mu.Lock()
	outs := r.outputs
	r.outputs = make(map[string]*Output)
	r.mu.Unlock()
	for _, out := range outs {
		closeWriter(out, logger)
	}
}

func closeWriter(out *Output, logger *zerolog.Logger) {
	c, ok := out.Writer.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		logger.Warn().Err(err).Str("output", out.Name).Msg("close output")
	}
}

func (r *Relay) AddOutput(out *Output) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs[out.Name] = out
}

// Output returns the named output if it is still attached.
func (r *Relay) Output(name string) (*Output, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out, ok := r.outputs[name]
	return out, ok
}

func (r *Relay) OutputCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.outputs)
}
