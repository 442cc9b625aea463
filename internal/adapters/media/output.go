package media

import (
	"sync/atomic"

	"github.com/pion/rtp"
)

type OutputState int32

const (
	OutputOk OutputState = iota
	OutputMuted
	OutputDelete
)

// PacketWriter is satisfied by TrackLocalStaticRTP and the ivf/ogg writers.
type PacketWriter interface {
	WriteRTP(*rtp.Packet) error
}

// Output is one destination of a relay.
type Output struct {
	Name   string
	Writer PacketWriter
	state  atomic.Int32 // Zero by default (OutputOk)
}

func NewOutput(name string, w PacketWriter) *Output {
	return &Output{Name: name, Writer: w}
}

func (o *Output) State() OutputState {
	return OutputState(o.state.Load())
}

func (o *Output) MarkOk() {
	o.state.Store(int32(OutputOk))
}

func (o *Output) MarkMuted() {
	o.state.Store(int32(OutputMuted))
}

func (o *Output) MarkDelete() {
	o.state.Store(int32(OutputDelete))
}
