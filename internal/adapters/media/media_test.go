package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedReader struct {
	mu      sync.Mutex
	packets []*rtp.Packet
}

func (s *scriptedReader) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.packets) == 0 {
		return nil, nil, io.EOF
	}
	p := s.packets[0]
	s.packets = s.packets[1:]
	return p, nil, nil
}

type collectingWriter struct {
	mu     sync.Mutex
	seqs   []uint16
	fail   bool
	closed bool
}

func (w *collectingWriter) WriteRTP(p *rtp.Packet) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return errors.New("sink gone")
	}
	w.seqs = append(w.seqs, p.SequenceNumber)
	return nil
}

func (w *collectingWriter) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return nil
}

func (w *collectingWriter) snapshot() ([]uint16, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]uint16(nil), w.seqs...), w.closed
}

func packets(seqs ...uint16) []*rtp.Packet {
	out := make([]*rtp.Packet, 0, len(seqs))
	for _, s := range seqs {
		out = append(out, &rtp.Packet{Header: rtp.Header{Version: 2, SequenceNumber: s}})
	}
	return out
}

func TestFanout_RelaysToOutputs(t *testing.T) {
	f := NewFanout(FanoutConfig{}, nil)
	src := &scriptedReader{packets: packets(1, 2, 3)}

	good := &collectingWriter{}
	broken := &collectingWriter{fail: true}
	muted := &collectingWriter{}
	mutedOut := NewOutput("muted", muted)
	mutedOut.MarkMuted()

	require.NoError(t, f.Attach(context.Background(), "stream/track", src,
		NewOutput("good", good), NewOutput("broken", broken), mutedOut))
	f.Wait()

	seqs, closed := good.snapshot()
	assert.Equal(t, []uint16{1, 2, 3}, seqs)
	assert.True(t, closed)

	seqs, closed = broken.snapshot()
	assert.Empty(t, seqs)
	assert.True(t, closed)

	seqs, _ = muted.snapshot()
	assert.Empty(t, seqs)

	_, ok := f.Relay("stream/track")
	assert.False(t, ok, "finished relay is forgotten")
}

type blockingReader struct {
	release chan struct{}
}

func (b *blockingReader) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	<-b.release
	return nil, nil, io.EOF
}

func TestFanout_CloseMarksOutputs(t *testing.T) {
	f := NewFanout(FanoutConfig{}, nil)
	src := &blockingReader{release: make(chan struct{})}
	out := NewOutput("good", &collectingWriter{})

	require.NoError(t, f.Attach(context.Background(), "k", src, out))
	r, ok := f.Relay("k")
	require.True(t, ok)
	assert.Equal(t, 1, r.OutputCount())

	f.Close()
	assert.Equal(t, OutputDelete, out.State())

	close(src.release)
	f.Wait()
}

type fakeAdder struct {
	added []webrtc.TrackLocal
}

func (a *fakeAdder) AddTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error) {
	a.added = append(a.added, track)
	return nil, nil
}

func TestFanout_OutputsFor(t *testing.T) {
	dir := t.TempDir()
	adder := &fakeAdder{}
	f := NewFanout(FanoutConfig{RecordDir: dir, Echo: true}, adder)

	outs, err := f.outputsFor(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		webrtc.RTPCodecTypeVideo, "video", "cam/1")
	require.NoError(t, err)
	require.Len(t, outs, 2)
	assert.Equal(t, "record", outs[0].Name)
	assert.Equal(t, "echo", outs[1].Name)
	for _, o := range outs {
		closeWriter(o, &f.log)
	}

	_, err = os.Stat(filepath.Join(dir, "cam_1-video.ivf"))
	assert.NoError(t, err)

	require.Len(t, adder.added, 1)
	assert.Equal(t, "echo-video", adder.added[0].ID())
	assert.Equal(t, "echo-cam/1", adder.added[0].StreamID())

	// unknown codec: no recorder, echo only
	outs, err = f.outputsFor(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264, ClockRate: 90000},
		webrtc.RTPCodecTypeVideo, "h264", "cam")
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, "echo", outs[0].Name)
}

func TestRecordName(t *testing.T) {
	assert.Equal(t, "___etc_passwd-track_1", recordName("../etc/passwd", "track 1"))
	assert.Equal(t, "stream-A_b-9", recordName("stream", "A_b-9"))
}

type sampleSink struct {
	samples []pionmedia.Sample
}

func (s *sampleSink) WriteSample(smp pionmedia.Sample) error {
	s.samples = append(s.samples, smp)
	return nil
}

// ivfFile builds a minimal IVF container with the given frame payloads.
func ivfFile(frames ...[]byte) []byte {
	var buf bytes.Buffer
	header := make([]byte, 32)
	copy(header[0:4], "DKIF")
	binary.LittleEndian.PutUint16(header[4:], 0)  // version
	binary.LittleEndian.PutUint16(header[6:], 32) // header size
	copy(header[8:12], "VP80")
	binary.LittleEndian.PutUint16(header[12:], 640)
	binary.LittleEndian.PutUint16(header[14:], 480)
	binary.LittleEndian.PutUint32(header[16:], 1000) // timebase denominator
	binary.LittleEndian.PutUint32(header[20:], 1)    // timebase numerator
	binary.LittleEndian.PutUint32(header[24:], uint32(len(frames)))
	buf.Write(header)
	for i, f := range frames {
		fh := make([]byte, 12)
		binary.LittleEndian.PutUint32(fh[0:], uint32(len(f)))
		binary.LittleEndian.PutUint64(fh[4:], uint64(i))
		buf.Write(fh)
		buf.Write(f)
	}
	return buf.Bytes()
}

func TestStreamIVF(t *testing.T) {
	sink := &sampleSink{}
	data := ivfFile([]byte{1, 2, 3}, []byte{4, 5}, []byte{6})

	require.NoError(t, StreamIVF(context.Background(), bytes.NewReader(data), sink))
	require.Len(t, sink.samples, 3)
	assert.Equal(t, []byte{1, 2, 3}, sink.samples[0].Data)
	assert.Equal(t, []byte{6}, sink.samples[2].Data)
	assert.Equal(t, time.Millisecond, sink.samples[0].Duration)
}

func TestStreamIVF_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := StreamIVF(ctx, bytes.NewReader(ivfFile([]byte{1})), &sampleSink{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStreamIVF_BadHeader(t *testing.T) {
	err := StreamIVF(context.Background(), bytes.NewReader([]byte("not an ivf file at all, really....")), &sampleSink{})
	assert.Error(t, err)
}

func TestFileSource_Tracks(t *testing.T) {
	src := NewFileSource(FileSourceConfig{Video: "in.ivf", Audio: "in.ogg", StreamID: "me"})
	tracks, err := src.Tracks()
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, webrtc.RTPCodecTypeVideo, tracks[0].Kind())
	assert.Equal(t, webrtc.RTPCodecTypeAudio, tracks[1].Kind())
	assert.Equal(t, "me", tracks[0].StreamID())

	none, err := NewFileSource(FileSourceConfig{}).Tracks()
	require.NoError(t, err)
	assert.Empty(t, none)
}
