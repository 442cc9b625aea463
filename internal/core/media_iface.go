package core

import (
	"context"

	"github.com/pion/webrtc/v4"
)

type MediaConnection interface {
	Negotiator

	// AddTrack attaches a local track; the engine raises negotiation needed afterwards.
	AddTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error)
	// OnRemoteTrack sets a callback invoked when a remote track arrives.
	// ctx is cancelled when the connection closes.
	OnRemoteTrack(func(ctx context.Context, track *webrtc.TrackRemote, streamID string))
	// Close should stop all underlying media resources.
	Close() error
}

// MediaSource is the capture side handed to the session.
type MediaSource interface {
	// Tracks returns the local tracks to publish. Called once.
	Tracks() ([]webrtc.TrackLocal, error)
	// Stream pushes media into the tracks until ctx is done or input ends.
	Stream(ctx context.Context) error
}

// TrackSink receives remote tracks. Consume must not block; it owns the
// read loop for the track from then on.
type TrackSink interface {
	Consume(ctx context.Context, track *webrtc.TrackRemote, streamID string) error
}
