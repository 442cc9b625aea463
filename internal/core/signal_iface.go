package core

import (
	"context"

	"github.com/dkeye/Rendezvous/internal/domain"
)

// Frame is a raw signaling payload as relayed by the rendezvous.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// SignalChannel is the peer's reconnectable message channel to the remote
// side. Messages and readiness changes are delivered through the callbacks
// in the order they happen on the wire.
type SignalChannel interface {
	Send(domain.Message) error
	Readiness() domain.Readiness
	OnMessage(func(domain.Message))
	// OnReadinessChange reports every transition; err is set on the
	// terminal Closed after the reconnect policy gave up.
	OnReadinessChange(func(domain.Readiness, error))
}

// SignalTransport is a SignalChannel the session can run and stop.
type SignalTransport interface {
	SignalChannel
	Run(ctx context.Context) error
	Close()
}
