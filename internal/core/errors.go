package core

import "errors"

var (
	ErrChannelClosed = errors.New("signaling channel closed")
	ErrNotOpen       = errors.New("signaling channel not open")
)

// EngineError is a failed negotiation engine operation. The negotiation round
// it belongs to is aborted; the session itself keeps running.
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string { return "engine " + e.Op + ": " + e.Err.Error() }
func (e *EngineError) Unwrap() error { return e.Err }

// TransportError is a failed signaling channel operation.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return "transport " + e.Op + ": " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }
