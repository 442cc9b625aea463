package domain

// NegotiationState mirrors the engine's signaling state, owned by the
// coordinator. It decides when candidates may be flushed and descriptions sent.
type NegotiationState int

const (
	NegotiationIdle NegotiationState = iota
	NegotiationHaveLocalOffer
	NegotiationHaveRemoteOffer
	NegotiationStable
	NegotiationClosed
)

func (s NegotiationState) String() string {
	switch s {
	case NegotiationIdle:
		return "idle"
	case NegotiationHaveLocalOffer:
		return "have-local-offer"
	case NegotiationHaveRemoteOffer:
		return "have-remote-offer"
	case NegotiationStable:
		return "stable"
	case NegotiationClosed:
		return "closed"
	}
	return "unknown"
}

// Phase is the coordinator's own lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingChannel
	PhaseNegotiating
	PhaseStable
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingChannel:
		return "awaiting-channel"
	case PhaseNegotiating:
		return "negotiating"
	case PhaseStable:
		return "stable"
	case PhaseClosed:
		return "closed"
	}
	return "unknown"
}

// Readiness of the signaling channel.
type Readiness int

const (
	ReadinessConnecting Readiness = iota
	ReadinessOpen
	ReadinessClosed
)

func (r Readiness) String() string {
	switch r {
	case ReadinessConnecting:
		return "connecting"
	case ReadinessOpen:
		return "open"
	case ReadinessClosed:
		return "closed"
	}
	return "unknown"
}

// ConnectionState is the engine's media connection state, observability only.
type ConnectionState string

const (
	ConnectionNew          ConnectionState = "new"
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionConnected    ConnectionState = "connected"
	ConnectionDisconnected ConnectionState = "disconnected"
	ConnectionFailed       ConnectionState = "failed"
	ConnectionClosed       ConnectionState = "closed"
)
