package negotiation

import "github.com/dkeye/Rendezvous/internal/domain"

// event is everything the coordinator loop consumes. Engine callbacks,
// channel callbacks and timers all become one of these and go through
// the same inbox.
type event interface {
	name() string
}

type remoteMessage struct{ msg domain.Message }

type readinessChanged struct {
	readiness domain.Readiness
	err       error
}

// negotiationNeeded carries the order in which the engine raised it, so a
// request the last local offer already covers can be recognised.
type negotiationNeeded struct {
	seq uint64
}

// localCandidate carries nil at the end of gathering.
type localCandidate struct{ candidate *domain.Candidate }

type connectionStateChanged struct{ state domain.ConnectionState }

func (remoteMessage) name() string          { return "remote-message" }
func (readinessChanged) name() string       { return "readiness" }
func (negotiationNeeded) name() string      { return "negotiation-needed" }
func (localCandidate) name() string         { return "local-candidate" }
func (connectionStateChanged) name() string { return "connection-state" }

type NotificationKind int

const (
	NotifyPhase NotificationKind = iota
	NotifyConnectionState
	NotifyCandidatesFlushed
	NotifyBufferOverflow
	NotifyEngineError
	NotifyTransportFailure
	NotifyOfferIgnored
	NotifyRenegotiationDeferred
)

func (k NotificationKind) String() string {
	switch k {
	case NotifyPhase:
		return "phase"
	case NotifyConnectionState:
		return "connection-state"
	case NotifyCandidatesFlushed:
		return "candidates-flushed"
	case NotifyBufferOverflow:
		return "buffer-overflow"
	case NotifyEngineError:
		return "engine-error"
	case NotifyTransportFailure:
		return "transport-failure"
	case NotifyOfferIgnored:
		return "offer-ignored"
	case NotifyRenegotiationDeferred:
		return "renegotiation-deferred"
	}
	return "unknown"
}

// Notification is what the coordinator reports to its owner. Only the
// fields relevant to Kind are set.
type Notification struct {
	Kind  NotificationKind
	Phase domain.Phase
	State domain.ConnectionState
	Count int
	Err   error
}

// Status is a point-in-time snapshot of the coordinator.
type Status struct {
	Phase         domain.Phase
	Negotiation   domain.NegotiationState
	Readiness     domain.Readiness
	RemoteApplied bool
	Buffered      int
	Queued        int
}
