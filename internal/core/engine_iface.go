package core

import "github.com/dkeye/Rendezvous/internal/domain"

// Negotiator is the part of a peer connection the coordinator drives.
// Every call may block until the engine has finished the operation.
type Negotiator interface {
	ApplyRemoteDescription(domain.SessionDescription) error
	CreateOffer() (domain.SessionDescription, error)
	CreateAnswer() (domain.SessionDescription, error)
	SetLocalDescription(domain.SessionDescription) error
	// Rollback drops a pending local offer and returns the engine to stable.
	Rollback() error
	AddCandidate(domain.Candidate) error

	// OnNegotiationNeeded fires when tracks were added or removed.
	OnNegotiationNeeded(func())
	// OnLocalCandidate fires for each gathered candidate; nil marks the end of gathering.
	OnLocalCandidate(func(*domain.Candidate))
	OnConnectionStateChange(func(domain.ConnectionState))
}
