// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

const MaxPeerIDLen = 64

var (
	ErrPeerIDTooLong = errors.New("peer id too long")
	ErrPeerIDEmpty   = errors.New("peer id empty")
	ErrSamePeer      = errors.New("peer id equals own id")
)

// PeerID names one endpoint at the rendezvous. A peer subscribes to its own
// id and publishes to the id of the other side.
type PeerID string

// NewPeerID is a tiny helper for endpoints that were not given an id.
func NewPeerID() PeerID {
	return PeerID(uuid.NewString())
}

func ParsePeerID(raw string) (PeerID, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) == 0 {
		return "", ErrPeerIDEmpty
	}
	if len(raw) > MaxPeerIDLen {
		return "", ErrPeerIDTooLong
	}
	return PeerID(raw), nil
}

// Pair is the (self, remote) identity of one session.
type Pair struct {
	Self   PeerID `json:"userID"`
	Remote PeerID `json:"peerID"`
}

func NewPair(self, remote string) (Pair, error) {
	s, err := ParsePeerID(self)
	if err != nil {
		return Pair{}, err
	}
	r, err := ParsePeerID(remote)
	if err != nil {
		return Pair{}, err
	}
	if s == r {
		return Pair{}, ErrSamePeer
	}
	return Pair{Self: s, Remote: r}, nil
}
