package negotiation

import (
	"errors"

	"github.com/dkeye/Rendezvous/internal/domain"
)

const DefaultBufferCapacity = 256

var ErrBufferFull = errors.New("candidate buffer full")

// CandidateBuffer holds remote candidates that arrived before a remote
// description was applied. It is owned by the coordinator loop and is not
// safe for concurrent use.
type CandidateBuffer struct {
	items    []domain.Candidate
	capacity int
}

func NewCandidateBuffer(capacity int) *CandidateBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &CandidateBuffer{capacity: capacity}
}

// Enqueue appends c, or fails with ErrBufferFull leaving older entries as they are.
func (b *CandidateBuffer) Enqueue(c domain.Candidate) error {
	if len(b.items) >= b.capacity {
		return ErrBufferFull
	}
	b.items = append(b.items, c)
	return nil
}

// DrainAll empties the buffer and returns its contents in arrival order.
func (b *CandidateBuffer) DrainAll() []domain.Candidate {
	out := b.items
	b.items = nil
	return out
}

func (b *CandidateBuffer) IsEmpty() bool { return len(b.items) == 0 }
func (b *CandidateBuffer) Len() int      { return len(b.items) }
func (b *CandidateBuffer) Cap() int      { return b.capacity }
