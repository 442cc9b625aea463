package negotiation

import (
	"testing"

	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidateBuffer_FIFO(t *testing.T) {
	b := NewCandidateBuffer(4)
	require.True(t, b.IsEmpty())

	for _, s := range []string{"a", "b", "c"} {
		require.NoError(t, b.Enqueue(domain.Candidate{Candidate: s}))
	}
	assert.Equal(t, 3, b.Len())

	got := b.DrainAll()
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].Candidate)
	assert.Equal(t, "b", got[1].Candidate)
	assert.Equal(t, "c", got[2].Candidate)

	assert.True(t, b.IsEmpty())
	assert.Empty(t, b.DrainAll())
}

func TestCandidateBuffer_Full(t *testing.T) {
	b := NewCandidateBuffer(2)
	require.NoError(t, b.Enqueue(domain.Candidate{Candidate: "a"}))
	require.NoError(t, b.Enqueue(domain.Candidate{Candidate: "b"}))

	err := b.Enqueue(domain.Candidate{Candidate: "c"})
	require.ErrorIs(t, err, ErrBufferFull)

	got := b.DrainAll()
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Candidate)
	assert.Equal(t, "b", got[1].Candidate)

	// room again after a drain
	assert.NoError(t, b.Enqueue(domain.Candidate{Candidate: "d"}))
}

func TestCandidateBuffer_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultBufferCapacity, NewCandidateBuffer(0).Cap())
	assert.Equal(t, DefaultBufferCapacity, NewCandidateBuffer(-3).Cap())
}
