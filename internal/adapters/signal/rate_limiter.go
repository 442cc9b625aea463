package signal

import (
	"sync"

	"github.com/dkeye/Rendezvous/internal/domain"
	"golang.org/x/time/rate"
)

// RateLimiter caps how fast one user may publish. A non-positive rate
// disables it.
type RateLimiter struct {
	mu      sync.Mutex
	history map[domain.PeerID]*rate.Limiter
	limit   rate.Limit
	burst   int
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		history: make(map[domain.PeerID]*rate.Limiter),
		limit:   limit,
		burst:   burst,
	}
}

func (rl *RateLimiter) Allow(uid domain.PeerID) bool {
	if rl.limit == rate.Inf {
		return true
	}
	rl.mu.Lock()
	l, ok := rl.history[uid]
	if !ok {
		l = rate.NewLimiter(rl.limit, rl.burst)
		rl.history[uid] = l
	}
	rl.mu.Unlock()
	return l.Allow()
}

// Forget drops limiters that have refilled completely.
func (rl *RateLimiter) Forget() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	n := 0
	for uid, l := range rl.history {
		if l.Tokens() >= float64(rl.burst) {
			delete(rl.history, uid)
			n++
		}
	}
	return n
}
