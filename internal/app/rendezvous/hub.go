// Package rendezvous relays opaque signaling frames between peers by topic.
// A peer subscribes to its own id and publishes to the id of the other side.
package rendezvous

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrTopicFull    = errors.New("topic buffer full")
	ErrUnsubscribed = errors.New("subscription closed")
)

type Config struct {
	// TopicBuffer is how many frames a topic keeps while nobody listens.
	TopicBuffer int
	// SubscriberBuffer is the queue length of one subscription.
	SubscriberBuffer int
	PublishTimeout   time.Duration
	CleanupInterval  time.Duration
}

func DefaultConfig() Config {
	return Config{
		TopicBuffer:      20,
		SubscriberBuffer: 100,
		PublishTimeout:   5 * time.Second,
		CleanupInterval:  5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TopicBuffer <= 0 {
		c.TopicBuffer = d.TopicBuffer
	}
	if c.SubscriberBuffer <= 0 {
		c.SubscriberBuffer = d.SubscriberBuffer
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = d.PublishTimeout
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = d.CleanupInterval
	}
	return c
}

// Delivery is one published frame. Seq orders frames across the hub.
type Delivery struct {
	Seq   uint64
	Frame core.Frame
}

type topic struct {
	subscribers map[*Subscription]struct{}
	buffer      []Delivery
}

// Hub owns every topic. Safe for concurrent use.
type Hub struct {
	cfg Config
	log zerolog.Logger

	mu     sync.Mutex
	topics map[domain.PeerID]*topic
	seq    uint64
}

func NewHub(cfg Config) *Hub {
	return &Hub{
		cfg:    cfg.withDefaults(),
		log:    log.With().Str("module", "app.rendezvous").Logger(),
		topics: make(map[domain.PeerID]*topic),
	}
}

func (h *Hub) topicLocked(name domain.PeerID) *topic {
	t, ok := h.topics[name]
	if !ok {
		t = &topic{subscribers: make(map[*Subscription]struct{})}
		h.topics[name] = t
		h.log.Debug().Str("topic", string(name)).Msg("topic created")
	}
	return t
}

// Subscribe registers a listener on name. Frames buffered while the topic
// had no listener are handed to it first, in publish order.
func (h *Hub) Subscribe(name domain.PeerID) *Subscription {
	sub := &Subscription{
		hub:   h,
		topic: name,
		ch:    make(chan Delivery, h.cfg.SubscriberBuffer),
		done:  make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	sub.joined = h.seq
	t := h.topicLocked(name)
	t.subscribers[sub] = struct{}{}

	flushed := 0
	for _, d := range t.buffer {
		select {
		case sub.ch <- d:
			flushed++
		default:
			h.log.Warn().Str("topic", string(name)).Msg("subscriber queue full, dropping buffered frame")
		}
	}
	t.buffer = nil

	h.log.Info().Str("topic", string(name)).Int("subscribers", len(t.subscribers)).Int("flushed", flushed).Msg("subscribed")
	return sub
}

// unsubscribe removes sub and rescues the frames it never wrote out: they go
// to subscribers that joined after the frame was published, or back into
// the topic buffer when nobody is left.
func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.topics[sub.topic]
	if !ok {
		return
	}
	if _, ok := t.subscribers[sub]; !ok {
		return
	}
	delete(t.subscribers, sub)

	var unread []Delivery
	for {
		select {
		case d := <-sub.ch:
			unread = append(unread, d)
			continue
		default:
		}
		break
	}
	rescued := h.requeueLocked(t, unread)
	h.log.Info().Str("topic", string(sub.topic)).Int("subscribers", len(t.subscribers)).
		Int("unread", len(unread)).Int("rescued", rescued).Msg("unsubscribed")
}

// requeueLocked hands orphaned deliveries, oldest first, to later
// subscribers or the topic buffer.
func (h *Hub) requeueLocked(t *topic, orphans []Delivery) int {
	if len(orphans) == 0 {
		return 0
	}
	live := make([]*Subscription, 0, len(t.subscribers))
	for s := range t.subscribers {
		if !s.stopped() {
			live = append(live, s)
		}
	}
	if len(live) == 0 {
		have := make(map[uint64]bool, len(t.buffer))
		for _, d := range t.buffer {
			have[d.Seq] = true
		}
		fresh := orphans[:0:0]
		for _, d := range orphans {
			if !have[d.Seq] {
				fresh = append(fresh, d)
			}
		}
		orphans = fresh
		room := h.cfg.TopicBuffer - len(t.buffer)
		if room <= 0 || len(orphans) == 0 {
			return 0
		}
		if len(orphans) > room {
			orphans = orphans[:room]
		}
		merged := make([]Delivery, 0, len(orphans)+len(t.buffer))
		merged = append(merged, orphans...)
		merged = append(merged, t.buffer...)
		sort.SliceStable(merged, func(i, j int) bool { return merged[i].Seq < merged[j].Seq })
		t.buffer = merged
		return len(orphans)
	}
	rescued := 0
	for _, d := range orphans {
		for _, s := range live {
			if s.joined < d.Seq {
				continue
			}
			select {
			case s.ch <- d:
				rescued++
			default:
			}
		}
	}
	return rescued
}

// Publish hands f to every subscriber of name, or buffers it when there is
// none. It returns the number of subscribers that accepted the frame; a
// subscriber that stays full for PublishTimeout misses it.
func (h *Hub) Publish(ctx context.Context, name domain.PeerID, f core.Frame) (int, error) {
	h.mu.Lock()
	h.seq++
	d := Delivery{Seq: h.seq, Frame: f}
	t := h.topicLocked(name)
	if len(t.subscribers) == 0 {
		defer h.mu.Unlock()
		if len(t.buffer) >= h.cfg.TopicBuffer {
			h.log.Warn().Str("topic", string(name)).Int("buffered", len(t.buffer)).Msg("topic buffer full, frame dropped")
			return 0, ErrTopicFull
		}
		t.buffer = append(t.buffer, d)
		h.log.Debug().Str("topic", string(name)).Int("buffered", len(t.buffer)).Msg("frame buffered")
		return 0, nil
	}
	subs := make([]*Subscription, 0, len(t.subscribers))
	for s := range t.subscribers {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	delivered, orphaned := 0, false
	for _, s := range subs {
		if err := s.deliver(ctx, d, h.cfg.PublishTimeout); err != nil {
			if ctx.Err() != nil {
				return delivered, ctx.Err()
			}
			if errors.Is(err, ErrUnsubscribed) {
				orphaned = true
				continue
			}
			h.log.Warn().Err(err).Str("topic", string(name)).Msg("subscriber missed frame")
			continue
		}
		delivered++
	}
	if orphaned {
		h.mu.Lock()
		h.requeueLocked(h.topicLocked(name), []Delivery{d})
		h.mu.Unlock()
	}
	return delivered, nil
}

// Sweep drops topics that have neither subscribers nor buffered frames.
func (h *Hub) Sweep() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	removed := 0
	for name, t := range h.topics {
		if len(t.subscribers) == 0 && len(t.buffer) == 0 {
			delete(h.topics, name)
			removed++
		}
	}
	if removed > 0 {
		h.log.Info().Int("removed", removed).Int("topics", len(h.topics)).Msg("empty topics cleaned")
	}
	return removed
}

// Run sweeps on CleanupInterval until ctx ends.
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.Sweep()
		}
	}
}

func (h *Hub) Topics() []domain.TopicInfo {
	h.mu.Lock()
	out := make([]domain.TopicInfo, 0, len(h.topics))
	for name, t := range h.topics {
		out = append(out, domain.TopicInfo{Name: name, Subscribers: len(t.subscribers), Buffered: len(t.buffer)})
	}
	h.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Subscription is one listener on a topic.
type Subscription struct {
	hub    *Hub
	topic  domain.PeerID
	joined uint64
	ch     chan Delivery
	done   chan struct{}
	once   sync.Once

	// mu is held for reading while a publisher may send on ch.
	mu     sync.RWMutex
	closed bool
}

func (s *Subscription) Topic() domain.PeerID { return s.topic }

// Frames yields published frames. It is never closed; select on Done too.
func (s *Subscription) Frames() <-chan Delivery { return s.ch }

func (s *Subscription) Done() <-chan struct{} { return s.done }

// Close stops the subscription. Frames still queued on it are rescued for
// whoever listens on the topic next.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		// waits out publishers blocked in deliver; done releases them
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.hub.unsubscribe(s)
	})
}

func (s *Subscription) stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Subscription) deliver(ctx context.Context, d Delivery, timeout time.Duration) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrUnsubscribed
	}
	select {
	case <-s.done:
		return ErrUnsubscribed
	default:
	}
	select {
	case s.ch <- d:
		return nil
	default:
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case s.ch <- d:
		return nil
	case <-s.done:
		return ErrUnsubscribed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return context.DeadlineExceeded
	}
}
