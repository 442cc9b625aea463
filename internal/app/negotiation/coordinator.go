package negotiation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultInboxSize = 256

type Options struct {
	// Role must be RolePolite or RoleImpolite; resolve RoleAuto before.
	Role           domain.Role
	BufferCapacity int
	InboxSize      int
	// SessionID is attached to every log line.
	SessionID string
	// OnEvent is called from the coordinator goroutine and must not block.
	OnEvent func(Notification)
}

// Coordinator owns one negotiation between a local engine and a remote peer.
// All state below the inbox is touched only by the goroutine running Run.
type Coordinator struct {
	engine  core.Negotiator
	channel core.SignalChannel
	opts    Options
	log     zerolog.Logger

	inbox     chan event
	done      chan struct{}
	closeOnce sync.Once
	running   atomic.Bool
	status    atomic.Pointer[Status]
	needSeq   atomic.Uint64

	backlog []event
	buffer  *CandidateBuffer
	outbox  []domain.Message

	readiness     domain.Readiness
	negotiation   domain.NegotiationState
	round         domain.Phase
	lastPhase     domain.Phase
	started       bool
	closed        bool
	remoteApplied bool
	offerPending  bool
	renegotiate   bool
	// covered is the last negotiation request raised before the current
	// local offer was set.
	covered uint64
}

// New wires the coordinator into the engine and channel callbacks. Events
// raised before Run starts wait in the inbox.
func New(engine core.Negotiator, channel core.SignalChannel, opts Options) *Coordinator {
	if opts.InboxSize <= 0 {
		opts.InboxSize = DefaultInboxSize
	}
	if opts.Role != domain.RolePolite {
		opts.Role = domain.RoleImpolite
	}
	c := &Coordinator{
		engine:    engine,
		channel:   channel,
		opts:      opts,
		inbox:     make(chan event, opts.InboxSize),
		done:      make(chan struct{}),
		buffer:    NewCandidateBuffer(opts.BufferCapacity),
		readiness: channel.Readiness(),
		round:     domain.PhaseIdle,
		lastPhase: domain.PhaseIdle,
	}
	c.log = log.With().
		Str("module", "negotiation").
		Str("sid", opts.SessionID).
		Str("role", string(opts.Role)).
		Logger()
	c.storeStatus()

	engine.OnNegotiationNeeded(func() { c.post(negotiationNeeded{seq: c.needSeq.Add(1)}) })
	engine.OnLocalCandidate(func(cand *domain.Candidate) { c.post(localCandidate{candidate: cand}) })
	engine.OnConnectionStateChange(func(s domain.ConnectionState) { c.post(connectionStateChanged{state: s}) })
	channel.OnMessage(func(m domain.Message) { c.post(remoteMessage{msg: m}) })
	channel.OnReadinessChange(func(r domain.Readiness, err error) {
		c.post(readinessChanged{readiness: r, err: err})
	})
	return c
}

// post hands an event to the loop. It blocks while the inbox is full and
// drops the event once the coordinator is closed.
func (c *Coordinator) post(ev event) {
	select {
	case c.inbox <- ev:
	case <-c.done:
	}
}

// Run processes events until ctx is done or the channel is closed for good.
// It may be called once.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("negotiation: coordinator already running")
	}
	defer c.teardown()

	c.started = true
	c.publish()
	c.log.Info().Str("readiness", c.readiness.String()).Msg("coordinator started")

	for {
		var ev event
		if len(c.backlog) > 0 {
			ev, c.backlog = c.backlog[0], c.backlog[1:]
		} else {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ev = <-c.inbox:
			}
		}
		err := c.dispatch(ctx, ev)
		c.publish()
		if err != nil {
			return err
		}
	}
}

// Status is safe to call from any goroutine.
func (c *Coordinator) Status() Status {
	return *c.status.Load()
}

func (c *Coordinator) dispatch(ctx context.Context, ev event) error {
	c.log.Trace().Str("event", ev.name()).Msg("dispatch")
	switch ev := ev.(type) {
	case remoteMessage:
		return c.handleRemote(ctx, ev.msg)
	case readinessChanged:
		return c.handleReadiness(ev.readiness, ev.err)
	case negotiationNeeded:
		return c.handleNegotiationNeeded(ctx, ev.seq)
	case localCandidate:
		c.handleLocalCandidate(ev.candidate)
	case connectionStateChanged:
		c.log.Info().Str("state", string(ev.state)).Msg("connection state")
		c.notify(Notification{Kind: NotifyConnectionState, State: ev.state})
	}
	return nil
}

// await runs an engine operation off the loop while the loop keeps taking
// events. Remote candidates that arrive before the remote description is
// applied go straight to the buffer; everything else waits in the backlog
// and is handled once the current event is done.
func (c *Coordinator) await(ctx context.Context, op string, fn func() error) error {
	result := make(chan error, 1)
	go func() { result <- fn() }()
	for {
		select {
		case err := <-result:
			if err != nil {
				return &core.EngineError{Op: op, Err: err}
			}
			return nil
		case ev := <-c.inbox:
			if rm, ok := ev.(remoteMessage); ok && rm.msg.Type == domain.MessageCandidate &&
				rm.msg.ICE != nil && !c.remoteApplied {
				c.bufferCandidate(*rm.msg.ICE)
				continue
			}
			c.backlog = append(c.backlog, ev)
		case <-ctx.Done():
			c.log.Debug().Str("op", op).Msg("engine operation abandoned")
			return ctx.Err()
		}
	}
}

// fail reports an engine error and keeps the loop alive. Anything else
// (cancellation) is returned so Run stops.
func (c *Coordinator) fail(err error) error {
	var ee *core.EngineError
	if !errors.As(err, &ee) {
		return err
	}
	c.log.Error().Err(ee.Err).Str("op", ee.Op).Str("negotiation", c.negotiation.String()).Msg("engine operation failed")
	c.notify(Notification{Kind: NotifyEngineError, Err: err})
	return nil
}

func (c *Coordinator) handleReadiness(r domain.Readiness, cause error) error {
	prev := c.readiness
	c.readiness = r
	switch r {
	case domain.ReadinessOpen:
		c.log.Info().Int("queued", len(c.outbox)).Msg("signaling channel open")
		c.flush()
	case domain.ReadinessConnecting:
		if prev == domain.ReadinessOpen {
			c.log.Warn().Msg("signaling channel lost, waiting for reconnect")
		}
	case domain.ReadinessClosed:
		if cause == nil {
			cause = core.ErrChannelClosed
		}
		c.log.Error().Err(cause).Msg("signaling channel closed")
		c.notify(Notification{Kind: NotifyTransportFailure, Err: cause})
		var te *core.TransportError
		if errors.As(cause, &te) {
			return cause
		}
		return &core.TransportError{Op: "channel", Err: cause}
	}
	return nil
}

func (c *Coordinator) handleLocalCandidate(cand *domain.Candidate) {
	if cand == nil {
		c.log.Debug().Msg("local candidate gathering complete")
		return
	}
	c.send(domain.CandidateMessage(*cand))
}

// send delivers msg now when the channel is open and nothing is queued
// ahead of it, otherwise it waits in the outbox for the next Open.
func (c *Coordinator) send(msg domain.Message) {
	if c.readiness != domain.ReadinessOpen || len(c.outbox) > 0 {
		c.outbox = append(c.outbox, msg)
		c.log.Debug().Str("type", string(msg.Type)).Int("queued", len(c.outbox)).Msg("message queued")
		return
	}
	if err := c.channel.Send(msg); err != nil {
		c.log.Warn().Err(err).Str("type", string(msg.Type)).Msg("send failed, queued for retry")
		c.outbox = append(c.outbox, msg)
	}
}

func (c *Coordinator) flush() {
	sent := 0
	for len(c.outbox) > 0 && c.readiness == domain.ReadinessOpen {
		if err := c.channel.Send(c.outbox[0]); err != nil {
			c.log.Warn().Err(err).Int("remaining", len(c.outbox)).Msg("flush interrupted")
			break
		}
		c.outbox[0] = domain.Message{}
		c.outbox = c.outbox[1:]
		sent++
	}
	if sent > 0 {
		c.log.Debug().Int("sent", sent).Msg("outbox flushed")
	}
}

func (c *Coordinator) bufferCandidate(cand domain.Candidate) {
	if err := c.buffer.Enqueue(cand); err != nil {
		c.log.Warn().Err(err).Int("cap", c.buffer.Cap()).Msg("remote candidate dropped")
		c.notify(Notification{Kind: NotifyBufferOverflow, Count: c.buffer.Len(), Err: err})
		return
	}
	c.storeStatus()
	c.log.Debug().Int("buffered", c.buffer.Len()).Msg("remote candidate buffered")
}

func (c *Coordinator) setRound(p domain.Phase) {
	c.round = p
	c.publish()
}

func (c *Coordinator) phase() domain.Phase {
	switch {
	case c.closed:
		return domain.PhaseClosed
	case !c.started:
		return domain.PhaseIdle
	case c.readiness != domain.ReadinessOpen:
		return domain.PhaseAwaitingChannel
	default:
		return c.round
	}
}

// publish refreshes the status snapshot and reports a phase change.
func (c *Coordinator) publish() {
	c.storeStatus()
	p := c.phase()
	if p == c.lastPhase {
		return
	}
	c.log.Debug().Str("from", c.lastPhase.String()).Str("to", p.String()).Msg("phase")
	c.lastPhase = p
	c.notify(Notification{Kind: NotifyPhase, Phase: p})
}

func (c *Coordinator) storeStatus() {
	c.status.Store(&Status{
		Phase:         c.phase(),
		Negotiation:   c.negotiation,
		Readiness:     c.readiness,
		RemoteApplied: c.remoteApplied,
		Buffered:      c.buffer.Len(),
		Queued:        len(c.outbox),
	})
}

func (c *Coordinator) notify(n Notification) {
	if c.opts.OnEvent != nil {
		c.opts.OnEvent(n)
	}
}

func (c *Coordinator) teardown() {
	c.closeOnce.Do(func() { close(c.done) })
	dropped := c.buffer.DrainAll()
	c.log.Info().
		Int("dropped_candidates", len(dropped)).
		Int("dropped_messages", len(c.outbox)).
		Msg("coordinator closed")
	c.outbox = nil
	c.backlog = nil
	c.negotiation = domain.NegotiationClosed
	c.closed = true
	c.publish()
}
