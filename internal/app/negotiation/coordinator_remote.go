package negotiation

import (
	"context"

	"github.com/dkeye/Rendezvous/internal/domain"
)

func (c *Coordinator) handleRemote(ctx context.Context, msg domain.Message) error {
	if err := msg.Validate(); err != nil {
		c.log.Warn().Err(err).Msg("remote message dropped")
		return nil
	}
	switch msg.Type {
	case domain.MessageOffer:
		return c.acceptOffer(ctx, msg.Description())
	case domain.MessageAnswer:
		return c.acceptAnswer(ctx, msg.Description())
	case domain.MessageCandidate:
		return c.acceptCandidate(ctx, *msg.ICE)
	}
	return nil
}

func (c *Coordinator) acceptOffer(ctx context.Context, offer domain.SessionDescription) error {
	if c.offerPending {
		if c.opts.Role != domain.RolePolite {
			c.log.Warn().Msg("offer collision, keeping local offer")
			c.notify(Notification{Kind: NotifyOfferIgnored})
			return nil
		}
		c.log.Info().Msg("offer collision, rolling back local offer")
		if err := c.await(ctx, "rollback", c.engine.Rollback); err != nil {
			return c.fail(err)
		}
		c.offerPending = false
		c.negotiation = domain.NegotiationStable
		c.renegotiate = true
	}

	c.setRound(domain.PhaseNegotiating)
	if err := c.await(ctx, "apply remote offer", func() error {
		return c.engine.ApplyRemoteDescription(offer)
	}); err != nil {
		return c.fail(err)
	}
	c.negotiation = domain.NegotiationHaveRemoteOffer

	var answer domain.SessionDescription
	if err := c.await(ctx, "create answer", func() (err error) {
		answer, err = c.engine.CreateAnswer()
		return err
	}); err != nil {
		return c.fail(err)
	}
	if err := c.await(ctx, "set local answer", func() error {
		return c.engine.SetLocalDescription(answer)
	}); err != nil {
		return c.fail(err)
	}
	c.negotiation = domain.NegotiationStable
	c.send(domain.DescriptionMessage(answer))
	c.log.Info().Msg("answer sent")

	c.setRound(domain.PhaseStable)
	if err := c.remoteDescriptionApplied(ctx); err != nil {
		return err
	}
	return c.resumeDeferred(ctx)
}

func (c *Coordinator) acceptAnswer(ctx context.Context, answer domain.SessionDescription) error {
	if !c.offerPending {
		c.log.Warn().Str("negotiation", c.negotiation.String()).Msg("answer without a local offer")
	}
	if err := c.await(ctx, "apply remote answer", func() error {
		return c.engine.ApplyRemoteDescription(answer)
	}); err != nil {
		if err := c.fail(err); err != nil {
			return err
		}
		return c.abortLocalOffer(ctx)
	}
	c.offerPending = false
	c.negotiation = domain.NegotiationStable
	c.setRound(domain.PhaseStable)
	c.log.Info().Msg("answer applied")

	if err := c.remoteDescriptionApplied(ctx); err != nil {
		return err
	}
	return c.resumeDeferred(ctx)
}

// abortLocalOffer ends a round whose answer was rejected. The local offer is
// void; the phase stays Negotiating until either side offers again.
func (c *Coordinator) abortLocalOffer(ctx context.Context) error {
	c.offerPending = false
	c.negotiation = domain.NegotiationStable
	c.log.Warn().Msg("answer rejected, local offer withdrawn")
	if err := c.await(ctx, "rollback", c.engine.Rollback); err != nil {
		return c.fail(err)
	}
	return nil
}

func (c *Coordinator) acceptCandidate(ctx context.Context, cand domain.Candidate) error {
	if !c.remoteApplied {
		c.bufferCandidate(cand)
		return nil
	}
	return c.applyCandidate(ctx, cand)
}

// remoteDescriptionApplied opens the gate for remote candidates and hands
// the engine everything buffered so far, oldest first.
func (c *Coordinator) remoteDescriptionApplied(ctx context.Context) error {
	c.remoteApplied = true
	pending := c.buffer.DrainAll()
	if len(pending) == 0 {
		return nil
	}
	for _, cand := range pending {
		if err := c.applyCandidate(ctx, cand); err != nil {
			return err
		}
	}
	c.log.Debug().Int("count", len(pending)).Msg("buffered candidates applied")
	c.notify(Notification{Kind: NotifyCandidatesFlushed, Count: len(pending)})
	return nil
}

// applyCandidate treats engine rejection as non-fatal.
func (c *Coordinator) applyCandidate(ctx context.Context, cand domain.Candidate) error {
	err := c.await(ctx, "add candidate", func() error {
		return c.engine.AddCandidate(cand)
	})
	if err == nil || ctx.Err() != nil {
		return err
	}
	c.log.Warn().Err(err).Str("candidate", cand.Candidate).Msg("remote candidate rejected")
	c.notify(Notification{Kind: NotifyEngineError, Err: err})
	return nil
}
