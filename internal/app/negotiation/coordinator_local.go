package negotiation

import (
	"context"

	"github.com/dkeye/Rendezvous/internal/domain"
)

// handleNegotiationNeeded starts an offer, unless a round is already open.
// Then the request is remembered and replayed once the round settles. A
// request raised before the last local offer was set is already part of it.
func (c *Coordinator) handleNegotiationNeeded(ctx context.Context, seq uint64) error {
	if seq <= c.covered {
		c.log.Debug().Uint64("seq", seq).Uint64("covered", c.covered).Msg("negotiation needed, covered by last offer")
		return nil
	}
	if c.offerPending || c.negotiation == domain.NegotiationHaveRemoteOffer {
		c.renegotiate = true
		c.log.Debug().Str("negotiation", c.negotiation.String()).Msg("negotiation needed, deferred")
		c.notify(Notification{Kind: NotifyRenegotiationDeferred})
		return nil
	}
	return c.startOffer(ctx)
}

func (c *Coordinator) startOffer(ctx context.Context) error {
	c.renegotiate = false
	c.setRound(domain.PhaseNegotiating)

	var offer domain.SessionDescription
	if err := c.await(ctx, "create offer", func() (err error) {
		offer, err = c.engine.CreateOffer()
		return err
	}); err != nil {
		return c.fail(err)
	}
	if err := c.await(ctx, "set local offer", func() error {
		return c.engine.SetLocalDescription(offer)
	}); err != nil {
		return c.fail(err)
	}
	c.covered = c.needSeq.Load()
	c.negotiation = domain.NegotiationHaveLocalOffer
	c.offerPending = true
	c.send(domain.DescriptionMessage(offer))
	c.log.Info().Msg("offer sent")
	return nil
}

func (c *Coordinator) resumeDeferred(ctx context.Context) error {
	if !c.renegotiate || c.negotiation != domain.NegotiationStable {
		return nil
	}
	c.log.Debug().Msg("running deferred negotiation")
	return c.startOffer(ctx)
}
