package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dkeye/Rendezvous/internal/app/rendezvous"
	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, cancel context.CancelFunc, c *WsSignalConn, sub *rendezvous.Subscription) {
	ping := time.NewTicker(ctl.cfg.PingPeriod)
	defer func() {
		ping.Stop()
		sub.Close()
		c.Close()
		cancel()
	}()

	write := func(data core.Frame) bool {
		if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.cfg.WriteWait)); err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
			return false
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
			return false
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("topic", string(sub.Topic())).Err(ctx.Err()).Msg("writePump ctx done")
			return
		case d := <-sub.Frames():
			if !write(d.Frame) {
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if !write(data) {
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.cfg.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, pair domain.Pair, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("user", string(pair.Self)).Msg("readPump closing")
		cancel()
		c.Close()
		if ctl.Limiter != nil {
			ctl.Limiter.Forget()
		}
	}()

	pongWait := ctl.cfg.PingPeriod * 10 / 9
	c.conn.SetReadLimit(ctl.cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("user", string(pair.Self)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Info().Str("module", "signal").Str("user", string(pair.Self)).Msg("peer closed")
				} else {
					log.Error().Err(err).Str("module", "signal").Str("user", string(pair.Self)).Msg("readPump read error")
				}
				return
			}
			_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
			ctl.handleSignal(ctx, pair, c, data)
		}
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, pair domain.Pair, c *WsSignalConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch domain.MessageType(env.Type) {
	case domain.MessageOffer, domain.MessageAnswer, domain.MessageCandidate:
		ctl.handleRelay(ctx, pair, c, env.Type, data)
	default:
		switch env.Type {
		case "ping":
			ctl.handlePing(c)
		case "whoami":
			ctl.handleWhoAmI(pair, c)
		default:
			log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		}
	}
}

func (ctl *SignalWSController) handleRelay(ctx context.Context, pair domain.Pair, c *WsSignalConn, typ string, data []byte) {
	logger := log.With().Str("module", "signal").Str("user", string(pair.Self)).Str("peer", string(pair.Remote)).Str("type", typ).Logger()
	if ctl.Limiter != nil && !ctl.Limiter.Allow(pair.Self) {
		logger.Warn().Msg("rate limited")
		ctl.sendError(c, "rate_limited")
		return
	}
	n, err := ctl.Hub.Publish(ctx, pair.Remote, core.Frame(data))
	switch {
	case errors.Is(err, rendezvous.ErrTopicFull):
		ctl.sendError(c, "peer_unavailable")
	case err != nil:
		logger.Error().Err(err).Msg("publish")
	default:
		logger.Debug().Int("delivered", n).Msg("relayed")
	}
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("sendJSON dropped")
	}
}

func (ctl *SignalWSController) sendError(c *WsSignalConn, code string) {
	ctl.sendJSON(c, map[string]any{
		"type":  "error",
		"error": code,
	})
}
