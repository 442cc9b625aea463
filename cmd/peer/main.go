package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Rendezvous/internal/adapters/channel"
	"github.com/dkeye/Rendezvous/internal/adapters/media"
	"github.com/dkeye/Rendezvous/internal/adapters/rtc"
	"github.com/dkeye/Rendezvous/internal/app/negotiation"
	"github.com/dkeye/Rendezvous/internal/app/session"
	"github.com/dkeye/Rendezvous/internal/config"
	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	flags := config.PeerFlags()
	if err := flags.Parse(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("bad flags")
	}
	cfg, err := config.Load(flags)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		zerolog.SetGlobalLevel(lvl)
	}

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("peer stopped")
		os.Exit(1)
	}
	log.Info().Msg("peer exited gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	pc := cfg.Peer
	self := pc.UserID
	if self == "" {
		self = string(domain.NewPeerID())
	}
	pair, err := domain.NewPair(self, pc.PeerID)
	if err != nil {
		return err
	}
	role, err := domain.ResolveRole(domain.Role(pc.Role), pair)
	if err != nil {
		return err
	}
	url, err := channel.AddressFor(pc.Location, pair)
	if err != nil {
		return err
	}
	logger := log.With().Str("module", "peer").Str("user", string(pair.Self)).Str("peer", string(pair.Remote)).Logger()
	logger.Info().Str("role", string(role)).Str("url", url).Msg("starting")

	ch := channel.New(url, channel.NewDialer(10*time.Second), channel.Config{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		WriteWait:  pc.WriteWait,
		Reconnect: channel.ReconnectPolicy{
			Initial:     pc.Reconnect.Initial,
			MaxInterval: pc.Reconnect.MaxInterval,
			MaxAttempts: pc.Reconnect.MaxAttempts,
			Jitter:      pc.Reconnect.Jitter,
		},
	})

	rtcCfg := rtc.DefaultConfig()
	rtcCfg.ICECandidatePoolSize = pc.ICECandidatePoolSize
	if len(pc.ICEServers) > 0 {
		rtcCfg.ICEServers = rtcCfg.ICEServers[:0]
		for _, s := range pc.ICEServers {
			rtcCfg.ICEServers = append(rtcCfg.ICEServers, webrtc.ICEServer{
				URLs:       s.URLs,
				Username:   s.Username,
				Credential: s.Credential,
			})
		}
	}
	api, err := rtc.NewAPI(rtcCfg)
	if err != nil {
		return err
	}
	conn, err := rtc.NewConnection(ctx, api, rtcCfg, string(pair.Self))
	if err != nil {
		return err
	}

	var source core.MediaSource
	if pc.Media.Video != "" || pc.Media.Audio != "" {
		source = media.NewFileSource(media.FileSourceConfig{
			Video:    pc.Media.Video,
			Audio:    pc.Media.Audio,
			StreamID: string(pair.Self),
		})
	}
	fanout := media.NewFanout(media.FanoutConfig{
		RecordDir: pc.Media.RecordDir,
		Echo:      pc.Media.Echo,
	}, conn)
	defer func() {
		fanout.Close()
		fanout.Wait()
	}()

	sess := session.New(conn, ch, session.Options{
		ID:             string(pair.Self),
		Role:           role,
		BufferCapacity: pc.BufferCapacity,
		Source:         source,
		Sink:           fanout,
		OnEvent: func(n negotiation.Notification) {
			ev := logger.Info()
			if n.Err != nil {
				ev = logger.Warn().Err(n.Err)
			}
			ev.Str("kind", n.Kind.String()).
				Str("phase", n.Phase.String()).
				Str("state", string(n.State)).
				Int("count", n.Count).
				Msg("session event")
		},
	})

	err = sess.Run(ctx)
	var terr *core.TransportError
	if errors.As(err, &terr) {
		logger.Error().Str("op", terr.Op).Msg("signaling lost")
	}
	return err
}
