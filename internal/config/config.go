package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`

	Relay RelayConfig `mapstructure:"relay"`
	Peer  PeerConfig  `mapstructure:"peer"`
}

type RelayConfig struct {
	TopicBuffer      int           `mapstructure:"topic_buffer"`
	SubscriberBuffer int           `mapstructure:"subscriber_buffer"`
	PublishTimeout   time.Duration `mapstructure:"publish_timeout"`
	CleanupInterval  time.Duration `mapstructure:"cleanup_interval"`
	MaxLifetime      time.Duration `mapstructure:"max_lifetime"`
	// RateLimit is relayed messages per second per user; 0 disables it.
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

type PeerConfig struct {
	Location             string          `mapstructure:"location"`
	UserID               string          `mapstructure:"user_id"`
	PeerID               string          `mapstructure:"peer_id"`
	Role                 string          `mapstructure:"role"`
	BufferCapacity       int             `mapstructure:"buffer_capacity"`
	WriteWait            time.Duration   `mapstructure:"write_wait"`
	Reconnect            ReconnectConfig `mapstructure:"reconnect"`
	ICEServers           []ICEServer     `mapstructure:"ice_servers"`
	ICECandidatePoolSize uint8           `mapstructure:"ice_candidate_pool_size"`
	Media                MediaConfig     `mapstructure:"media"`
}

type ReconnectConfig struct {
	Initial     time.Duration `mapstructure:"initial"`
	MaxInterval time.Duration `mapstructure:"max_interval"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Jitter      float64       `mapstructure:"jitter"`
}

type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

type MediaConfig struct {
	Video     string `mapstructure:"video"`
	Audio     string `mapstructure:"audio"`
	RecordDir string `mapstructure:"record_dir"`
	Echo      bool   `mapstructure:"echo"`
}

var defaultICEServers = []map[string]any{
	{"urls": []string{
		"stun:stun.l.google.com:19302",
		"stun:stun1.l.google.com:19302",
		"stun:stun2.l.google.com:19302",
		"stun:stun3.l.google.com:19302",
		"stun:stun4.l.google.com:19302",
	}},
	{"urls": []string{"stun:global.stun.twilio.com:3478?transport=udp"}},
	{"urls": []string{"stun:stun.stunprotocol.org:3478"}},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "rendezvous")
	v.SetDefault("log_level", "info")

	v.SetDefault("relay.topic_buffer", 20)
	v.SetDefault("relay.subscriber_buffer", 100)
	v.SetDefault("relay.publish_timeout", "5s")
	v.SetDefault("relay.cleanup_interval", "5m")
	v.SetDefault("relay.max_lifetime", "30m")
	v.SetDefault("relay.rate_limit", 50)
	v.SetDefault("relay.rate_burst", 100)

	v.SetDefault("peer.location", "http://localhost:8080")
	v.SetDefault("peer.role", "auto")
	v.SetDefault("peer.buffer_capacity", 256)
	v.SetDefault("peer.write_wait", "5s")
	v.SetDefault("peer.reconnect.initial", "1s")
	v.SetDefault("peer.reconnect.max_interval", "10s")
	v.SetDefault("peer.reconnect.max_attempts", 6)
	v.SetDefault("peer.reconnect.jitter", 0.5)
	v.SetDefault("peer.ice_servers", defaultICEServers)
	v.SetDefault("peer.ice_candidate_pool_size", 10)
	v.SetDefault("peer.media.echo", false)
}

// PeerFlags are the command line switches of the peer binary, each bound to
// the config key next to it.
func PeerFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("peer", pflag.ContinueOnError)
	fs.String("location", "", "rendezvous base URL (peer.location)")
	fs.String("user", "", "own peer id (peer.user_id)")
	fs.String("peer", "", "remote peer id (peer.peer_id)")
	fs.String("role", "", "glare role: polite, impolite or auto (peer.role)")
	fs.String("video", "", "IVF file to publish (peer.media.video)")
	fs.String("audio", "", "Ogg/Opus file to publish (peer.media.audio)")
	fs.String("record-dir", "", "directory for received tracks (peer.media.record_dir)")
	fs.Bool("echo", false, "send received tracks back (peer.media.echo)")
	fs.String("log-level", "", "zerolog level (log_level)")
	return fs
}

var flagKeys = map[string]string{
	"location":   "peer.location",
	"user":       "peer.user_id",
	"peer":       "peer.peer_id",
	"role":       "peer.role",
	"video":      "peer.media.video",
	"audio":      "peer.media.audio",
	"record-dir": "peer.media.record_dir",
	"echo":       "peer.media.echo",
	"log-level":  "log_level",
}

// Load reads config/config.<CONFIG_ENV>.yaml over the defaults, then
// RENDEZVOUS_* environment variables, then any flags in fs that were set.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	v.SetEnvPrefix("RENDEZVOUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("static", cfg.StaticPath).Msg("config ready")
	return &cfg, nil
}
