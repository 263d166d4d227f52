package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "RELAY"

// Backpressure policies.
const (
	BackpressureKick = "kick"
	BackpressureDrop = "drop"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`

	PresenceBroadcast bool   `mapstructure:"presence_broadcast"`
	Backpressure      string `mapstructure:"backpressure"`

	// RateLimit is the sustained inbound frames per second per connection.
	// Zero disables limiting.
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`

	ICEServers []ICEServer `mapstructure:"ice_servers"`
}

// ICEServer is handed to clients as is; the relay never dials it.
type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

func (s ICEServer) validate() error {
	if len(s.URLs) == 0 {
		return errors.New("ice server without urls")
	}
	for _, u := range s.URLs {
		if _, err := stun.ParseURI(u); err != nil {
			return errors.Wrapf(err, "ice server url %q", u)
		}
	}
	return nil
}

// WebRTC converts the configured servers to the pion representation served
// on /api/ice-servers.
func (c *Config) WebRTC() []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(c.ICEServers))
	for _, s := range c.ICEServers {
		srv := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
		if s.Credential != "" {
			srv.Credential = s.Credential
		}
		out = append(out, srv)
	}
	return out
}

func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.Newf("port %d out of range", c.Port)
	}
	if c.ReadLimit <= 0 {
		return errors.Newf("read_limit must be positive, got %d", c.ReadLimit)
	}
	if c.SendBuffer <= 0 {
		return errors.Newf("send_buffer must be positive, got %d", c.SendBuffer)
	}
	if c.PingPeriod <= 0 || c.PongWait <= c.PingPeriod {
		return errors.Newf("pong_wait (%s) must exceed ping_period (%s)", c.PongWait, c.PingPeriod)
	}
	if c.RateLimit < 0 || (c.RateLimit > 0 && c.RateBurst <= 0) {
		return errors.New("rate_burst must be positive when rate_limit is set")
	}
	switch c.Backpressure {
	case BackpressureKick, BackpressureDrop:
	default:
		return errors.Newf("unknown backpressure policy %q", c.Backpressure)
	}
	for _, s := range c.ICEServers {
		if err := s.validate(); err != nil {
			return err
		}
	}
	return nil
}

// flagKeys maps command line flags to config keys.
var flagKeys = map[string]string{
	"mode":        "mode",
	"port":        "port",
	"static-path": "static_path",
	"log-level":   "log_level",
	"secret":      "secret",
}

// RegisterFlags adds the flags understood by Load to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "config file (default config/config.$CONFIG_ENV.yaml)")
	fs.String("mode", "release", "gin mode: debug or release")
	fs.IntP("port", "p", 8080, "listen port")
	fs.String("static-path", "./web", "directory served under /static")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.String("secret", "", "cookie store secret")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("secret", "relay-dev-secret")
	v.SetDefault("log_level", "info")
	v.SetDefault("presence_broadcast", true)
	v.SetDefault("backpressure", BackpressureKick)
	v.SetDefault("rate_limit", 50)
	v.SetDefault("rate_burst", 100)
	v.SetDefault("ice_servers", []map[string]any{
		{"urls": []string{"stun:stun.l.google.com:19302"}},
	})
}

func fileName(fs *pflag.FlagSet) string {
	if fs != nil {
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			return f.Value.String()
		}
	}
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return fmt.Sprintf("config/config.%s.yaml", env)
}

// Load reads defaults, then the config file, then RELAY_* environment
// variables, then flags that were set explicitly. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	name := fileName(fs)
	v.SetConfigFile(name)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrapf(err, "read config %s", name)
		}
		log.Warn().Str("module", "config").Str("file", name).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", name).Msg("loaded config")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for flag, key := range flagKeys {
			if f := fs.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.Wrapf(err, "bind flag %s", flag)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Str("static", cfg.StaticPath).Msg("config ready")
	return &cfg, nil
}
