package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "KNOWME"

type Config struct {
	Bind           string
	Port           int
	AllowedOrigins []string
	CatalogFile    string
	PublicURL      string
	ExportEnabled  bool
	ExportFile     string
	AMQPURL        string
	AMQPExchange   string
	EventBuffer    int
	LogLevel       string
	Metrics        bool
}

func Defaults() Config {
	return Config{
		Bind:           "0.0.0.0",
		Port:           5000,
		AllowedOrigins: []string{"http://localhost:3000"},
		PublicURL:      "http://localhost:3000",
		ExportFile:     "./knowme-results.txt",
		AMQPExchange:   "knowme.events",
		EventBuffer:    256,
		LogLevel:       "info",
		Metrics:        true,
	}
}

// Bind registers a flag per setting on fs and binds each one to its KNOWME_*
// environment variable (port also reads plain PORT). Call ApplyEnv once the
// command line is parsed.
func Bind(fs *pflag.FlagSet, cfg *Config) *viper.Viper {
	def := Defaults()
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.Bind, "bind", "b", def.Bind, "address to bind to (env: KNOWME_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", def.Port, "port to listen on (env: KNOWME_PORT or PORT)")
	fs.StringSliceVar(&cfg.AllowedOrigins, "allowed-origins", def.AllowedOrigins, "origins allowed for CORS and websockets, * for any (env: KNOWME_ALLOWED_ORIGINS)")
	fs.StringVar(&cfg.CatalogFile, "catalog-file", def.CatalogFile, "yaml question catalog, embedded catalog when empty (env: KNOWME_CATALOG_FILE)")
	fs.StringVar(&cfg.PublicURL, "public-url", def.PublicURL, "frontend url encoded in join QR codes (env: KNOWME_PUBLIC_URL)")
	fs.BoolVar(&cfg.ExportEnabled, "export-enabled", def.ExportEnabled, "append round transcripts to the export file (env: KNOWME_EXPORT_ENABLED)")
	fs.StringVar(&cfg.ExportFile, "export-file", def.ExportFile, "path of the round transcript file (env: KNOWME_EXPORT_FILE)")
	fs.StringVar(&cfg.AMQPURL, "amqp-url", def.AMQPURL, "RabbitMQ url, publishing disabled when empty (env: KNOWME_AMQP_URL)")
	fs.StringVar(&cfg.AMQPExchange, "amqp-exchange", def.AMQPExchange, "topic exchange for game events (env: KNOWME_AMQP_EXCHANGE)")
	fs.IntVar(&cfg.EventBuffer, "event-buffer", def.EventBuffer, "queued events before new ones are dropped (env: KNOWME_EVENT_BUFFER)")
	fs.StringVar(&cfg.LogLevel, "log-level", def.LogLevel, "trace, debug, info, warn or error (env: KNOWME_LOG_LEVEL)")
	fs.BoolVar(&cfg.Metrics, "metrics", def.Metrics, "serve prometheus metrics on /metrics (env: KNOWME_METRICS)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
	})
	_ = v.BindEnv("port", EnvPrefix+"_PORT", "PORT")
	return v
}

// ApplyEnv copies environment values into every flag the command line left
// unset, so a flag always beats the environment.
func ApplyEnv(fs *pflag.FlagSet, v *viper.Viper) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Changed {
			return
		}
		if val, ok := envValue(v, f.Name); ok {
			if serr := fs.Set(f.Name, val); serr != nil {
				err = fmt.Errorf("invalid value for %s: %w", f.Name, serr)
			}
		}
	})
	return err
}

func envValue(v *viper.Viper, key string) (string, bool) {
	if !v.IsSet(key) {
		return "", false
	}
	switch val := v.Get(key).(type) {
	case []string:
		return strings.Join(val, ","), true
	default:
		return fmt.Sprintf("%v", val), true
	}
}

func (c *Config) Validate() error {
	if len(c.AllowedOrigins) == 0 {
		return errors.New("--allowed-origins must list at least one origin, or * for any")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.EventBuffer < 1 {
		return fmt.Errorf("invalid event buffer (must be positive): %d", c.EventBuffer)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.ExportEnabled && c.ExportFile == "" {
		return errors.New("--export-file is required when exporting is enabled")
	}
	if c.AMQPURL != "" && c.AMQPExchange == "" {
		return errors.New("--amqp-exchange must not be empty when --amqp-url is set")
	}
	return nil
}

func (c *Config) Level() (zerolog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "info", "":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	}
	return zerolog.NoLevel, fmt.Errorf("unknown log level %q", c.LogLevel)
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

// AllowsAnyOrigin reports whether "*" is among the allowed origins.
func (c *Config) AllowsAnyOrigin() bool {
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}
