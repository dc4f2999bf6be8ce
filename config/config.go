package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	QuoterFixed    = "fixed"
	QuoterOneClick = "oneclick"
)

// NATSConfig configures the cross-chain transport and event publishing.
// An empty URL keeps the CLI offline: requests are queued locally and
// responses are fed in with "swap respond".
type NATSConfig struct {
	URL             string
	RequestSubject  string
	ResponseSubject string
	EventSubject    string
	Timeout         time.Duration
}

type OneClickConfig struct {
	JWTToken  string
	Recipient string
}

type PaymentsConfig struct {
	AutoDispatch bool
}

type DaemonConfig struct {
	AutoAdvance     bool
	LegacyResponses bool
	ServeChain      string
	RefreshInterval time.Duration
}

// Config holds the application configuration
type Config struct {
	StatePath   string
	LogLevel    string
	LogFormat   string
	MetricsAddr string
	Quoter      string

	NATS     NATSConfig
	OneClick OneClickConfig
	Payments PaymentsConfig
	Daemon   DaemonConfig
}

var globalConfig *Config

func setDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")
	viper.SetDefault("quoter", QuoterFixed)
	viper.SetDefault("nats.request_subject", "xchain.requests")
	viper.SetDefault("nats.response_subject", "xchain.responses")
	viper.SetDefault("nats.event_subject", "xchain.events")
	viper.SetDefault("nats.timeout", 5*time.Second)
	viper.SetDefault("metrics_addr", ":9102")
	viper.SetDefault("daemon.refresh_interval", 30*time.Second)
}

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetConfigName(".xchain-swap")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	setDefaults()

	// XCHAIN_SWAP_NATS_URL maps to nats.url
	viper.SetEnvPrefix("XCHAIN_SWAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// the config file is optional
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	cfg := &Config{
		StatePath:   viper.GetString("state_path"),
		LogLevel:    viper.GetString("log_level"),
		LogFormat:   viper.GetString("log_format"),
		MetricsAddr: viper.GetString("metrics_addr"),
		Quoter:      viper.GetString("quoter"),
		NATS: NATSConfig{
			URL:             viper.GetString("nats.url"),
			RequestSubject:  viper.GetString("nats.request_subject"),
			ResponseSubject: viper.GetString("nats.response_subject"),
			EventSubject:    viper.GetString("nats.event_subject"),
			Timeout:         viper.GetDuration("nats.timeout"),
		},
		OneClick: OneClickConfig{
			JWTToken:  viper.GetString("oneclick.jwt_token"),
			Recipient: viper.GetString("oneclick.recipient"),
		},
		Payments: PaymentsConfig{
			AutoDispatch: viper.GetBool("payments.auto_dispatch"),
		},
		Daemon: DaemonConfig{
			AutoAdvance:     viper.GetBool("daemon.auto_advance"),
			LegacyResponses: viper.GetBool("daemon.legacy_responses"),
			ServeChain:      viper.GetString("daemon.serve_chain"),
			RefreshInterval: viper.GetDuration("daemon.refresh_interval"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfig = cfg
	return cfg, nil
}

// Validate checks option combinations that cannot work
func (c *Config) Validate() error {
	switch c.Quoter {
	case QuoterFixed:
	case QuoterOneClick:
		if c.OneClick.JWTToken == "" {
			return errors.New("JWT token not found. Please set XCHAIN_SWAP_ONECLICK_JWT_TOKEN or oneclick.jwt_token in .xchain-swap.yaml")
		}
	default:
		return errors.Errorf("unknown quoter %q (want %s or %s)", c.Quoter, QuoterFixed, QuoterOneClick)
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "invalid log_level")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return errors.Errorf("invalid log_format %q (want text or json)", c.LogFormat)
	}
	if c.NATS.URL != "" && (c.NATS.RequestSubject == "" || c.NATS.ResponseSubject == "") {
		return errors.New("nats.request_subject and nats.response_subject are required with nats.url")
	}
	return nil
}

// NewLogger builds the process logger from the configuration
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if c.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}
