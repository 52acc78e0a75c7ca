// Package config loads escrowd settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	escrow "github.com/debnit/MsmeBazaar-sub000"
	"github.com/debnit/MsmeBazaar-sub000/ledger"
)

// Config stores all configuration for escrowd.
type Config struct {
	HTTPAddr       string        `mapstructure:"HTTP_ADDR"`
	RequestTimeout time.Duration `mapstructure:"HTTP_REQUEST_TIMEOUT"`
	CORSOrigins    []string      `mapstructure:"HTTP_CORS_ORIGINS"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	PostgresDSN     string        `mapstructure:"POSTGRES_DSN"`
	PostgresLockTTL time.Duration `mapstructure:"POSTGRES_LOCK_TIMEOUT"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	RedisPrefix   string `mapstructure:"REDIS_PREFIX"`

	PollInterval        time.Duration `mapstructure:"DISPATCH_POLL_INTERVAL"`
	ShutdownTimeout     time.Duration `mapstructure:"DISPATCH_SHUTDOWN_TIMEOUT"`
	HeartbeatInterval   time.Duration `mapstructure:"DISPATCH_HEARTBEAT_INTERVAL"`
	StalledInterval     time.Duration `mapstructure:"DISPATCH_STALLED_INTERVAL"`
	HealthCheckInterval time.Duration `mapstructure:"DISPATCH_HEALTH_CHECK_INTERVAL"`
	ProbeTimeout        time.Duration `mapstructure:"DISPATCH_PROBE_TIMEOUT"`

	PlatformFeeBps     int64 `mapstructure:"PLATFORM_FEE_BPS"`
	AgentCommissionBps int64 `mapstructure:"AGENT_COMMISSION_BPS"`

	DLQSchedule  string        `mapstructure:"DLQ_PURGE_SCHEDULE"`
	DLQRetention time.Duration `mapstructure:"DLQ_RETENTION"`

	OutboxInterval time.Duration `mapstructure:"OUTBOX_RELAY_INTERVAL"`
	OutboxMinAge   time.Duration `mapstructure:"OUTBOX_MIN_AGE"`

	// Notifiers lists the channels notifications fan out to: log, webhook,
	// ses, amqp, kafka.
	Notifiers      []string `mapstructure:"NOTIFIERS"`
	WebhookURL     string   `mapstructure:"NOTIFY_WEBHOOK_URL"`
	SESFrom        string   `mapstructure:"SES_FROM"`
	SESRegion      string   `mapstructure:"SES_REGION"`
	SESProfile     string   `mapstructure:"SES_PROFILE"`
	SESDryRun      bool     `mapstructure:"SES_DRY_RUN"`
	SESEmailDomain string   `mapstructure:"SES_EMAIL_DOMAIN"`
	AMQPURL        string   `mapstructure:"AMQP_URL"`
	AMQPExchange   string   `mapstructure:"AMQP_EXCHANGE"`
	KafkaBrokers   []string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic     string   `mapstructure:"KAFKA_TOPIC"`
	ComplianceURL  string   `mapstructure:"COMPLIANCE_URL"`
	ValuationURL   string   `mapstructure:"VALUATION_URL"`
	DocumentsURL   string   `mapstructure:"DOCUMENTS_URL"`
	PortAPIKey     string   `mapstructure:"PORT_API_KEY"`
}

var defaults = map[string]any{
	"HTTP_ADDR":                      ":8080",
	"HTTP_REQUEST_TIMEOUT":           "30s",
	"HTTP_CORS_ORIGINS":              "",
	"LOG_LEVEL":                      "info",
	"LOG_FORMAT":                     "json",
	"POSTGRES_DSN":                   "",
	"POSTGRES_LOCK_TIMEOUT":          "5s",
	"REDIS_ADDR":                     "localhost:6379",
	"REDIS_PASSWORD":                 "",
	"REDIS_DB":                       0,
	"REDIS_PREFIX":                   "escrow:",
	"PLATFORM_FEE_BPS":               ledger.DefaultConfig().PlatformFeeBps,
	"AGENT_COMMISSION_BPS":           ledger.DefaultConfig().AgentCommissionBps,
	"DLQ_PURGE_SCHEDULE":             "@hourly",
	"DLQ_RETENTION":                  "168h",
	"OUTBOX_RELAY_INTERVAL":          ledger.DefaultRelayInterval.String(),
	"OUTBOX_MIN_AGE":                 ledger.DefaultRelayMinAge.String(),
	"NOTIFIERS":                      "log",
	"NOTIFY_WEBHOOK_URL":             "",
	"SES_FROM":                       "",
	"SES_REGION":                     "us-east-1",
	"SES_PROFILE":                    "",
	"SES_DRY_RUN":                    false,
	"SES_EMAIL_DOMAIN":               "",
	"AMQP_URL":                       "",
	"AMQP_EXCHANGE":                  "escrow.notifications",
	"KAFKA_BROKERS":                  "",
	"KAFKA_TOPIC":                    "escrow-notifications",
	"COMPLIANCE_URL":                 "",
	"VALUATION_URL":                  "",
	"DOCUMENTS_URL":                  "",
	"PORT_API_KEY":                   "",
	"DISPATCH_POLL_INTERVAL":         escrow.DefaultConfig().PollInterval.String(),
	"DISPATCH_SHUTDOWN_TIMEOUT":      escrow.DefaultConfig().ShutdownTimeout.String(),
	"DISPATCH_HEARTBEAT_INTERVAL":    escrow.DefaultConfig().HeartbeatInterval.String(),
	"DISPATCH_STALLED_INTERVAL":      escrow.DefaultConfig().StalledInterval.String(),
	"DISPATCH_HEALTH_CHECK_INTERVAL": escrow.DefaultConfig().HealthCheckInterval.String(),
	"DISPATCH_PROBE_TIMEOUT":         escrow.DefaultConfig().ProbeTimeout.String(),
}

// Load reads configuration from the environment, overlaying file if it is
// set, or ./.env when present.
func Load(file string) (Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("env")
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(".env")
		v.SetConfigType("env")
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(file == "" && errors.Is(err, os.ErrNotExist)) {
			return Config{}, fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	cfg.CORSOrigins = compact(cfg.CORSOrigins)
	cfg.Notifiers = compact(cfg.Notifiers)
	cfg.KafkaBrokers = compact(cfg.KafkaBrokers)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required settings and their combinations.
func (c Config) Validate() error {
	var errs []error
	if c.PostgresDSN == "" {
		errs = append(errs, errors.New("POSTGRES_DSN is required"))
	}
	if c.RedisAddr == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required"))
	}
	if !c.Ledger().Valid() {
		errs = append(errs, errors.New("PLATFORM_FEE_BPS and AGENT_COMMISSION_BPS must be non-negative and sum to at most 10000"))
	}
	for _, n := range c.Notifiers {
		switch n {
		case "log":
		case "webhook":
			if c.WebhookURL == "" {
				errs = append(errs, errors.New("NOTIFY_WEBHOOK_URL is required for the webhook notifier"))
			}
		case "ses":
			if c.SESFrom == "" || c.SESEmailDomain == "" {
				errs = append(errs, errors.New("SES_FROM and SES_EMAIL_DOMAIN are required for the ses notifier"))
			}
		case "amqp":
			if c.AMQPURL == "" {
				errs = append(errs, errors.New("AMQP_URL is required for the amqp notifier"))
			}
		case "kafka":
			if len(c.KafkaBrokers) == 0 || c.KafkaTopic == "" {
				errs = append(errs, errors.New("KAFKA_BROKERS and KAFKA_TOPIC are required for the kafka notifier"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown notifier %q", n))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Dispatch returns the dispatch timing configuration.
func (c Config) Dispatch() escrow.Config {
	return escrow.Config{
		PollInterval:        c.PollInterval,
		ShutdownTimeout:     c.ShutdownTimeout,
		HeartbeatInterval:   c.HeartbeatInterval,
		StalledInterval:     c.StalledInterval,
		HealthCheckInterval: c.HealthCheckInterval,
		ProbeTimeout:        c.ProbeTimeout,
	}
}

// Ledger returns the fee configuration.
func (c Config) Ledger() ledger.Config {
	return ledger.Config{PlatformFeeBps: c.PlatformFeeBps, AgentCommissionBps: c.AgentCommissionBps}
}

// Logger builds the process logger.
func (c Config) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func compact(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
