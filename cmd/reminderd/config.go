package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Pasan-pramu/remind"
	"github.com/Pasan-pramu/remind/notify/sendgrid"
	"github.com/Pasan-pramu/remind/notify/smtp"
	"github.com/Pasan-pramu/remind/policy"
)

// Config is the daemon configuration.
type Config struct {
	Log           LogConfig          `yaml:"log"`
	Store         StoreConfig        `yaml:"store"`
	Subscriptions SubscriptionConfig `yaml:"subscriptions"`
	Sender        SenderConfig       `yaml:"sender"`
	Engine        EngineConfig       `yaml:"engine"`
	Audit         AuditConfig        `yaml:"audit"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StoreConfig selects the persistence backend for runs and timer jobs.
type StoreConfig struct {
	Backend       string `yaml:"backend"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// SubscriptionConfig selects where subscriptions are read from. An empty
// backend reads them from the main store.
type SubscriptionConfig struct {
	Backend       string `yaml:"backend"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
}

// SenderConfig selects how reminders are delivered.
type SenderConfig struct {
	Kind                string          `yaml:"kind"`
	AccountSettingsLink string          `yaml:"account_settings_link"`
	SupportLink         string          `yaml:"support_link"`
	SMTP                smtp.Config     `yaml:"smtp"`
	SendGrid            sendgrid.Config `yaml:"sendgrid"`
}

// EngineConfig tunes the reminder engine.
type EngineConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Offsets         []int         `yaml:"offsets"`
	StepAttempts    int           `yaml:"step_attempts"`
	WakeGrace       time.Duration `yaml:"wake_grace"`
	SweepSchedule   string        `yaml:"sweep_schedule"`
	DedupTTL        time.Duration `yaml:"dedup_ttl"`
	DLQRetention    time.Duration `yaml:"dlq_retention"`
	ResumeOnStart   bool          `yaml:"resume_on_start"`
}

// AuditConfig toggles the audit log extension.
type AuditConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Defaults returns a Config for a single-process daemon on the memory
// store that logs reminders instead of mailing them.
func Defaults() *Config {
	rc := remind.DefaultConfig()
	return &Config{
		Log:   LogConfig{Level: "info", Format: "json"},
		Store: StoreConfig{Backend: "memory"},
		Subscriptions: SubscriptionConfig{
			MongoDatabase: "subscription-tracker",
		},
		Sender: SenderConfig{
			Kind:                "log",
			AccountSettingsLink: "https://example.com/settings",
			SupportLink:         "https://example.com/support",
			SMTP:                smtp.Config{Port: "587"},
		},
		Engine: EngineConfig{
			Concurrency:     rc.Concurrency,
			PollInterval:    rc.PollInterval,
			ShutdownTimeout: rc.ShutdownTimeout,
			Offsets:         rc.Offsets,
			StepAttempts:    rc.StepAttempts,
			WakeGrace:       rc.WakeGrace,
			SweepSchedule:   rc.SweepSchedule,
			DedupTTL:        rc.DedupTTL,
			DLQRetention:    14 * 24 * time.Hour,
			ResumeOnStart:   rc.ResumeOnStart,
		},
	}
}

// Load reads the YAML file at path over the defaults, applies REMIND_*
// environment overrides and validates the result. An empty path skips
// the file.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}
	return cfg, nil
}

// Validate checks that the selected backends have what they need.
func (c *Config) Validate() error {
	var errs []string

	switch c.Store.Backend {
	case "memory":
	case "postgres":
		if c.Store.PostgresDSN == "" {
			errs = append(errs, "store.postgres_dsn is required for the postgres backend")
		}
	case "redis":
		if c.Store.RedisAddr == "" {
			errs = append(errs, "store.redis_addr is required for the redis backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.backend %q is not one of memory, postgres, redis", c.Store.Backend))
	}

	switch c.Subscriptions.Backend {
	case "", "store":
	case "mongo":
		if c.Subscriptions.MongoURI == "" {
			errs = append(errs, "subscriptions.mongo_uri is required for the mongo backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("subscriptions.backend %q is not one of store, mongo", c.Subscriptions.Backend))
	}

	switch c.Sender.Kind {
	case "log":
	case "smtp":
		if c.Sender.SMTP.Host == "" {
			errs = append(errs, "sender.smtp.host is required for the smtp sender")
		}
	case "sendgrid":
		if c.Sender.SendGrid.APIKey == "" {
			errs = append(errs, "sender.sendgrid.api_key is required for the sendgrid sender")
		}
		if c.Sender.SendGrid.Sender == "" {
			errs = append(errs, "sender.sendgrid.sender is required for the sendgrid sender")
		}
	default:
		errs = append(errs, fmt.Sprintf("sender.kind %q is not one of log, smtp, sendgrid", c.Sender.Kind))
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Sprintf("log.format %q is not one of json, text", c.Log.Format))
	}

	if err := c.remindConfig().Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// remindConfig maps the engine section onto the library config.
func (c *Config) remindConfig() remind.Config {
	rc := remind.DefaultConfig()
	rc.Concurrency = c.Engine.Concurrency
	rc.PollInterval = c.Engine.PollInterval
	rc.ShutdownTimeout = c.Engine.ShutdownTimeout
	rc.Offsets = policy.Offsets(c.Engine.Offsets).Clone()
	rc.StepAttempts = c.Engine.StepAttempts
	rc.WakeGrace = c.Engine.WakeGrace
	rc.SweepSchedule = c.Engine.SweepSchedule
	rc.DedupTTL = c.Engine.DedupTTL
	rc.ResumeOnStart = c.Engine.ResumeOnStart
	return rc
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level %q is not a slog level", s)
	}
	return lvl, nil
}

// applyEnvOverrides reads REMIND_* environment variables. Only the
// settings that usually differ per deployment are covered.
func applyEnvOverrides(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("REMIND_LOG_LEVEL", &cfg.Log.Level)
	setString("REMIND_LOG_FORMAT", &cfg.Log.Format)
	setString("REMIND_STORE_BACKEND", &cfg.Store.Backend)
	setString("REMIND_POSTGRES_DSN", &cfg.Store.PostgresDSN)
	setString("REMIND_REDIS_ADDR", &cfg.Store.RedisAddr)
	setString("REMIND_REDIS_PASSWORD", &cfg.Store.RedisPassword)
	setString("REMIND_SUBSCRIPTIONS_BACKEND", &cfg.Subscriptions.Backend)
	setString("REMIND_MONGO_URI", &cfg.Subscriptions.MongoURI)
	setString("REMIND_MONGO_DATABASE", &cfg.Subscriptions.MongoDatabase)
	setString("REMIND_SENDER", &cfg.Sender.Kind)
	setString("REMIND_SMTP_HOST", &cfg.Sender.SMTP.Host)
	setString("REMIND_SMTP_PORT", &cfg.Sender.SMTP.Port)
	setString("REMIND_SMTP_USERNAME", &cfg.Sender.SMTP.Username)
	setString("REMIND_SMTP_PASSWORD", &cfg.Sender.SMTP.Password)
	setString("REMIND_SMTP_FROM", &cfg.Sender.SMTP.From)
	setString("REMIND_SENDGRID_API_KEY", &cfg.Sender.SendGrid.APIKey)
	setString("REMIND_SENDGRID_SENDER", &cfg.Sender.SendGrid.Sender)

	if v := os.Getenv("REMIND_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.Concurrency = n
		}
	}
	if v := os.Getenv("REMIND_OFFSETS"); v != "" {
		offsets, err := policy.ParseOffsets(v)
		if err != nil {
			return fmt.Errorf("REMIND_OFFSETS: %w", err)
		}
		cfg.Engine.Offsets = offsets
	}
	return nil
}
