package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/Pasan-pramu/remind"
	audithook "github.com/Pasan-pramu/remind/audit_hook"
	"github.com/Pasan-pramu/remind/engine"
	"github.com/Pasan-pramu/remind/notify"
	"github.com/Pasan-pramu/remind/notify/sendgrid"
	"github.com/Pasan-pramu/remind/notify/smtp"
	"github.com/Pasan-pramu/remind/store"
	"github.com/Pasan-pramu/remind/store/memory"
	storemongo "github.com/Pasan-pramu/remind/store/mongo"
	"github.com/Pasan-pramu/remind/store/postgres"
	storeredis "github.com/Pasan-pramu/remind/store/redis"
)

// app holds everything a command needs, plus the closers that release
// connections the stores do not own.
type app struct {
	cfg     *Config
	logger  *slog.Logger
	store   store.Store
	subs    *storemongo.Store
	engine  *engine.Engine
	closers []func(context.Context) error
}

// newLogger builds a JSON or text slog handler at the configured level.
func newLogger(cfg LogConfig, w io.Writer) *slog.Logger {
	lvl, err := parseLevel(cfg.Level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// openStore connects the configured run/job backend.
func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.Store.Backend {
	case "postgres":
		s, err := postgres.New(ctx, a.cfg.Store.PostgresDSN, postgres.WithLogger(a.logger))
		if err != nil {
			return err
		}
		a.store = s
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     a.cfg.Store.RedisAddr,
			Password: a.cfg.Store.RedisPassword,
			DB:       a.cfg.Store.RedisDB,
		})
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		a.store = storeredis.New(client, storeredis.WithLogger(a.logger))
	default:
		a.store = memory.New()
	}

	if a.cfg.Subscriptions.Backend == "mongo" {
		client, err := mongod.Connect(mongoopts.Client().ApplyURI(a.cfg.Subscriptions.MongoURI))
		if err != nil {
			return fmt.Errorf("connect mongo: %w", err)
		}
		a.closers = append(a.closers, client.Disconnect)
		a.subs = storemongo.New(client.Database(a.cfg.Subscriptions.MongoDatabase),
			storemongo.WithLogger(a.logger),
		)
	}
	return nil
}

// newSender builds the configured reminder sender.
func (a *app) newSender() (notify.Sender, error) {
	renderer, err := notify.NewRenderer(a.cfg.Engine.Offsets,
		notify.WithLinks(a.cfg.Sender.AccountSettingsLink, a.cfg.Sender.SupportLink),
	)
	if err != nil {
		return nil, err
	}

	switch a.cfg.Sender.Kind {
	case "smtp":
		return smtp.New(a.cfg.Sender.SMTP, renderer, smtp.WithLogger(a.logger)), nil
	case "sendgrid":
		return sendgrid.New(a.cfg.Sender.SendGrid, renderer, a.logger), nil
	default:
		return notify.NewLogSender(renderer, a.logger), nil
	}
}

// buildEngine wires the dispatcher and engine over the open store.
func (a *app) buildEngine() error {
	d, err := remind.New(
		remind.WithConfig(a.cfg.remindConfig()),
		remind.WithLogger(a.logger),
		remind.WithStore(a.store),
	)
	if err != nil {
		return err
	}

	sender, err := a.newSender()
	if err != nil {
		return err
	}

	opts := []engine.Option{
		engine.WithSender(sender),
		engine.WithDLQRetention(a.cfg.Engine.DLQRetention, "@daily"),
	}
	if a.subs != nil {
		opts = append(opts, engine.WithSubscriptionStore(a.subs))
	}
	if a.cfg.Audit.Enabled {
		opts = append(opts, engine.WithExtension(
			audithook.New(audithook.NewSlogRecorder(a.logger), audithook.WithLogger(a.logger)),
		))
	}

	eng, err := engine.Build(d, opts...)
	if err != nil {
		return err
	}
	a.engine = eng
	return nil
}

// setup loads config, opens stores and builds the engine.
func setup(ctx context.Context, configPath string, w io.Writer) (*app, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: newLogger(cfg.Log, w)}
	if err := a.openStore(ctx); err != nil {
		a.close(ctx)
		return nil, err
	}
	if err := a.buildEngine(); err != nil {
		a.close(ctx)
		return nil, err
	}
	return a, nil
}

// close releases connections in reverse order of opening.
func (a *app) close(ctx context.Context) {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("store close failed", slog.String("error", err.Error()))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("connection close failed", slog.String("error", err.Error()))
		}
	}
}
