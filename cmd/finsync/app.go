package main

import (
	"context"
	"errors"
	"fmt"

	"finsync/internal/config"
	"finsync/internal/gmail"
	"finsync/internal/importer"
	"finsync/internal/logging"
	"finsync/internal/metrics"
	"finsync/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// app holds the wired components shared by every command.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	db       *store.SQLiteStore
	creds    gmail.CredentialStore
	registry *prometheus.Registry
	auth     *gmail.AuthFlow
	pipeline *importer.Pipeline

	closers []func() error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a.db, err = store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.closers = append(a.closers, a.db.Close)

	switch cfg.Credentials.Backend {
	case "redis":
		rc := store.NewRedisCredentialStore(store.RedisOptions{
			Addr:     cfg.Credentials.RedisAddr,
			Password: cfg.Credentials.RedisPassword,
			DB:       cfg.Credentials.RedisDB,
		})
		a.closers = append(a.closers, rc.Close)
		if err := rc.Ping(ctx); err != nil {
			a.Close()
			return nil, err
		}
		a.creds = rc
	default:
		a.creds = a.db
	}

	oauthCfg := gmail.NewOAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL, cfg.Google.Scopes...)
	states := gmail.NewStateCodec([]byte(cfg.Auth.StateSecret), cfg.Auth.StateTTL)
	a.auth = gmail.NewAuthFlow(oauthCfg, a.creds, a.db, states, log.Named("auth"))

	clients := gmail.NewClientFactory(oauthCfg, a.creds, log.Named("gmail"))
	locator := gmail.NewLocator(log.Named("gmail"))
	a.pipeline = importer.New(clients, locator, a.db, a.db, log.Named("import"), metrics.NewImport(a.registry))

	log.Debug("app ready",
		zap.String("db", cfg.Database.Path),
		zap.String("credentials", cfg.Credentials.Backend),
	)
	return a, nil
}

// ready reports whether the stores can be reached.
func (a *app) ready(ctx context.Context) error {
	if _, err := a.db.UserExists(ctx, ""); err != nil {
		return err
	}
	if rc, ok := a.creds.(*store.RedisCredentialStore); ok {
		return rc.Ping(ctx)
	}
	return nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	_ = a.log.Sync()
	return errors.Join(errs...)
}
