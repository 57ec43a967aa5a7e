package main

import (
	"context"
	"errors"

	"finsync/internal/web"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.cfg.Auth.JWTSecret == "" {
				return errors.New("FINSYNC_AUTH_JWT_SECRET is required to serve")
			}

			srv := web.NewServer(a.pipeline, a.auth, a.log.Named("http"), web.Options{
				JWTSecret:      []byte(a.cfg.Auth.JWTSecret),
				FrontendURL:    a.cfg.FrontendURL,
				RequestTimeout: a.cfg.HTTP.RequestTimeout,
				Gatherer:       a.registry,
				Ready:          a.ready,
			})

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				h := a.cfg.HTTP
				return srv.Start(h.Addr, h.ReadTimeout, h.WriteTimeout, h.IdleTimeout)
			})
			g.Go(func() error {
				<-gctx.Done()
				a.log.Info("shutting down", zap.Duration("timeout", a.cfg.HTTP.ShutdownTimeout))
				shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
}
