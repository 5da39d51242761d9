package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/iliyamo/area-reservation/internal/config"
	"github.com/iliyamo/area-reservation/internal/middleware"
	"github.com/iliyamo/area-reservation/internal/queue"
	"github.com/iliyamo/area-reservation/internal/reaper"
	"github.com/iliyamo/area-reservation/internal/router"
)

func newServeCmd() *cobra.Command {
	var (
		noReaper   bool
		noConsumer bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, the expiry reaper and the event log consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := a.wire(ctx); err != nil {
				return err
			}
			defer a.Close()

			e := echo.New()
			e.HideBanner = true
			e.Use(echomw.Recover())
			e.Use(echomw.RequestID())
			router.Register(e, router.Deps{
				Service:   a.svc,
				JWTSecret: a.cfg.JWTSecret,
				Limiter:   middleware.NewLimiter(config.LoadRateLimitConfig(), a.rdb, a.log),
				Metrics:   a.metrics,
				Pingers:   a.pingers,
			})

			if !noReaper {
				r := reaper.New(a.svc, a.cfg.ReaperInterval, a.metrics, a.log)
				go func() { _ = r.Run(ctx) }()
			}
			if a.cfg.EventsEnabled && !noConsumer {
				c := queue.NewConsumer(a.cfg.RabbitMQURL, a.log)
				go func() { _ = c.Run(ctx) }()
			}

			errCh := make(chan error, 1)
			go func() {
				addr := ":" + a.cfg.Port
				a.log.Infof("listening on %s (env=%s, store=%s)", addr, a.cfg.Env, a.cfg.StoreDriver)
				errCh <- e.Start(addr)
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}
			a.log.Info("shutting down")
			sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return e.Shutdown(sctx)
		},
	}
	cmd.Flags().BoolVar(&noReaper, "no-reaper", false, "do not run the expiry reaper in this process")
	cmd.Flags().BoolVar(&noConsumer, "no-consumer", false, "do not run the event log consumer in this process")
	return cmd
}
