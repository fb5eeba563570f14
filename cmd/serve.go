package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lexicon-cli/internal/api"
	"github.com/sells-group/lexicon-cli/internal/events"
	"github.com/sells-group/lexicon-cli/internal/maintenance"
)

const shutdownTimeout = 30 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API, maintenance jobs and event consumer",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		env, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Pipeline.Start(ctx); err != nil {
			return eris.Wrap(err, "start pipeline")
		}

		sched, err := maintenance.New(env.Pipeline, cfg.Maintenance, cfg.Queue)
		if err != nil {
			return err
		}
		sched.Start()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           api.NewRouter(env.Pipeline, cfg.Server, env.Metrics),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.RequestTopic != "" {
			consumer, err := events.NewConsumer(cfg.Kafka, env.Pipeline)
			if err != nil {
				return err
			}
			defer func() { _ = consumer.Close() }()
			g.Go(func() error { return consumer.Run(gctx) })
		}

		// Graceful shutdown
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := sched.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("maintenance shutdown", zap.Error(err))
			}
			return eris.Wrap(srv.Shutdown(shutdownCtx), "server shutdown")
		})

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
