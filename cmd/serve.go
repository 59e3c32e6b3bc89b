package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/cyderes/jobs-ingestion-service/internal/scheduler"
	"github.com/cyderes/jobs-ingestion-service/internal/server"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the ingestion trigger API and run the optional cron schedule",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "port",
				Usage: "HTTP port; overrides server.port",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if v := cmd.Int("port"); v > 0 {
				cfg.Server.Port = int(v)
			}

			// Missing credentials or names fail each run with a clear error,
			// so the server still starts and answers health checks.
			if err := cfg.Validate(); err != nil {
				if !isMissingSetting(err) {
					return fmt.Errorf("invalid config: %w", err)
				}
				log.Warn().Err(err).Msg("configuration incomplete; ingestion runs will fail until it is fixed")
			}

			p, err := buildPipeline(ctx, cfg)
			if err != nil {
				return err
			}
			defer p.Close()

			httpServer := server.NewServer(cfg.Server, p.service, p.store)

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			var sched *scheduler.Scheduler
			if cfg.Schedule.Cron != "" {
				sched = scheduler.New(p.service, cfg.Schedule)
				if err := sched.Start(runCtx); err != nil {
					return err
				}
			}

			go func() {
				log.Info().Int("port", cfg.Server.Port).Msg("starting HTTP server")
				if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal().Err(err).Msg("HTTP server failed")
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			log.Info().Msg("shutting down...")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("HTTP server shutdown error")
			}
			cancel()
			if sched != nil {
				sched.Stop()
			}
			log.Info().Msg("shutdown complete")
			return nil
		},
	}
}
