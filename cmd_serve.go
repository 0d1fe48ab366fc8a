package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	cfg "github.com/maastricht-university/session-analysis/config"
	"github.com/maastricht-university/session-analysis/orchestrator"
	"github.com/maastricht-university/session-analysis/server"
	"github.com/maastricht-university/session-analysis/store"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when poller.url is set, the polling loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, log, err := loadConfig()
			if err != nil {
				return err
			}
			log.WithField("version", conf.Pipeline.Version).Info("session analysis starting")

			db, err := store.Open(conf.Store.Path)
			if err != nil {
				return err
			}
			defer db.Close()
			jobs := store.NewJobs(db)

			models := newModels(conf)
			defer func() {
				if err := models.Close(); err != nil {
					log.WithError(err).Warn("model shutdown")
				}
			}()

			pipe := orchestrator.NewPipeline(conf, models,
				orchestrator.WithLogger(log),
				orchestrator.WithRecorder(jobs),
			)
			defer pipe.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var poller *orchestrator.Poller
			if conf.Poller.URL != "" {
				poller = orchestrator.NewPoller(cfg.DurMinutes(conf.Poller.IntervalMinutes),
					orchestrator.PollTarget(pipe, conf.Poller.URL),
					log.WithField("target", conf.Poller.URL))
				poller.Start(ctx)
			}

			srv := server.New(conf.Server.Addr, pipe, jobs, log)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()

			select {
			case err = <-errCh:
			case <-ctx.Done():
				log.Info("shutting down")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if serr := srv.Shutdown(shutdownCtx); serr != nil {
				log.WithError(serr).Warn("server shutdown")
			}
			if poller != nil {
				poller.Stop()
			}
			return err
		},
	}
}
