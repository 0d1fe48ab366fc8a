// Package server exposes the analysis pipeline over HTTP. Submitted jobs run
// in the background and are tracked in the job store.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/session-analysis/orchestrator"
	"github.com/maastricht-university/session-analysis/store"
)

// DefaultMaxUpload bounds multipart uploads.
const DefaultMaxUpload = 2 << 30

type Server struct {
	pipe      *orchestrator.Pipeline
	jobs      *store.Jobs
	log       logrus.FieldLogger
	MaxUpload int64

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	srv    *http.Server
}

// New builds a server that will listen on addr.
func New(addr string, pipe *orchestrator.Pipeline, jobs *store.Jobs, log logrus.FieldLogger) *Server {
	base, cancel := context.WithCancel(context.Background())
	s := &Server{
		pipe:      pipe,
		jobs:      jobs,
		log:       log,
		MaxUpload: DefaultMaxUpload,
		base:      base,
		cancel:    cancel,
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)

	r.Route("/analysis", func(r chi.Router) {
		r.Post("/job", s.submitJob)
		r.Post("/upload", s.upload)
		r.Get("/jobs", s.listJobs)
		r.Get("/jobs/{id}", s.getJob)
		r.Get("/formula", s.formula)
	})
	return r
}

// ListenAndServe blocks until the server is shut down. It returns nil at once
// when Shutdown ran first.
func (s *Server) ListenAndServe() error {
	s.log.WithField("addr", s.srv.Addr).Info("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for background jobs. When ctx
// expires first the remaining jobs are cancelled.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	done := make(chan struct{})
	go func() { s.wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-ctx.Done():
		s.cancel()
		<-done
		err = errors.Join(err, ctx.Err())
	}
	s.cancel()
	return err
}

// Wait blocks until every background job has returned.
func (s *Server) Wait() { s.wg.Wait() }

// launch records job as queued and runs it in the background.
func (s *Server) launch(ctx context.Context, job *orchestrator.MediaJob) error {
	if err := s.jobs.Create(ctx, job); err != nil {
		return err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// Outcome is logged and recorded by the pipeline.
		_, _ = s.pipe.Execute(s.base, job)
	}()
	return nil
}
