package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Poller repeats one job on a fixed interval until stopped. An iteration
// starts only after the previous one returned and the interval elapsed.
type Poller struct {
	interval time.Duration
	job      func(ctx context.Context) error
	log      logrus.FieldLogger

	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func NewPoller(interval time.Duration, job func(ctx context.Context) error, log logrus.FieldLogger) *Poller {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Poller{
		interval: interval,
		job:      job,
		log:      log,
		stop:     make(chan struct{}),
	}
}

// PollTarget adapts a pipeline run against target to a Poller job.
func PollTarget(p *Pipeline, target string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := p.Run(ctx, target)
		return err
	}
}

// Start runs the first iteration immediately in the background.
func (p *Poller) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.run(ctx)
	p.log.WithField("interval", p.interval).Info("poller started")
}

// Stop waits for the running iteration, if any, to return.
func (p *Poller) Stop() {
	p.once.Do(func() { close(p.stop) })
	p.wg.Wait()
	p.log.Info("poller stopped")
}

func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for n := 1; ; n++ {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-timer.C:
		}
		p.iterate(ctx, n)
		timer.Reset(p.interval)
	}
}

func (p *Poller) iterate(ctx context.Context, n int) {
	log := p.log.WithField("iteration", n)
	start := time.Now()
	if err := guard("poll iteration", func() error { return p.job(ctx) }); err != nil {
		log.WithError(err).Error("poll iteration failed")
		return
	}
	log.WithField("took", time.Since(start).Round(time.Millisecond)).Info("poll iteration done")
}
