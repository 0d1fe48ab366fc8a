package orchestrator

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// Pool bounds the number of branch tasks running across all jobs. A job
// reserves one worker per branch in a single step, so its branches always
// start together and overlap.
type Pool struct {
	size  int
	slots chan struct{}
	admit sync.Mutex
	wg    sync.WaitGroup
}

// NewPool allows size concurrent tasks; size <= 0 means GOMAXPROCS.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
		if size <= 0 {
			size = 1
		}
	}
	return &Pool{size: size, slots: make(chan struct{}, size)}
}

// Run waits until a worker is free for every task, then starts them all and
// returns. It does not wait for the tasks to finish.
func (p *Pool) Run(ctx context.Context, tasks ...func()) error {
	if len(tasks) > p.size {
		return fmt.Errorf("pool of %d cannot run %d tasks together", p.size, len(tasks))
	}

	p.admit.Lock()
	for i := range tasks {
		select {
		case p.slots <- struct{}{}:
		case <-ctx.Done():
			for ; i > 0; i-- {
				<-p.slots
			}
			p.admit.Unlock()
			return ctx.Err()
		}
	}
	p.admit.Unlock()

	p.wg.Add(len(tasks))
	for _, fn := range tasks {
		go func() {
			defer func() { <-p.slots }()
			defer p.wg.Done()
			fn()
		}()
	}
	return nil
}

// Stop waits for running tasks to finish.
func (p *Pool) Stop() {
	p.wg.Wait()
}
