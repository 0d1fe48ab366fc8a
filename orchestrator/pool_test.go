package orchestrator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsAllTasks(t *testing.T) {
	p := NewPool(3)
	var n atomic.Int32
	for i := 0; i < 20; i++ {
		if err := p.Run(context.Background(), func() { n.Add(1) }, func() { n.Add(1) }); err != nil {
			t.Fatalf("run: %v", err)
		}
	}
	p.Stop()
	p.Stop()
	if n.Load() != 40 {
		t.Fatalf("ran %d tasks, want 40", n.Load())
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	p := NewPool(2)
	var running, peak atomic.Int32
	task := func() {
		cur := running.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
	}
	for i := 0; i < 6; i++ {
		if err := p.Run(context.Background(), task); err != nil {
			t.Fatalf("run: %v", err)
		}
	}
	p.Stop()
	if peak.Load() > 2 {
		t.Fatalf("%d tasks ran at once on a pool of 2", peak.Load())
	}
}

func TestPoolStartsGroupTogether(t *testing.T) {
	p := NewPool(2)
	release := make(chan struct{})
	if err := p.Run(context.Background(), func() { <-release }); err != nil {
		t.Fatalf("run: %v", err)
	}

	started := make(chan struct{}, 2)
	admitted := make(chan error, 1)
	go func() {
		admitted <- p.Run(context.Background(), func() { started <- struct{}{} }, func() { started <- struct{}{} })
	}()

	select {
	case <-started:
		t.Fatalf("group member started while only one worker was free")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	if err := <-admitted; err != nil {
		t.Fatalf("run: %v", err)
	}
	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatalf("group did not start")
		}
	}
	p.Stop()
}

func TestPoolRunRejectsOversizedGroup(t *testing.T) {
	p := NewPool(1)
	if err := p.Run(context.Background(), func() {}, func() {}); err == nil {
		t.Fatalf("expected an error for a group larger than the pool")
	}
}

func TestPoolRunGivesUpWithContext(t *testing.T) {
	p := NewPool(2)
	release := make(chan struct{})
	if err := p.Run(context.Background(), func() { <-release }); err != nil {
		t.Fatalf("run: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Run(ctx, func() {}, func() {})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}

	close(release)
	p.Stop()
	var n atomic.Int32
	if err := p.Run(context.Background(), func() { n.Add(1) }, func() { n.Add(1) }); err != nil {
		t.Fatalf("workers leaked by abandoned group: %v", err)
	}
	p.Stop()
	if n.Load() != 2 {
		t.Fatalf("ran %d tasks, want 2", n.Load())
	}
}
