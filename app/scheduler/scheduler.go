// Package scheduler triggers a full feed refresh at a fixed interval.
// Feeds are refreshed sequentially within a cycle; one slow or failing
// feed delays but never aborts the others.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Refresher interface {
	RefreshAll(ctx context.Context) map[string]int
}

type Scheduler struct {
	refresher Refresher
	interval  time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func New(refresher Refresher, interval time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		refresher: refresher,
		interval:  interval,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *Scheduler) Start() {
	if s.interval <= 0 {
		slog.Info("Background refresh disabled")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.runCycle()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.runCycle()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) runCycle() {
	start := time.Now()
	results := s.refresher.RefreshAll(s.ctx)

	total := 0
	for _, count := range results {
		total += count
	}

	slog.Info("Refresh cycle completed", "feeds", len(results), "posts", total, "duration", time.Since(start))
}
