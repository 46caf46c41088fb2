package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner deletes exchanges older than a maximum age on a cron schedule.
// Count limits are enforced by the stores themselves on every Record.
type Pruner struct {
	store    Store
	maxAge   time.Duration
	schedule string
	now      func() time.Time
	logger   *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	done    chan struct{}
	running bool
}

// NewPruner creates a pruner for store. A zero maxAge disables pruning.
func NewPruner(store Store, maxAge time.Duration, schedule string, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		store:    store,
		maxAge:   maxAge,
		schedule: schedule,
		now:      time.Now,
		logger:   logger.With("component", "capture.retention"),
	}
}

// Prune deletes every exchange older than the maximum age.
func (p *Pruner) Prune(ctx context.Context) (int, error) {
	if p.maxAge <= 0 {
		return 0, nil
	}
	cutoff := p.now().Add(-p.maxAge)
	n, err := p.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("capture: prune before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if n > 0 {
		p.logger.Info("pruned captures", "deleted", n, "max_age", p.maxAge)
	} else {
		p.logger.Debug("no captures pruned", "max_age", p.maxAge)
	}
	return n, nil
}

// Start schedules Prune. It does nothing when the maximum age is zero.
// The pruner stops when ctx is cancelled or Stop is called.
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running || p.maxAge <= 0 {
		return nil
	}
	if _, err := cron.ParseStandard(p.schedule); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", p.schedule, err)
	}
	c := cron.New()
	if _, err := c.AddFunc(p.schedule, func() {
		if _, err := p.Prune(ctx); err != nil {
			p.logger.Error("scheduled pruning failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}
	c.Start()
	p.cron = c
	p.done = make(chan struct{})
	p.running = true
	p.logger.Info("capture pruning scheduled", "schedule", p.schedule, "max_age", p.maxAge)

	go func(done <-chan struct{}) {
		select {
		case <-ctx.Done():
			p.Stop()
		case <-done:
		}
	}(p.done)
	return nil
}

// Stop stops the schedule and waits for a running prune to finish.
func (p *Pruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	<-p.cron.Stop().Done()
	close(p.done)
	p.running = false
}

// IsRunning reports whether pruning is scheduled.
func (p *Pruner) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
