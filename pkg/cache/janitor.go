package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Janitor expires idle cache slots on a fixed interval in the background.
type Janitor struct {
	cache    *Cache
	interval time.Duration
	cron     *cron.Cron
	done     chan struct{}
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
}

// NewJanitor creates a janitor for c. A non-positive interval uses
// DefaultSweepInterval.
func NewJanitor(c *Cache, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Janitor{
		cache:    c,
		interval: interval,
		logger:   slog.Default().With("component", "cache.janitor"),
	}
}

// Start schedules the sweep. The janitor stops when ctx is cancelled or
// Stop is called, and may be started again afterwards.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		return nil
	}

	c := cron.New()
	spec := "@every " + j.interval.String()
	if _, err := c.AddFunc(spec, j.Sweep); err != nil {
		return fmt.Errorf("failed to schedule cache sweep %q: %w", spec, err)
	}
	c.Start()
	j.cron = c
	j.done = make(chan struct{})
	j.running = true

	j.logger.Info("cache janitor started",
		"interval", j.interval,
		"ttl", j.cache.TTL(),
		"capacity", j.cache.Capacity(),
	)

	go func(done <-chan struct{}) {
		select {
		case <-ctx.Done():
			j.Stop()
		case <-done:
		}
	}(j.done)

	return nil
}

// Sweep runs one expiry pass against the cache's clock.
func (j *Janitor) Sweep() {
	removed := j.cache.Expire(j.cache.now())
	if removed > 0 {
		j.logger.Debug("expired cache slots",
			"removed", removed,
			"remaining", j.cache.Len(),
		)
	}
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.running {
		return
	}
	<-j.cron.Stop().Done()
	close(j.done)
	j.running = false
	j.logger.Info("cache janitor stopped")
}

// IsRunning reports whether the sweep is scheduled.
func (j *Janitor) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// NextRun returns when the next sweep is due, or nil if not running.
func (j *Janitor) NextRun() *time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.running {
		return nil
	}
	entries := j.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
