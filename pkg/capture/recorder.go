package capture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edelkas/cuse/pkg/config"

	"github.com/google/uuid"
)

// Recorder decides what to keep of each exchange and hands it to a Store.
// A nil *Recorder records nothing.
type Recorder struct {
	store  Store
	mode   string
	now    func() time.Time
	logger *slog.Logger
}

// NewRecorder wraps store. mode must be one of the Mode constants.
func NewRecorder(store Store, mode string, logger *slog.Logger) (*Recorder, error) {
	if err := ValidateMode(mode); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:  store,
		mode:   mode,
		now:    time.Now,
		logger: logger.With("component", "capture"),
	}, nil
}

// Open builds the store described by cfg and wraps it. It returns a nil
// recorder when capture is disabled.
func Open(cfg config.CaptureConfig, logger *slog.Logger) (*Recorder, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	store, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	r, err := NewRecorder(store, cfg.Mode, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	return r, nil
}

// OpenStore builds the store named by cfg.Backend.
func OpenStore(cfg config.CaptureConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(cfg.MaxEntries), nil
	case "sqlite":
		return NewSQLiteStore(cfg.SQLitePath, cfg.MaxEntries)
	default:
		return nil, fmt.Errorf("capture: unknown backend %q (valid: memory, sqlite)", cfg.Backend)
	}
}

// Capture records one exchange. Failures are logged, never returned: a
// broken capture store must not break the proxy.
func (r *Recorder) Capture(ctx context.Context, route, method, path string, req, res []byte, d time.Duration, err error) {
	if r == nil {
		return
	}

	e := &Exchange{
		ID:       uuid.NewString(),
		Time:     r.now(),
		Route:    route,
		Method:   method,
		Path:     path,
		Duration: d,
	}
	if r.mode != ModeResponses {
		e.Request = req
	}
	if r.mode != ModeRequests {
		e.Response = res
	}
	if err != nil {
		e.Error = err.Error()
	}

	if err := r.store.Record(ctx, e); err != nil {
		r.logger.WarnContext(ctx, "failed to record exchange", "error", err)
	}
}

// Store returns the underlying store.
func (r *Recorder) Store() Store {
	if r == nil {
		return nil
	}
	return r.store
}

// Close closes the underlying store.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	return r.store.Close()
}
