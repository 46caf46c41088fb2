package capture

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Modes select which halves of an exchange are kept.
const (
	ModeRequests  = "requests"
	ModeResponses = "responses"
	ModeAll       = "all"
)

// Routes an exchange can take through the proxy.
const (
	RouteIntercept = "intercept"
	RouteForward   = "forward"
)

// ErrClosed is returned by stores after Close.
var ErrClosed = errors.New("capture: store closed")

// Exchange is one client request and the response the proxy sent back.
type Exchange struct {
	ID       string        `json:"id"`
	Seq      int64         `json:"seq"`
	Time     time.Time     `json:"time"`
	Route    string        `json:"route"`
	Method   string        `json:"method"`
	Path     string        `json:"path"`
	Request  []byte        `json:"request,omitempty"`
	Response []byte        `json:"response,omitempty"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// ListOptions filters List results. Results are newest first.
type ListOptions struct {
	// Route keeps only exchanges of this route when set.
	Route string

	// Limit caps the number of results. Zero means no limit.
	Limit int
}

// Store persists exchanges.
type Store interface {
	// Record stores e. Seq is assigned by the store.
	Record(ctx context.Context, e *Exchange) error

	// List returns stored exchanges, newest first.
	List(ctx context.Context, opts ListOptions) ([]*Exchange, error)

	// Count returns the number of stored exchanges.
	Count(ctx context.Context) (int, error)

	// DeleteBefore removes exchanges recorded before cutoff and returns
	// how many were removed.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)

	// Close releases the store.
	Close() error
}

// ValidateMode checks mode is one of the known modes.
func ValidateMode(mode string) error {
	switch mode {
	case ModeRequests, ModeResponses, ModeAll:
		return nil
	default:
		return fmt.Errorf("capture: unknown mode %q (valid: requests, responses, all)", mode)
	}
}
