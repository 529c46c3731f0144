// Package pending resolves "pending" media URLs: some resolver endpoints hand
// back a conversion-job reference instead of a final byte URL, and the job has
// to be polled until the real URL and filename are known.
package pending

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

var ErrTimeout = errors.New("pending resolution timed out")

const (
	DefaultInterval    = 2 * time.Second
	DefaultMaxAttempts = 10
)

// Status is one observation of an external conversion job.
type Status struct {
	// Done is true once the job reports its completion sentinel AND both
	// FileURL and FileName are present.
	Done     bool
	FileURL  string
	FileName string
}

// A Checker performs one status-check call against the external job endpoint.
type Checker interface {
	Check(ctx context.Context, pendingURL string) (Status, error)
}

type CheckerFunc func(ctx context.Context, pendingURL string) (Status, error)

func (f CheckerFunc) Check(ctx context.Context, pendingURL string) (Status, error) {
	return f(ctx, pendingURL)
}

// Result is a completed resolution.
type Result struct {
	FileURL  string
	FileName string
}

// A Resolver is a bounded-retry state machine: attempt, sleep a fixed
// interval, attempt again, up to MaxAttempts. The sleep is injectable so tests
// don't wait on real backoff delays.
type Resolver struct {
	checker     Checker
	interval    time.Duration
	maxAttempts int
	sleep       func(ctx context.Context, d time.Duration) error
	log         *zap.SugaredLogger
}

type Option func(*Resolver)

func WithInterval(d time.Duration) Option {
	return func(r *Resolver) { r.interval = d }
}

func WithMaxAttempts(n int) Option {
	return func(r *Resolver) { r.maxAttempts = n }
}

func WithSleep(f func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Resolver) { r.sleep = f }
}

func NewResolver(checker Checker, opts ...Option) *Resolver {
	r := &Resolver{
		checker:     checker,
		interval:    DefaultInterval,
		maxAttempts: DefaultMaxAttempts,
		sleep:       sleepContext,
		log:         zap.S().Named("pending"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Await polls the job behind pendingURL until it completes or the attempt
// budget runs out. A transient per-attempt error is treated the same as "not
// ready yet" and retried; on the final attempt it becomes part of the
// ErrTimeout result. The total wait is bounded by maxAttempts regardless of
// per-call timeouts.
func (r *Resolver) Await(ctx context.Context, pendingURL string) (Result, error) {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		status, err := r.checker.Check(ctx, pendingURL)
		if err != nil {
			r.log.Debugw("status check failed", "attempt", attempt, "error", err)
			lastErr = err
		} else if status.Done {
			return Result{FileURL: status.FileURL, FileName: status.FileName}, nil
		}
		if attempt == r.maxAttempts {
			break
		}
		if err := r.sleep(ctx, r.interval); err != nil {
			return Result{}, err
		}
	}
	if lastErr != nil {
		return Result{}, errors.Join(ErrTimeout, lastErr)
	}
	return Result{}, ErrTimeout
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
