// Package invoker hardens model calls with bounded retries, exponential
// backoff and failure classification. Every attempt either returns the
// provider response or a classified error; once attempts are exhausted (or a
// fatal error aborts the loop) callers receive an *InvocationError carrying
// the last cause, its classification and the number of attempts spent.
package invoker

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/patientsim/logging"
	"github.com/hupe1980/patientsim/model"
)

// InvocationError is the terminal failure of an invocation. Kind reflects
// the classification of the last underlying error.
type InvocationError struct {
	Kind     model.ErrorKind
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *InvocationError) Error() string {
	return fmt.Sprintf("invocation failed after %d attempt(s) (%s): %v", e.Attempts, e.Kind, e.Err)
}

// Unwrap returns the last underlying provider error.
func (e *InvocationError) Unwrap() error { return e.Err }

// Options configure the Invoker.
type Options struct {
	// MaxAttempts bounds the total number of attempts, first try included.
	MaxAttempts int
	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration
	// Multiplier grows the delay after every retry.
	Multiplier float64
	// MaxDelay caps the grown delay.
	MaxDelay time.Duration
	// Limiter throttles attempts across all sessions. Nil disables
	// throttling.
	Limiter *rate.Limiter
	// Sleep waits between attempts. Replaced in tests to assert the backoff
	// schedule without real waiting.
	Sleep func(ctx context.Context, d time.Duration) error

	Logger logging.Logger
}

// Invoker retries model generation with exponential backoff.
type Invoker struct {
	model model.Model
	opts  Options
}

// New creates an Invoker wrapping m.
func New(m model.Model, optFns ...func(o *Options)) *Invoker {
	opts := Options{
		MaxAttempts: 5,
		BaseDelay:   5 * time.Second,
		Multiplier:  2,
		MaxDelay:    30 * time.Second,
		Sleep:       sleepContext,
		Logger:      logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Invoker{model: m, opts: opts}
}

// Invoke runs Generate with up to MaxAttempts attempts. Rate limits and
// transient faults wait min(MaxDelay, BaseDelay*Multiplier^n) before retry
// n+1; fatal failures abort immediately. Context cancellation during a wait
// is returned as ctx.Err().
func (inv *Invoker) Invoke(ctx context.Context, req model.Request) (*model.Response, error) {
	var lastErr error

	for attempt := 0; attempt < inv.opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := inv.delay(attempt - 1)
			inv.opts.Logger.Debug("retrying model call", "attempt", attempt+1, "delay", delay)
			if err := inv.opts.Sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
		if inv.opts.Limiter != nil {
			if err := inv.opts.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := inv.model.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !model.IsRetryable(err) {
			inv.opts.Logger.Error("model call failed", "attempt", attempt+1, "error", err)
			return nil, &InvocationError{Kind: model.KindOf(err), Attempts: attempt + 1, Err: err}
		}
		inv.opts.Logger.Warn("model call failed, will retry",
			"attempt", attempt+1, "kind", model.KindOf(err).String(), "error", err)
	}

	return nil, &InvocationError{Kind: model.KindOf(lastErr), Attempts: inv.opts.MaxAttempts, Err: lastErr}
}

// delay returns the backoff before retry n (0-based), capped at MaxDelay.
// Non-positive intermediate values (multiplier overflow) also cap.
func (inv *Invoker) delay(n int) time.Duration {
	d := time.Duration(float64(inv.opts.BaseDelay) * math.Pow(inv.opts.Multiplier, float64(n)))
	if d > inv.opts.MaxDelay || d <= 0 {
		d = inv.opts.MaxDelay
	}
	return d
}

// sleepContext waits for d unless the context ends first.
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
