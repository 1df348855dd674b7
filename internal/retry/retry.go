// Package retry bounds outbound capability calls (model, embedding, web
// search) with a per-attempt timeout and retries transient failures with
// exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var (
	// ErrCapabilityUnavailable marks a remote capability that failed for a
	// reason retrying will not fix. It is fatal to the current turn.
	ErrCapabilityUnavailable = errors.New("capability unavailable")

	// ErrTransient marks a call that kept timing out until the retry budget ran out.
	ErrTransient = errors.New("transient failure")
)

// Policy configures timeouts and retries for one kind of outbound call.
type Policy struct {
	Timeout         time.Duration
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// Logger receives retry warnings. Nil means slog.Default().
	Logger *slog.Logger
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		Timeout:         60 * time.Second,
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// WithLogger returns a copy of p that logs through logger.
func (p Policy) WithLogger(logger *slog.Logger) Policy {
	p.Logger = logger
	return p
}

func (p Policy) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.MaxElapsedTime = 0

	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// Do calls op until it succeeds, fails permanently, or the retry budget is
// spent. Each attempt gets its own timeout derived from ctx. Only transient
// errors (see IsTransient) are retried.
//
// The returned error wraps ErrTransient when retries were exhausted on
// timeouts, ErrCapabilityUnavailable for any other failure, and ctx.Err()
// when the caller's context ended.
func Do[T any](ctx context.Context, p Policy, name string, op func(ctx context.Context) (T, error)) (T, error) {
	var (
		result   T
		attempts int
	)

	err := backoff.RetryNotify(func() error {
		attempts++
		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		}
		defer cancel()

		v, err := op(callCtx)
		if err == nil {
			result = v
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}, p.backOff(ctx), func(err error, wait time.Duration) {
		p.logger().WarnContext(ctx, "retrying capability call", "call", name, "attempt", attempts, "wait_ms", wait.Milliseconds(), "error", err)
	})

	switch {
	case err == nil:
		return result, nil
	case ctx.Err() != nil:
		return result, fmt.Errorf("%s: %w", name, ctx.Err())
	case IsTransient(err):
		return result, fmt.Errorf("%s after %d attempts: %w: %w", name, attempts, ErrTransient, err)
	case errors.Is(err, ErrCapabilityUnavailable):
		return result, fmt.Errorf("%s: %w", name, err)
	default:
		return result, fmt.Errorf("%s: %w: %w", name, ErrCapabilityUnavailable, err)
	}
}

// IsTransient reports whether err looks like a timeout that a later attempt could avoid.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "deadline exceeded") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "timed out")
}
