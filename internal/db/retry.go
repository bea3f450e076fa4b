package db

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"net"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// Backoff controls retries of transient database errors.
type Backoff struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	Initial  time.Duration
	Max      time.Duration
	// Jitter is a fraction of the computed delay (0.25 = ±25%).
	Jitter float64
}

// DefaultBackoff suits waiting on a database that is still starting.
func DefaultBackoff() Backoff {
	return Backoff{Attempts: 5, Initial: 250 * time.Millisecond, Max: 5 * time.Second, Jitter: 0.25}
}

// Transient reports errors worth retrying: connection refusals and resets,
// network timeouts and anything pgconn marks safe to retry.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if pgconn.SafeToRetry(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED)
}

// Retry calls fn until it succeeds, fails with a non-transient error, the
// attempts run out or ctx is done. The last error is returned.
func Retry(ctx context.Context, b Backoff, op string, fn func(context.Context) error) error {
	if b.Attempts <= 0 {
		b.Attempts = 1
	}

	var err error
	for attempt := 0; attempt < b.Attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil || !Transient(err) || attempt == b.Attempts-1 {
			return err
		}

		delay := b.delay(attempt)
		zap.L().Warn("db: retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}

func (b Backoff) delay(attempt int) time.Duration {
	d := float64(b.Initial) * math.Pow(2, float64(attempt))
	if b.Max > 0 && d > float64(b.Max) {
		d = float64(b.Max)
	}
	if b.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * b.Jitter
	}
	return time.Duration(max(d, 0))
}
