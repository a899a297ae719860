package poll

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultInitialInterval = time.Second
	DefaultMaxInterval     = 10 * time.Second
	DefaultFactor          = 2
	DefaultMinCheckGap     = 500 * time.Millisecond
)

// Strategy blocks before the next status check. attempt starts at 1,
// retryAfter is the server hint or zero.
type Strategy interface {
	Wait(ctx context.Context, attempt int, retryAfter time.Duration) error
}

// CheckFunc reports whether the awaited operation is done. retryAfter is
// forwarded to the strategy.
type CheckFunc func(ctx context.Context) (done bool, retryAfter time.Duration, err error)

// Until calls check until it reports done, fails, or ctx is cancelled.
func Until(ctx context.Context, s Strategy, check CheckFunc) error {
	for attempt := 1; ; attempt++ {
		done, retryAfter, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		if err = s.Wait(ctx, attempt, retryAfter); err != nil {
			return err
		}
	}
}

// Default returns exponential backoff throttled to one check per
// DefaultMinCheckGap.
func Default() Strategy {
	return Throttle(
		Exponential{
			Initial: DefaultInitialInterval,
			Max:     DefaultMaxInterval,
			Factor:  DefaultFactor,
		},
		rate.NewLimiter(rate.Every(DefaultMinCheckGap), 1),
	)
}

type Exponential struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
}

func (e Exponential) Delay(attempt int, retryAfter time.Duration) time.Duration {
	initial := e.Initial
	if initial <= 0 {
		initial = DefaultInitialInterval
	}
	factor := e.Factor
	if factor < 1 {
		factor = DefaultFactor
	}

	delay := float64(initial)
	for i := 1; i < attempt; i++ {
		delay *= factor
		if e.Max > 0 && delay >= float64(e.Max) {
			delay = float64(e.Max)
			break
		}
	}

	d := time.Duration(delay)
	if e.Max > 0 && d > e.Max {
		d = e.Max
	}

	return max(d, retryAfter)
}

func (e Exponential) Wait(ctx context.Context, attempt int, retryAfter time.Duration) error {
	return sleep(ctx, e.Delay(attempt, retryAfter))
}

type throttled struct {
	inner   Strategy
	limiter *rate.Limiter
}

// Throttle caps the check rate of inner with limiter.
func Throttle(inner Strategy, limiter *rate.Limiter) Strategy {
	return &throttled{inner: inner, limiter: limiter}
}

func (t *throttled) Wait(ctx context.Context, attempt int, retryAfter time.Duration) error {
	if err := t.inner.Wait(ctx, attempt, retryAfter); err != nil {
		return err
	}

	return t.limiter.Wait(ctx)
}

// Immediate never sleeps.
type Immediate struct{}

func (Immediate) Wait(ctx context.Context, _ int, _ time.Duration) error {
	return ctx.Err()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
