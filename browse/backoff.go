package browse

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// ErrBudgetExhausted is returned by Waiter.Wait once MaxAttempts waits
// have been consumed. Callers translate it into their own terminal
// condition (abort the item loop, report convergence timeout).
var ErrBudgetExhausted = errors.New("browse: retry budget exhausted")

// Backoff is the wait policy applied between page interactions and
// escalated on transient failure. The zero value is usable: defaults are
// applied on Start.
//
// Every loop that retries carries a mandatory ceiling: MaxAttempts bounds
// the number of escalating waits, so no caller can spin forever on a page
// that never settles.
type Backoff struct {
	// Initial is the first wait. Default: 500ms.
	Initial time.Duration
	// Step is added to the wait after each attempt. Default: 200ms.
	Step time.Duration
	// Ceiling caps the escalated wait. Default: 10s.
	Ceiling time.Duration
	// MaxAttempts bounds Waiter.Wait calls. Default: 30.
	MaxAttempts int
	// Jitter is the mean of an exponentially-distributed random addition
	// to every wait. Zero disables jitter.
	Jitter time.Duration
}

func (b Backoff) withDefaults() Backoff {
	if b.Initial <= 0 {
		b.Initial = 500 * time.Millisecond
	}
	if b.Step <= 0 {
		b.Step = 200 * time.Millisecond
	}
	if b.Ceiling <= 0 {
		b.Ceiling = 10 * time.Second
	}
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = 30
	}
	return b
}

// Start returns a fresh Waiter for one retry sequence.
func (b Backoff) Start() *Waiter {
	return &Waiter{policy: b.withDefaults()}
}

// Pause sleeps for the initial interval plus jitter, without consuming
// retry budget. This is the inter-step pacing wait.
func (b Backoff) Pause(ctx context.Context) error {
	b = b.withDefaults()
	return sleep(ctx, b.Initial+jitter(b.Jitter))
}

// Waiter tracks one escalating retry sequence.
type Waiter struct {
	policy   Backoff
	attempts int
}

// Attempts returns the number of waits consumed so far.
func (w *Waiter) Attempts() int { return w.attempts }

// Reset restores the full budget and the initial interval. Called after a
// step succeeds so the next transient failure starts cheap again.
func (w *Waiter) Reset() { w.attempts = 0 }

// Delay returns the wait the next call to Wait would sleep, without jitter.
func (w *Waiter) Delay() time.Duration {
	d := w.policy.Initial + time.Duration(w.attempts)*w.policy.Step
	if d > w.policy.Ceiling {
		d = w.policy.Ceiling
	}
	return d
}

// Wait sleeps the current escalated interval. It returns ErrBudgetExhausted
// once MaxAttempts waits have been consumed, and the context error if ctx
// is cancelled during the sleep.
func (w *Waiter) Wait(ctx context.Context) error {
	if w.attempts >= w.policy.MaxAttempts {
		return ErrBudgetExhausted
	}
	d := w.Delay() + jitter(w.policy.Jitter)
	w.attempts++
	return sleep(ctx, d)
}

func jitter(mean time.Duration) time.Duration {
	if mean <= 0 {
		return 0
	}
	return time.Duration(rand.ExpFloat64() * float64(mean))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
