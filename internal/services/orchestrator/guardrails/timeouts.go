// Package guardrails holds the time budgets and leases the orchestrator
// applies around flow and task execution
package guardrails

import (
	"context"
	"time"
)

// Timeouts is an optional budget bundle for a flow run.
// Zero values mean no extra timeout at that level
type Timeouts struct {
	// Flow is the overall time budget for one flow run
	Flow time.Duration

	// Task caps a single task attempt
	Task time.Duration

	// DB caps each ledger write
	DB time.Duration
}

// WithFlow returns a context limited by the flow budget without extending any parent deadline
func WithFlow(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Flow)
}

// ForTask returns a sub context for one task attempt bounded by d and any remaining parent budget
func ForTask(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, d)
}

// ForDB returns a sub context for a ledger write bounded by DB and any remaining parent budget
func ForDB(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.DB)
}

// Detached returns a context that keeps the values of parent but not its
// cancellation, bounded by d. Ledger writes that record a cancelled run use it
func Detached(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(context.WithoutCancel(parent), d)
}

// Remaining returns the time until the deadline on ctx or zero when none is set or already expired
func Remaining(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		d := time.Until(dl)
		if d > 0 {
			return d
		}
	}
	return 0
}

// withChildTimeout chooses the tighter of the requested duration and any parent remainder.
// When d is zero it returns a cancelable child inheriting the parent deadline
func withChildTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	if rem := Remaining(parent); rem > 0 && rem < d {
		return context.WithTimeout(parent, rem)
	}
	return context.WithTimeout(parent, d)
}
