package guardrails

import (
	"context"
	"errors"
	"time"

	"crimetrends/internal/services/orchestrator/repo"
)

// ErrLeaseHeld signals another agent already enqueued the slot
var ErrLeaseHeld = errors.New("orchestrator: schedule slot already claimed")

// Lease runs do once per (deployment, slot) across agents. It claims the
// slot through r, so the claim commits or rolls back with the caller's
// transaction
type Lease func(ctx context.Context, r repo.Storage, deployment string, at time.Time, do func(context.Context) error) error

// MakeScheduleLease returns a Lease backed by the schedule_leases table.
// The claim is a one-time insert; a second claim of the same slot returns
// ErrLeaseHeld without running do
func MakeScheduleLease() Lease {
	return func(ctx context.Context, r repo.Storage, deployment string, at time.Time, do func(context.Context) error) error {
		claimed, err := r.ClaimScheduleSlot(ctx, deployment, at)
		if err != nil {
			return err
		}
		if !claimed {
			return ErrLeaseHeld
		}
		return do(ctx)
	}
}
