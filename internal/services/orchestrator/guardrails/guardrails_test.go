package guardrails

import (
	"context"
	"errors"
	"testing"
	"time"

	"crimetrends/internal/services/orchestrator/repo"
)

func TestWithChildTimeout_NeverExtendsParent(t *testing.T) {
	parent, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	ctx, c2 := ForTask(parent, time.Hour)
	defer c2()
	if rem := Remaining(ctx); rem <= 0 || rem > 50*time.Millisecond {
		t.Fatalf("remaining = %v", rem)
	}

	ctx, c3 := WithFlow(context.Background(), Timeouts{})
	defer c3()
	if _, ok := ctx.Deadline(); ok {
		t.Fatalf("zero budget should not set a deadline")
	}
}

func TestDetached_SurvivesParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	cancel()
	ctx, c := Detached(parent, time.Second)
	defer c()
	if ctx.Err() != nil {
		t.Fatalf("detached ctx err = %v", ctx.Err())
	}
}

// slotRepo implements the one Storage method the lease uses
type slotRepo struct {
	repo.Storage
	seen map[string]bool
}

func (s *slotRepo) ClaimScheduleSlot(_ context.Context, d string, at time.Time) (bool, error) {
	k := d + at.String()
	if s.seen[k] {
		return false, nil
	}
	s.seen[k] = true
	return true, nil
}

func TestScheduleLease_OncePerSlot(t *testing.T) {
	r := &slotRepo{seen: map[string]bool{}}
	lease := MakeScheduleLease()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	runs := 0
	do := func(context.Context) error {
		runs++
		return nil
	}

	if err := lease(context.Background(), r, "schedule-nightly", at, do); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if err := lease(context.Background(), r, "schedule-nightly", at, do); !errors.Is(err, ErrLeaseHeld) {
		t.Fatalf("second claim err = %v", err)
	}
	if err := lease(context.Background(), r, "schedule-nightly", at.Add(time.Hour), do); err != nil {
		t.Fatalf("next slot: %v", err)
	}
	if runs != 2 {
		t.Fatalf("runs = %d, want 2", runs)
	}
}

func TestScheduleLease_ClaimErrorSkipsDo(t *testing.T) {
	boom := errors.New("connection reset")
	r := &failingSlotRepo{err: boom}
	called := false
	err := MakeScheduleLease()(context.Background(), r, "schedule-nightly", time.Now(), func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, boom) || called {
		t.Fatalf("err = %v, do called = %v", err, called)
	}
}

type failingSlotRepo struct {
	repo.Storage
	err error
}

func (f *failingSlotRepo) ClaimScheduleSlot(context.Context, string, time.Time) (bool, error) {
	return false, f.err
}
