package repokit

import (
	"context"
	"reflect"
	"time"

	perr "crimetrends/internal/platform/errors"
)

// DefaultReadyTimeout bounds CheckReady when ctx carries no deadline
const DefaultReadyTimeout = 5 * time.Second

// Guarder verifies that every backend behind it answers
type Guarder interface {
	Guard(context.Context) error
}

// CheckReady runs g.Guard once at startup. A missing dependency is an
// InvalidArgument, a failed guard is Unavailable; both carry name as op
func CheckReady(ctx context.Context, name string, g Guarder) error {
	if g == nil || (reflect.ValueOf(g).Kind() == reflect.Pointer && reflect.ValueOf(g).IsNil()) {
		return perr.WithOp(perr.InvalidArgf("nil dependency"), name)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultReadyTimeout)
		defer cancel()
	}
	if err := g.Guard(ctx); err != nil {
		return perr.WithOp(perr.Wrap(err, perr.ErrorCodeUnavailable, "dependency guard failed"), name)
	}
	return nil
}
