package app

import (
	"context"
	"sync"

	"crimetrends/internal/core/crimes"
	perr "crimetrends/internal/platform/errors"
	"crimetrends/internal/services/ingest/domain"
)

// transformOpener builds the in-process transformer and its release func
type transformOpener func(ctx context.Context) (domain.Transformer, func() error, error)

// lazyTransformer opens the transform module on the first beam run, so a
// run can pick beam even when the default mode is another one. A failed
// open is not cached; the next run tries again
type lazyTransformer struct {
	open transformOpener

	mu    sync.Mutex
	t     domain.Transformer
	close func() error
}

func newLazyTransformer(open transformOpener) *lazyTransformer {
	return &lazyTransformer{open: open}
}

// Run implements domain.Transformer
func (l *lazyTransformer) Run(ctx context.Context, args crimes.JobArgs) error {
	t, err := l.get(ctx)
	if err != nil {
		return err
	}
	return t.Run(ctx, args)
}

func (l *lazyTransformer) get(ctx context.Context) (domain.Transformer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.t != nil {
		return l.t, nil
	}
	t, closeFn, err := l.open(ctx)
	if err != nil {
		return nil, perr.WithOp(err, "warehouse open")
	}
	l.t, l.close = t, closeFn
	return t, nil
}

// Close releases the transformer if it was opened
func (l *lazyTransformer) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.close == nil {
		return nil
	}
	err := l.close()
	l.t, l.close = nil, nil
	return err
}
