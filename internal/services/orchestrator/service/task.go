package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math/rand"
	"time"

	perr "crimetrends/internal/platform/errors"
	"crimetrends/internal/platform/logger"
	"crimetrends/internal/platform/metrics"
	"crimetrends/internal/services/orchestrator/domain"
	"crimetrends/internal/services/orchestrator/guardrails"
	"crimetrends/internal/services/orchestrator/repo"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TaskOptions configures retry and caching of one task
type TaskOptions struct {
	// Retries is the number of extra attempts after a failure
	Retries int
	// RetryDelay is the wait between attempts
	RetryDelay time.Duration
	// Jitter adds up to Jitter*RetryDelay of random wait; 0 disables it
	Jitter float64
	// RetryIf reports whether err deserves another attempt; nil retries every error
	RetryIf func(err error) bool
	// Timeout caps each attempt; 0 means no extra limit
	Timeout time.Duration

	// CacheKey derives the cache key from the task name and inputs; nil disables caching
	CacheKey func(task string, inputs any) (string, error)
	// CacheExpiration is how long a cached result stays fresh
	CacheExpiration time.Duration
}

// InputHash is the default cache key: sha256 of the task name followed by
// the JSON encoding of inputs
func InputHash(task string, inputs any) (string, error) {
	b, err := json.Marshal(inputs)
	if err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeJSON, "hash inputs of %s", task)
	}
	h := sha256.New()
	h.Write([]byte(task))
	h.Write(b)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// delay returns the wait before retry i (0 based)
func (o TaskOptions) delay() time.Duration {
	d := o.RetryDelay
	if d <= 0 {
		return 0
	}
	if o.Jitter > 0 {
		if j := int64(float64(d) * o.Jitter); j > 0 {
			d += time.Duration(rand.Int63n(j))
		}
	}
	return d
}

// Task runs fn as the named task of the flow run in ctx. Each attempt is
// recorded as a task run. Failed attempts are retried after RetryDelay until
// Retries is exhausted, RetryIf refuses or ctx ends. With a CacheKey a fresh
// cached result is returned without calling fn.
// Outside a flow run fn still gets retries but nothing is recorded or cached
func Task[T any](ctx context.Context, name string, opts TaskOptions, inputs any, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	scope := scopeOf(ctx)
	ctx = logger.WithTask(ctx, name)
	log := logger.C(ctx)

	var key string
	if scope != nil && scope.rt.Cache != nil && opts.CacheKey != nil && opts.CacheExpiration > 0 {
		k, err := opts.CacheKey(name, inputs)
		if err != nil {
			return zero, err
		}
		key = k
		if v, ok := cachedResult[T](ctx, scope, name, key, log); ok {
			return v, nil
		}
	}

	attempts := max(opts.Retries, 0) + 1
	var last error
	for i := range attempts {
		v, err := runAttempt(ctx, scope, name, i+1, key, opts.Timeout, fn)
		if err == nil {
			if key != "" {
				storeResult(ctx, scope, name, key, v, opts.CacheExpiration, log)
			}
			return v, nil
		}
		last = err

		if ctx.Err() != nil {
			return zero, last
		}
		if i == attempts-1 {
			break
		}
		if opts.RetryIf != nil && !opts.RetryIf(err) {
			log.Error().Err(err).Int("attempt", i+1).Msg("Task run failed; error is not retryable")
			return zero, last
		}
		d := opts.delay()
		log.Warn().Err(err).Int("attempt", i+1).Dur("retry_in", d).
			Msgf("Task run failed; retrying in %s (%d/%d)", d, i+1, attempts-1)
		if se := sleepCtx(ctx, d); se != nil {
			return zero, last
		}
	}
	log.Error().Err(last).Int("attempts", attempts).Msg("Task run failed; retries exhausted")
	return zero, last
}

func runAttempt[T any](
	ctx context.Context,
	scope *runScope,
	name string,
	attempt int,
	key string,
	timeout time.Duration,
	fn func(context.Context) (T, error),
) (T, error) {
	ctx, span := tracer.Start(ctx, "task "+name, trace.WithAttributes(
		attribute.String("task.name", name),
		attribute.Int("task.attempt", attempt),
	))
	defer span.End()

	var trID string
	if scope != nil {
		trID = scope.rt.newID()
		tr := domain.TaskRun{
			ID: trID, FlowRunID: scope.runID, Task: name, Attempt: attempt,
			State: domain.StateRunning, CacheKey: key, StartedAt: scope.rt.now().UTC(),
		}
		if err := scope.rt.ledger(ctx, func(r repo.Storage) error { return r.InsertTaskRun(ctx, tr) }); err != nil {
			logger.C(ctx).Warn().Err(err).Msg("could not record task run")
			trID = ""
		}
	}

	tctx, cancel := guardrails.ForTask(ctx, timeout)
	v, err := callTask(tctx, fn)
	cancel()

	state := domain.StateCompleted
	if err != nil {
		state = domain.StateFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, "task failed")
	}
	metrics.TaskRuns.WithLabelValues(name, string(state)).Inc()
	if trID != "" {
		if lerr := scope.rt.ledgerAfter(ctx, func(r repo.Storage) error {
			return r.FinishTaskRun(ctx, trID, state, errText(err))
		}); lerr != nil {
			logger.C(ctx).Warn().Err(lerr).Msg("could not finish task run")
		}
	}
	return v, err
}

func callTask[T any](ctx context.Context, fn func(context.Context) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = perr.PanicErrf("task panicked: %v", r)
		}
	}()
	return fn(ctx)
}

func cachedResult[T any](ctx context.Context, scope *runScope, name, key string, log *logger.Logger) (T, bool) {
	var zero T
	raw, ok, err := scope.rt.Cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Msg("task cache read failed")
		return zero, false
	}
	if !ok {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		log.Warn().Err(err).Msg("task cache entry unreadable")
		return zero, false
	}

	tr := domain.TaskRun{
		ID: scope.rt.newID(), FlowRunID: scope.runID, Task: name, Attempt: 1,
		State: domain.StateCached, CacheKey: key, StartedAt: scope.rt.now().UTC(),
	}
	if err := scope.rt.ledger(ctx, func(r repo.Storage) error {
		if err := r.InsertTaskRun(ctx, tr); err != nil {
			return err
		}
		return r.FinishTaskRun(ctx, tr.ID, domain.StateCached, "")
	}); err != nil {
		log.Warn().Err(err).Msg("could not record cached task run")
	}
	metrics.TaskCacheHits.WithLabelValues(name).Inc()
	metrics.TaskRuns.WithLabelValues(name, string(domain.StateCached)).Inc()
	log.Info().Str("cache_key", key).Msg("Finished in state Cached")
	return v, true
}

func storeResult[T any](ctx context.Context, scope *runScope, name, key string, v T, ttl time.Duration, log *logger.Logger) {
	raw, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Msg("task result not cacheable")
		return
	}
	if err := scope.rt.Cache.Put(ctx, key, name, raw, ttl); err != nil {
		log.Warn().Err(err).Msg("task cache write failed")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
