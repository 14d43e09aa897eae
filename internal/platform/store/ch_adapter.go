package store

import (
	"context"
	"errors"
	"time"

	"crimetrends/internal/platform/logger"
	"crimetrends/internal/platform/store/ch"
)

// chConn is the part of *ch.CH the adapter uses
type chConn interface {
	Exec(ctx context.Context, sql string, args ...any) error
	Insert(ctx context.Context, table string, rows [][]any) error
	Query(ctx context.Context, sql string, args ...any) (ch.Rows, error)
	Ping(ctx context.Context) error
	Close() error
}

// newCHAdapter wraps an open client as the store.Clickhouse seam
func newCHAdapter(c chConn, log logger.Logger, logSQL bool) *clickhouseAdapter {
	a := &clickhouseAdapter{inner: c}
	if logSQL {
		l := log.With().Str("component", "ch").Logger()
		a.log = &l
	}
	return a
}

// clickhouseAdapter adapts *ch.CH to the store.Clickhouse interface
type clickhouseAdapter struct {
	inner chConn
	log   *logger.Logger
}

var _ Clickhouse = (*clickhouseAdapter)(nil)

func (a *clickhouseAdapter) Exec(ctx context.Context, sql string, args ...any) error {
	start := time.Now()
	err := a.inner.Exec(ctx, sql, args...)
	a.emit(sql, start, err)
	return err
}

func (a *clickhouseAdapter) Insert(ctx context.Context, table string, rows [][]any) error {
	start := time.Now()
	err := a.inner.Insert(ctx, table, rows)
	a.emit("INSERT INTO "+table, start, err)
	return err
}

func (a *clickhouseAdapter) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	start := time.Now()
	r, err := a.inner.Query(ctx, sql, args...)
	a.emit(sql, start, err)
	if err != nil {
		return nil, err
	}
	return &rowsAdapter{r: r}, nil
}

func (a *clickhouseAdapter) Close() error { return a.inner.Close() }

// Ping verifies connectivity with ClickHouse
func (a *clickhouseAdapter) Ping(ctx context.Context) error {
	if a == nil || a.inner == nil {
		return errors.New("store: nil clickhouse adapter")
	}
	return a.inner.Ping(ctx)
}

func (a *clickhouseAdapter) emit(sql string, start time.Time, err error) {
	if a.log == nil {
		return
	}
	a.log.Info().
		Float64("elapsed_ms", float64(time.Since(start).Microseconds())/1000.0).
		Str("sql", sql).
		Err(err).
		Msg("ch query")
}

// rowsAdapter wraps ch.Rows as store.Rows
type rowsAdapter struct {
	r ch.Rows
}

func (r *rowsAdapter) Next() bool             { return r.r.Next() }
func (r *rowsAdapter) Scan(dest ...any) error { return r.r.Scan(dest...) }
func (r *rowsAdapter) Err() error             { return r.r.Err() }
func (r *rowsAdapter) Close()                 { _ = r.r.Close() }
func (r *rowsAdapter) Columns() []string      { return r.r.Columns() }
