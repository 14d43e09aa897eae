package store

import (
	"context"
	"errors"
	"time"
)

type fakeTag struct{ n int64 }

func (f fakeTag) String() string      { return "UPDATE" }
func (f fakeTag) RowsAffected() int64 { return f.n }

// fakeRows yields rows of values; Scan copies them into *int, *string or *any
type fakeRows struct {
	cols   []string
	data   [][]any
	i      int
	err    error
	closed bool
}

func (r *fakeRows) Next() bool {
	if r.i >= len(r.data) {
		return false
	}
	r.i++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.i-1]
	if len(dest) != len(row) {
		return errors.New("scan arity")
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int:
			p2, ok := row[i].(int)
			if !ok {
				return errors.New("scan type")
			}
			*p = p2
		case *string:
			p2, ok := row[i].(string)
			if !ok {
				return errors.New("scan type")
			}
			*p = p2
		case *any:
			*p = row[i]
		default:
			return errors.New("unsupported dest")
		}
	}
	return nil
}

func (r *fakeRows) Err() error        { return r.err }
func (r *fakeRows) Close()            { r.closed = true }
func (r *fakeRows) Columns() []string { return r.cols }

type fakeRow struct {
	v   any
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	switch p := dest[0].(type) {
	case *int:
		*p = r.v.(int)
	case *string:
		*p = r.v.(string)
	}
	return nil
}

type fakeQuerier struct {
	tag     fakeTag
	execErr error
	rows    *fakeRows
	qErr    error
	row     fakeRow
	lastSQL string
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, _ ...any) (CommandTag, error) {
	f.lastSQL = sql
	return f.tag, f.execErr
}

func (f *fakeQuerier) Query(_ context.Context, sql string, _ ...any) (Rows, error) {
	f.lastSQL = sql
	if f.qErr != nil {
		return nil, f.qErr
	}
	return f.rows, nil
}

func (f *fakeQuerier) QueryRow(_ context.Context, sql string, _ ...any) Row {
	f.lastSQL = sql
	return f.row
}

// fakeBackend pings and closes with preset errors
type fakeBackend struct {
	pingErr  error
	closeErr error
	closed   bool
}

func (f *fakeBackend) Ping(context.Context) error { return f.pingErr }
func (f *fakeBackend) Close() error               { f.closed = true; return f.closeErr }

type fakeTx struct {
	fakeQuerier
	fakeBackend
}

func (f *fakeTx) Tx(ctx context.Context, fn func(q RowQuerier) error) error { return fn(f) }

type fakeKV struct {
	fakeBackend
	m map[string][]byte
}

func (f *fakeKV) Get(_ context.Context, k string) ([]byte, bool, error) {
	v, ok := f.m[k]
	return v, ok, nil
}

func (f *fakeKV) Set(_ context.Context, k string, v []byte, _ time.Duration) error {
	if f.m == nil {
		f.m = map[string][]byte{}
	}
	f.m[k] = v
	return nil
}

func (f *fakeKV) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.m, k)
	}
	return nil
}
