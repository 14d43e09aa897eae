//go:build integration_pg

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	perr "crimetrends/internal/platform/errors"
	"crimetrends/internal/platform/store/storetest"

	"github.com/rs/zerolog"
)

func TestPG_Integration_ExecQueryTx(t *testing.T) {
	dsn := storetest.Postgres(t)

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	s, err := Open(ctx, Config{AppName: "store-it", PG: PGConfig{Enabled: true, URL: dsn, LogSQL: true}},
		WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	if err := s.Guard(ctx); err != nil {
		t.Fatalf("Guard: %v", err)
	}

	if _, err := s.PG.Exec(ctx, `CREATE TABLE blocks (name text PRIMARY KEY, kind text NOT NULL)`); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := ExecOne(ctx, s.PG, `INSERT INTO blocks (name, kind) VALUES ($1, $2)`, "gcp-creds", "gcp-credentials"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	_, err = s.PG.Exec(ctx, `INSERT INTO blocks (name, kind) VALUES ($1, $2)`, "gcp-creds", "gcp-credentials")
	if !perr.IsDuplicateKey(err) {
		t.Fatalf("want duplicate key, got %v", err)
	}

	rollback := errors.New("rollback")
	err = s.PG.Tx(ctx, func(q RowQuerier) error {
		if _, err := q.Exec(ctx, `INSERT INTO blocks (name, kind) VALUES ('tmp', 'gcs-bucket')`); err != nil {
			return err
		}
		return rollback
	})
	if !errors.Is(err, rollback) {
		t.Fatalf("Tx err = %v", err)
	}

	n, err := Scalar[int64](ctx, s.PG, `SELECT count(*) FROM blocks`)
	if err != nil || n != 1 {
		t.Fatalf("count = %d, %v (tx should have rolled back)", n, err)
	}

	kinds, err := Many(ctx, s.PG, func(r Row) (string, error) {
		var k string
		return k, r.Scan(&k)
	}, `SELECT kind FROM blocks ORDER BY name`)
	if err != nil || len(kinds) != 1 || kinds[0] != "gcp-credentials" {
		t.Fatalf("kinds = %v, %v", kinds, err)
	}

	rows, err := s.PG.Query(ctx, `SELECT name, kind FROM blocks`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if cols := rows.Columns(); len(cols) != 2 || cols[0] != "name" {
		t.Fatalf("columns = %v", cols)
	}
	rows.Close()
}
