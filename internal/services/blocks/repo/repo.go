// Package repo provides postgres storage for blocks
package repo

import (
	"context"
	"errors"

	"crimetrends/internal/modkit/repokit"
	perr "crimetrends/internal/platform/errors"
	"crimetrends/internal/platform/store"
	"crimetrends/internal/services/blocks/domain"
)

// Schema creates the blocks table
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS blocks (
		name       text PRIMARY KEY,
		block_type text NOT NULL,
		data       jsonb NOT NULL,
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,
}

// Storage is the blocks repository
type Storage interface {
	// Get returns ok=false when no block has that name
	Get(ctx context.Context, name string, forUpdate bool) (domain.Block, bool, error)
	Upsert(ctx context.Context, b domain.Block) error
	List(ctx context.Context) ([]domain.Block, error)
}

type (
	// PG is a Postgres binder for Storage
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a Postgres binder for Storage
func NewPG() repokit.Binder[Storage] { return PG{} }

// Bind implements repokit.Binder
func (PG) Bind(q repokit.Queryer) Storage { return &queries{q: q} }

func scanBlock(r store.Row) (domain.Block, error) {
	var b domain.Block
	var data []byte
	if err := r.Scan(&b.Name, &b.Type, &data, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return domain.Block{}, err
	}
	b.Data = data
	return b, nil
}

// Get implements Storage
func (r *queries) Get(ctx context.Context, name string, forUpdate bool) (domain.Block, bool, error) {
	sql := `SELECT name, block_type, data, created_at, updated_at FROM blocks WHERE name = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	b, err := store.One(ctx, r.q, scanBlock, sql, name)
	if errors.Is(err, perr.ErrNotFound) {
		return domain.Block{}, false, nil
	}
	if err != nil {
		return domain.Block{}, false, err
	}
	return b, true, nil
}

// Upsert implements Storage
func (r *queries) Upsert(ctx context.Context, b domain.Block) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO blocks (name, block_type, data)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (name) DO UPDATE
		SET block_type = EXCLUDED.block_type, data = EXCLUDED.data, updated_at = now()
	`, b.Name, b.Type, string(b.Data))
	return err
}

// List implements Storage
func (r *queries) List(ctx context.Context) ([]domain.Block, error) {
	return store.Many(ctx, r.q, scanBlock,
		`SELECT name, block_type, data, created_at, updated_at FROM blocks ORDER BY name`)
}
