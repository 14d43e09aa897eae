package service

import (
	"context"
	"encoding/json"
	"time"

	"crimetrends/internal/modkit/repokit"
	perr "crimetrends/internal/platform/errors"
	"crimetrends/internal/platform/store"
	"crimetrends/internal/services/orchestrator/repo"
)

// CachePrefix namespaces task results in the key value store
const CachePrefix = "task-cache:"

// PGCache keeps task results in the task_cache table
type PGCache struct {
	DB     repokit.TxRunner
	Binder repokit.Binder[repo.Storage]
	now    func() time.Time
}

// NewPGCache returns a ledger-backed cache
func NewPGCache(db repokit.TxRunner, binder repokit.Binder[repo.Storage]) *PGCache {
	return &PGCache{DB: db, Binder: binder, now: time.Now}
}

// Get implements domain.Cache
func (c *PGCache) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	var (
		val json.RawMessage
		ok  bool
	)
	err := c.DB.Tx(ctx, func(q repokit.Queryer) error {
		v, hit, err := c.Binder.Bind(q).CacheGet(ctx, key, c.now())
		val, ok = v, hit
		return err
	})
	if err != nil {
		return nil, false, perr.FromPostgres(err, "read task cache")
	}
	return val, ok, nil
}

// Put implements domain.Cache
func (c *PGCache) Put(ctx context.Context, key, task string, val json.RawMessage, ttl time.Duration) error {
	exp := c.now().Add(ttl)
	err := c.DB.Tx(ctx, func(q repokit.Queryer) error {
		return c.Binder.Bind(q).CachePut(ctx, key, task, val, exp)
	})
	return perr.FromPostgres(err, "write task cache")
}

// KVCache keeps task results in redis; expiry is the key ttl
type KVCache struct {
	KV store.KV
}

// NewKVCache returns a redis-backed cache
func NewKVCache(kv store.KV) *KVCache { return &KVCache{KV: kv} }

// Get implements domain.Cache
func (c *KVCache) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	b, ok, err := c.KV.Get(ctx, CachePrefix+key)
	if err != nil {
		return nil, false, perr.Wrap(err, perr.ErrorCodeUnavailable, "read task cache")
	}
	if !ok {
		return nil, false, nil
	}
	return b, true, nil
}

// Put implements domain.Cache
func (c *KVCache) Put(ctx context.Context, key, _ string, val json.RawMessage, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := c.KV.Set(ctx, CachePrefix+key, val, ttl); err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "write task cache")
	}
	return nil
}
