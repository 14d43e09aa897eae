package warehouse

import (
	"context"

	perr "crimetrends/internal/platform/errors"
	"crimetrends/internal/platform/store"
)

// Open builds the configured backend. ch and access are used by the
// clickhouse backend, credsJSON by bigquery
func Open(ctx context.Context, cfg Config, credsJSON []byte, ch store.Clickhouse, access ObjectAccess) (Loader, error) {
	switch cfg.Backend {
	case "", BackendBigQuery:
		bq, err := OpenBigQuery(ctx, cfg, credsJSON)
		if err != nil {
			return nil, err
		}
		return bq, nil
	case BackendClickHouse:
		if ch == nil {
			return nil, perr.InvalidArgf("clickhouse warehouse needs SERVICE_CLICKHOUSE_DBURL")
		}
		return NewClickHouse(ch, access), nil
	default:
		return nil, perr.InvalidArgf("unknown warehouse backend %q", cfg.Backend)
	}
}
