// Package warehouse loads transformed parquet files into the analytical
// store, replacing the table each time
package warehouse

import (
	"context"
	"strings"

	"crimetrends/internal/core/crimes"
	"crimetrends/internal/platform/config"
	perr "crimetrends/internal/platform/errors"
)

// Backends
const (
	BackendBigQuery   = "bigquery"
	BackendClickHouse = "clickhouse"
)

// LoadSpec describes one table load
type LoadSpec struct {
	// Table is dataset.table, or project.dataset.table on bigquery
	Table          string
	SourceURIs     []string
	PartitionField string
	ClusterFields  []string
}

// CrimeTable returns the spec for a city table partitioned and clustered on
// crime_date
func CrimeTable(table string, uris ...string) LoadSpec {
	return LoadSpec{
		Table:          table,
		SourceURIs:     uris,
		PartitionField: crimes.PartitionField,
		ClusterFields:  []string{crimes.PartitionField},
	}
}

// Validate checks the spec before any remote call
func (s LoadSpec) Validate() error {
	if strings.TrimSpace(s.Table) == "" {
		return perr.WithField(perr.InvalidArgf("table is empty"), "table")
	}
	if len(s.SourceURIs) == 0 {
		return perr.WithField(perr.InvalidArgf("no source uris for %s", s.Table), "source_uris")
	}
	for _, u := range s.SourceURIs {
		if strings.TrimSpace(u) == "" {
			return perr.WithField(perr.InvalidArgf("empty source uri for %s", s.Table), "source_uris")
		}
	}
	return nil
}

// Loader overwrites a warehouse table from parquet files
type Loader interface {
	Load(ctx context.Context, spec LoadSpec) error
	Close() error
}

// Config selects the backend
type Config struct {
	Backend   string
	ProjectID string
	Location  string
}

// FromConfig reads WAREHOUSE_BACKEND, WAREHOUSE_LOCATION and PROJECT_ID
func FromConfig(cfg config.Conf) Config {
	wh := cfg.Prefix("WAREHOUSE_")
	return Config{
		Backend:   wh.MayEnum("BACKEND", BackendBigQuery, BackendBigQuery, BackendClickHouse),
		ProjectID: cfg.MayString("PROJECT_ID", ""),
		Location:  wh.MayString("LOCATION", ""),
	}
}

// splitTable returns the (project, dataset, table) parts of name
func splitTable(name string) (project, dataset, table string, err error) {
	parts := strings.Split(strings.TrimSpace(name), ".")
	for _, p := range parts {
		if p == "" {
			return "", "", "", perr.WithField(perr.InvalidArgf("bad table name %q", name), "table")
		}
	}
	switch len(parts) {
	case 2:
		return "", parts[0], parts[1], nil
	case 3:
		return parts[0], parts[1], parts[2], nil
	default:
		return "", "", "", perr.WithField(perr.InvalidArgf("table %q is not dataset.table", name), "table")
	}
}
