package warehouse

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"crimetrends/internal/adapters/lake"
	perr "crimetrends/internal/platform/errors"
	"crimetrends/internal/platform/logger"
	"crimetrends/internal/platform/store"
)

// ObjectAccess tells clickhouse how to reach lake objects over http
type ObjectAccess struct {
	// Endpoint is the s3 host, e.g. minio:9000; empty means
	// storage.googleapis.com for gs:// uris
	Endpoint  string
	UseSSL    bool
	AccessKey string
	SecretKey string
}

// AccessFromLake derives object access from the lake config
func AccessFromLake(c lake.Config) ObjectAccess {
	return ObjectAccess{Endpoint: c.Endpoint, UseSSL: c.UseSSL, AccessKey: c.AccessKey, SecretKey: c.SecretKey}
}

// HTTPURL maps s3://bucket/key and gs://bucket/key to the http url the
// clickhouse s3 table function reads; http(s) uris pass through
func (a ObjectAccess) HTTPURL(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "bad uri %q", uri)
	}
	switch u.Scheme {
	case "http", "https":
		return uri, nil
	case "gs":
		if a.Endpoint == "" {
			return "https://storage.googleapis.com/" + u.Host + u.Path, nil
		}
	case "s3":
		if a.Endpoint == "" {
			return "https://" + u.Host + ".s3.amazonaws.com" + u.Path, nil
		}
	default:
		return "", perr.InvalidArgf("unsupported uri scheme %q", u.Scheme)
	}
	scheme := "http"
	if a.UseSSL {
		scheme = "https"
	}
	return scheme + "://" + strings.TrimSuffix(a.Endpoint, "/") + "/" + u.Host + u.Path, nil
}

// ClickHouse replaces tables with CREATE ... AS SELECT over the s3 function
type ClickHouse struct {
	ch     store.Clickhouse
	access ObjectAccess
}

// NewClickHouse wraps an open clickhouse seam
func NewClickHouse(ch store.Clickhouse, access ObjectAccess) *ClickHouse {
	return &ClickHouse{ch: ch, access: access}
}

func quoteIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = "`" + strings.ReplaceAll(p, "`", "``") + "`"
	}
	return strings.Join(parts, ".")
}

func quoteString(s string) string {
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s) + "'"
}

func (c *ClickHouse) source(uri string) (string, error) {
	u, err := c.access.HTTPURL(uri)
	if err != nil {
		return "", err
	}
	if c.access.AccessKey != "" {
		return fmt.Sprintf("s3(%s, %s, %s, 'Parquet')",
			quoteString(u), quoteString(c.access.AccessKey), quoteString(c.access.SecretKey)), nil
	}
	return fmt.Sprintf("s3(%s, 'Parquet')", quoteString(u)), nil
}

// Statements returns the DDL and inserts that load spec
func (c *ClickHouse) Statements(spec LoadSpec) ([]string, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if _, _, _, err := splitTable(spec.Table); err != nil {
		return nil, err
	}
	table := quoteIdent(spec.Table)

	first, err := c.source(spec.SourceURIs[0])
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE OR REPLACE TABLE %s ENGINE = MergeTree", table)
	if spec.PartitionField != "" {
		fmt.Fprintf(&b, " PARTITION BY toYYYYMM(%s)", quoteIdent(spec.PartitionField))
	}
	order := "tuple()"
	if len(spec.ClusterFields) > 0 {
		cols := make([]string, len(spec.ClusterFields))
		for i, f := range spec.ClusterFields {
			cols[i] = quoteIdent(f)
		}
		order = strings.Join(cols, ", ")
		if len(cols) > 1 {
			order = "(" + order + ")"
		}
	}
	fmt.Fprintf(&b, " ORDER BY %s SETTINGS allow_nullable_key = 1 AS SELECT * FROM %s", order, first)

	stmts := []string{b.String()}
	for _, uri := range spec.SourceURIs[1:] {
		src, err := c.source(uri)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, fmt.Sprintf("INSERT INTO %s SELECT * FROM %s", table, src))
	}
	return stmts, nil
}

// Load replaces spec.Table with the rows of every source uri
func (c *ClickHouse) Load(ctx context.Context, spec LoadSpec) error {
	stmts, err := c.Statements(spec)
	if err != nil {
		return err
	}
	log := logger.C(ctx).With().Str("table", spec.Table).Logger()
	log.Info().Strs("uris", spec.SourceURIs).Msg("loading table")
	for _, s := range stmts {
		if err := c.ch.Exec(ctx, s); err != nil {
			log.Error().Err(err).Msg("load failed")
			return perr.Wrapf(err, perr.ErrorCodeDB, "clickhouse load %s", spec.Table)
		}
	}
	log.Info().Msg("table loaded")
	return nil
}

// Close is a no-op; the store owns the connection
func (c *ClickHouse) Close() error { return nil }
