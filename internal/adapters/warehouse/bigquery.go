package warehouse

import (
	"context"

	perr "crimetrends/internal/platform/errors"
	"crimetrends/internal/platform/logger"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/option"
)

// BigQuery loads parquet from gcs with load jobs
type BigQuery struct {
	c        *bigquery.Client
	location string
	// run starts and waits for the load job; replaced in tests
	run func(ctx context.Context, l *bigquery.Loader) error
}

// OpenBigQuery dials bigquery for cfg.ProjectID; empty credsJSON uses
// application default credentials
func OpenBigQuery(ctx context.Context, cfg Config, credsJSON []byte) (*BigQuery, error) {
	if cfg.ProjectID == "" {
		return nil, perr.WithField(perr.InvalidArgf("bigquery needs PROJECT_ID"), "project_id")
	}
	var opts []option.ClientOption
	if len(credsJSON) > 0 {
		opts = append(opts, option.WithCredentialsJSON(credsJSON))
	}
	c, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, perr.FromRemote(err, "bigquery client")
	}
	return &BigQuery{c: c, location: cfg.Location, run: runAndWait}, nil
}

func runAndWait(ctx context.Context, l *bigquery.Loader) error {
	job, err := l.Run(ctx)
	if err != nil {
		return err
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return err
	}
	return status.Err()
}

// configureLoader applies the overwrite, month partitioning and clustering
// settings of spec
func configureLoader(l *bigquery.Loader, spec LoadSpec) {
	l.WriteDisposition = bigquery.WriteTruncate
	l.CreateDisposition = bigquery.CreateIfNeeded
	if spec.PartitionField != "" {
		l.TimePartitioning = &bigquery.TimePartitioning{
			Type:  bigquery.MonthPartitioningType,
			Field: spec.PartitionField,
		}
	}
	if len(spec.ClusterFields) > 0 {
		l.Clustering = &bigquery.Clustering{Fields: spec.ClusterFields}
	}
}

func gcsReference(uris []string) *bigquery.GCSReference {
	ref := bigquery.NewGCSReference(uris...)
	ref.SourceFormat = bigquery.Parquet
	return ref
}

// Load runs one parquet load job and waits for it
func (b *BigQuery) Load(ctx context.Context, spec LoadSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	project, dataset, table, err := splitTable(spec.Table)
	if err != nil {
		return err
	}
	ds := b.c.Dataset(dataset)
	if project != "" {
		ds = b.c.DatasetInProject(project, dataset)
	}
	l := ds.Table(table).LoaderFrom(gcsReference(spec.SourceURIs))
	configureLoader(l, spec)
	if b.location != "" {
		l.Location = b.location
	}

	log := logger.C(ctx).With().Str("table", spec.Table).Logger()
	log.Info().Strs("uris", spec.SourceURIs).Msg("loading table")
	if err := b.run(ctx, l); err != nil {
		log.Error().Err(err).Msg("load failed")
		return perr.FromRemote(err, "bigquery load "+spec.Table)
	}
	log.Info().Msg("table loaded")
	return nil
}

// Close releases the client
func (b *BigQuery) Close() error {
	if b == nil || b.c == nil {
		return nil
	}
	return b.c.Close()
}
