package domain

import (
	"context"
	"encoding/json"

	"crimetrends/internal/adapters/dataproc"
	"crimetrends/internal/core/crimes"
	"crimetrends/internal/core/sources"
)

// Downloader fetches one export to local disk
type Downloader interface {
	Download(ctx context.Context, url, csvName string) (string, error)
	PathFor(csvName string) string
}

// Submitter submits the transform job to the cluster
type Submitter interface {
	Submit(ctx context.Context, spec dataproc.JobSpec) (string, error)
}

// Transformer runs the transform in-process and loads the warehouse
type Transformer interface {
	Run(ctx context.Context, args crimes.JobArgs) error
}

// FlowPort runs the ingest flows
type FlowPort interface {
	// ParentFlow ingests every selected source, then runs the transform stage
	ParentFlow(ctx context.Context, params json.RawMessage) error
	// WebToLake downloads one source and stages it in the lake
	WebToLake(ctx context.Context, src sources.Source) error
}
