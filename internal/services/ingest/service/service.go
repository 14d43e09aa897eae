// Package service implements the ingest tasks and flows
package service

import (
	"context"
	"encoding/json"
	"path/filepath"
	"time"

	"crimetrends/internal/adapters/dataproc"
	"crimetrends/internal/adapters/lake"
	"crimetrends/internal/core/crimes"
	"crimetrends/internal/core/sources"
	perr "crimetrends/internal/platform/errors"
	"crimetrends/internal/platform/logger"
	"crimetrends/internal/platform/metrics"
	"crimetrends/internal/services/ingest/domain"
	odomain "crimetrends/internal/services/orchestrator/domain"
	orch "crimetrends/internal/services/orchestrator/service"
)

// Config holds task policy and lake layout
type Config struct {
	// DataDir is the local download root; files under it are staged as
	// data/raw/{city}/{file}
	DataDir string

	// JobFile is the transform job file name; JobFileDir holds it locally
	JobFile    string
	JobFileDir string

	DownloadRetries int
	RetryDelay      time.Duration
	RetryJitter     float64
	CacheExpiration time.Duration

	// Transform is the default transform mode
	Transform  string
	TempBucket string
	Dataset    string
}

func (c Config) withDefaults() Config {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.JobFile == "" {
		c.JobFile = "spark_job.py"
	}
	if c.JobFileDir == "" {
		c.JobFileDir = "flows"
	}
	if c.Transform == "" {
		c.Transform = domain.TransformBeam
	}
	return c
}

// Service implements domain.FlowPort
type Service struct {
	cfg    Config
	rt     odomain.RuntimePort
	web    domain.Downloader
	bucket lake.Bucket
	// submit and local are optional; a mode without its backend fails the flow
	submit domain.Submitter
	local  domain.Transformer
}

// New constructs the ingest service
func New(cfg Config, rt odomain.RuntimePort, web domain.Downloader, bucket lake.Bucket, submit domain.Submitter, local domain.Transformer) *Service {
	if rt == nil {
		panic("ingest.Service requires a non nil RuntimePort")
	}
	if web == nil {
		panic("ingest.Service requires a non nil Downloader")
	}
	if bucket == nil {
		panic("ingest.Service requires a non nil lake Bucket")
	}
	return &Service{cfg: cfg.withDefaults(), rt: rt, web: web, bucket: bucket, submit: submit, local: local}
}

// Register makes the flows runnable by the agent
func (s *Service) Register(r interface {
	Register(flow string, fn odomain.FlowFunc)
}) {
	r.Register(domain.FlowParent, s.ParentFlow)
	r.Register(domain.FlowWebToLake, func(ctx context.Context, params json.RawMessage) error {
		var src sources.Source
		if err := json.Unmarshal(params, &src); err != nil {
			return perr.Wrap(err, perr.ErrorCodeJSON, "decode source")
		}
		return s.webToLake(ctx, src)
	})
}

// Run executes the parent flow once as its own flow run
func (s *Service) Run(ctx context.Context, params json.RawMessage) (odomain.FlowRun, error) {
	return s.rt.RunFlow(ctx, domain.FlowParent, "", params, s.ParentFlow)
}

// JobArgs returns the transform arguments for the lake layout
func (s *Service) JobArgs() crimes.JobArgs {
	return crimes.DefaultJobArgs(s.bucket.URI, s.cfg.TempBucket, s.cfg.Dataset)
}

// ParentFlow implements domain.FlowPort
func (s *Service) ParentFlow(ctx context.Context, raw json.RawMessage) error {
	p, err := domain.ParseParams(raw)
	if err != nil {
		return err
	}
	mode := p.Transform
	if mode == "" {
		mode = s.cfg.Transform
	}
	log := logger.C(ctx)
	sel := p.Selection()
	srcs := sel.List()
	log.Info().Int("sources", len(srcs)).Str("transform", mode).Msg("ingesting sources")

	for _, src := range srcs {
		if err := s.WebToLake(ctx, src); err != nil {
			return err
		}
	}

	args := s.JobArgs()
	args.SDFrom, args.SDTo = sel.SDFrom, sel.SDTo

	switch mode {
	case domain.TransformCluster:
		_, err := s.SubmitTransformJob(ctx, args)
		return err
	case domain.TransformBeam:
		return s.RunLocalTransform(ctx, args)
	case domain.TransformNone:
		log.Info().Msg("transform stage skipped")
		return nil
	}
	return perr.WithField(perr.InvalidArgf("unknown transform mode %q", mode), "transform")
}

// WebToLake implements domain.FlowPort as a child flow run
func (s *Service) WebToLake(ctx context.Context, src sources.Source) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "encode source")
	}
	_, err = s.rt.RunFlow(ctx, domain.FlowWebToLake, "", raw, func(ctx context.Context, _ json.RawMessage) error {
		return s.webToLake(ctx, src)
	})
	return err
}

func (s *Service) webToLake(ctx context.Context, src sources.Source) error {
	path, err := s.DownloadFile(ctx, src.URL, src.CSVName)
	if err != nil {
		if !perr.IsRejected(err) {
			return err
		}
		// a rejected export leaves nothing on disk; the upload below skips
		path = s.web.PathFor(src.CSVName)
	}
	if err := s.UploadToLake(ctx, path); err != nil {
		return err
	}
	return s.UploadJobToLake(ctx)
}

// DownloadFile runs the download_file task
func (s *Service) DownloadFile(ctx context.Context, url, csvName string) (string, error) {
	opts := orch.TaskOptions{
		Retries:         s.cfg.DownloadRetries,
		RetryDelay:      s.cfg.RetryDelay,
		Jitter:          s.cfg.RetryJitter,
		RetryIf:         perr.Retryable,
		CacheKey:        orch.InputHash,
		CacheExpiration: s.cfg.CacheExpiration,
	}
	return orch.Task(ctx, domain.TaskDownload, opts, []string{url, csvName}, func(ctx context.Context) (string, error) {
		return s.web.Download(ctx, url, csvName)
	})
}

// UploadToLake runs the upload_to_lake task. A missing file is logged and skipped
func (s *Service) UploadToLake(ctx context.Context, path string) error {
	_, err := orch.Task(ctx, domain.TaskUpload, orch.TaskOptions{}, path, func(ctx context.Context) (bool, error) {
		if !lake.Exists(path) {
			logger.C(ctx).Info().Str("path", path).Msgf("The file '%s' does not exist.", path)
			metrics.LakeUploads.WithLabelValues("skipped").Inc()
			return false, nil
		}
		to := lake.StagingPath(s.cfg.DataDir, path)
		if err := s.bucket.Upload(ctx, path, to); err != nil {
			return false, perr.WithOp(err, "upload_to_lake")
		}
		logger.C(ctx).Info().Str("path", path).Str("uri", s.bucket.URI(to)).Msg("file uploaded to the data lake")
		return true, lake.RemoveFile(ctx, path)
	})
	return err
}

func (s *Service) jobFilePath() string { return filepath.Join(s.cfg.JobFileDir, s.cfg.JobFile) }

// UploadJobToLake runs the upload_job_to_lake task. A missing job file is logged and skipped
func (s *Service) UploadJobToLake(ctx context.Context) error {
	local := s.jobFilePath()
	_, err := orch.Task(ctx, domain.TaskUploadJob, orch.TaskOptions{}, local, func(ctx context.Context) (bool, error) {
		if !lake.Exists(local) {
			logger.C(ctx).Info().Str("path", local).Msgf("The file '%s' does not exist.", local)
			metrics.LakeUploads.WithLabelValues("skipped").Inc()
			return false, nil
		}
		if err := s.bucket.Upload(ctx, local, s.jobObject()); err != nil {
			return false, perr.WithOp(err, "upload_job_to_lake")
		}
		return true, nil
	})
	return err
}

func (s *Service) jobObject() string { return "code/" + s.cfg.JobFile }

// SubmitTransformJob runs the submit_transform_job task and returns the job
// id. The job file is deployed with the agent and staged by
// upload_job_to_lake, so a missing local copy fails before submitting
func (s *Service) SubmitTransformJob(ctx context.Context, args crimes.JobArgs) (string, error) {
	if s.submit == nil {
		return "", perr.InvalidArgf("cluster transform requested but no cluster is configured")
	}
	if local := s.jobFilePath(); !lake.Exists(local) {
		return "", perr.WithField(perr.InvalidArgf("cluster transform needs the job file %s", local), "SPARK_JOB_FILE")
	}
	spec := dataproc.JobSpec{MainURI: s.bucket.URI(s.jobObject()), Args: args}
	return orch.Task(ctx, domain.TaskSubmitJob, orch.TaskOptions{}, nil, func(ctx context.Context) (string, error) {
		return s.submit.Submit(ctx, spec)
	})
}

// RunLocalTransform runs the run_local_transform task
func (s *Service) RunLocalTransform(ctx context.Context, args crimes.JobArgs) error {
	if s.local == nil {
		return perr.InvalidArgf("beam transform requested but no local transformer is configured")
	}
	_, err := orch.Task(ctx, domain.TaskLocalTransform, orch.TaskOptions{}, nil, func(ctx context.Context) (bool, error) {
		return true, s.local.Run(ctx, args)
	})
	return err
}
