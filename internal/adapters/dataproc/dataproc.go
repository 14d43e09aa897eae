// Package dataproc submits the transform job to a Dataproc cluster
package dataproc

import (
	"context"
	"fmt"

	"crimetrends/internal/core/crimes"
	"crimetrends/internal/platform/config"
	perr "crimetrends/internal/platform/errors"
	"crimetrends/internal/platform/logger"

	dataproc "cloud.google.com/go/dataproc/v2/apiv1"
	"cloud.google.com/go/dataproc/v2/apiv1/dataprocpb"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

// Config locates the cluster
type Config struct {
	ProjectID   string
	Region      string
	ClusterName string
	// JobFile is the job file name under code/ in the lake bucket
	JobFile string
	JarURIs []string
}

// FromConfig reads PROJECT_ID, REGION, DATAPROC_CLUSTER_NAME, SPARK_JOB_FILE
// and TRANSFORM_JAR_URIS
func FromConfig(cfg config.Conf) Config {
	return Config{
		ProjectID:   cfg.MayString("PROJECT_ID", ""),
		Region:      cfg.MayString("REGION", ""),
		ClusterName: cfg.MayString("DATAPROC_CLUSTER_NAME", ""),
		JobFile:     cfg.MayString("SPARK_JOB_FILE", "spark_job.py"),
		JarURIs:     cfg.MayCSV("TRANSFORM_JAR_URIS", []string{"gs://spark-lib/bigquery/spark-bigquery-latest_2.12.jar"}),
	}
}

// Endpoint returns the regional API endpoint
func (c Config) Endpoint() string { return fmt.Sprintf("%s-dataproc.googleapis.com:443", c.Region) }

// JobSpec is one submission
type JobSpec struct {
	// MainURI is the job file in the lake, gs://bucket/code/{JobFile}
	MainURI string
	Args    crimes.JobArgs
}

// submitFunc submits req and blocks until the job operation resolves
type submitFunc func(ctx context.Context, req *dataprocpb.SubmitJobRequest) (*dataprocpb.Job, error)

// Submitter submits PySpark jobs
type Submitter struct {
	cfg    Config
	submit submitFunc
	close  func() error
	newID  func() string
}

// New dials the job controller with the service account JSON in credsJSON;
// empty credsJSON uses application default credentials
func New(ctx context.Context, cfg Config, credsJSON []byte) (*Submitter, error) {
	if cfg.ProjectID == "" || cfg.Region == "" || cfg.ClusterName == "" {
		return nil, perr.InvalidArgf("dataproc needs PROJECT_ID, REGION and DATAPROC_CLUSTER_NAME")
	}
	opts := []option.ClientOption{option.WithEndpoint(cfg.Endpoint())}
	if len(credsJSON) > 0 {
		opts = append(opts, option.WithCredentialsJSON(credsJSON))
	}
	c, err := dataproc.NewJobControllerClient(ctx, opts...)
	if err != nil {
		return nil, perr.FromRemote(err, "dataproc client")
	}
	submit := func(ctx context.Context, req *dataprocpb.SubmitJobRequest) (*dataprocpb.Job, error) {
		op, err := c.SubmitJobAsOperation(ctx, req)
		if err != nil {
			return nil, err
		}
		return op.Wait(ctx)
	}
	return &Submitter{cfg: cfg, submit: submit, close: c.Close, newID: uuid.NewString}, nil
}

// BuildRequest returns the submission for spec under job id id
func (s *Submitter) BuildRequest(spec JobSpec, id string) *dataprocpb.SubmitJobRequest {
	return &dataprocpb.SubmitJobRequest{
		ProjectId: s.cfg.ProjectID,
		Region:    s.cfg.Region,
		Job: &dataprocpb.Job{
			Placement: &dataprocpb.JobPlacement{ClusterName: s.cfg.ClusterName},
			Reference: &dataprocpb.JobReference{ProjectId: s.cfg.ProjectID, JobId: id},
			TypeJob: &dataprocpb.Job_PysparkJob{
				PysparkJob: &dataprocpb.PySparkJob{
					MainPythonFileUri: spec.MainURI,
					Args:              spec.Args.Flags(),
					JarFileUris:       s.cfg.JarURIs,
				},
			},
		},
		RequestId: id,
	}
}

// Submit sends spec, waits for the job to finish and returns its id
func (s *Submitter) Submit(ctx context.Context, spec JobSpec) (string, error) {
	id := s.newID()
	log := logger.C(ctx).With().Str("job_id", id).Str("cluster", s.cfg.ClusterName).Logger()
	log.Info().Str("main", spec.MainURI).Msg("submitting transform job")

	job, err := s.submit(ctx, s.BuildRequest(spec, id))
	if err != nil {
		log.Error().Err(err).Msg("transform job failed")
		return "", perr.FromRemote(err, "dataproc submit")
	}
	jobID := id
	if ref := job.GetReference(); ref != nil && ref.GetJobId() != "" {
		jobID = ref.GetJobId()
	}
	log.Info().Str("state", job.GetStatus().GetState().String()).Msgf("Job %s finished", jobID)
	return jobID, nil
}

// Close releases the client
func (s *Submitter) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}
