package module

import (
	"context"
	"testing"
	"time"

	"crimetrends/internal/adapters/lake"
	"crimetrends/internal/platform/config"
	perr "crimetrends/internal/platform/errors"
	bdomain "crimetrends/internal/services/blocks/domain"
	"crimetrends/internal/services/ingest/domain"
)

type fakeGCP struct {
	bdomain.GCPPort
	buckets map[string]bdomain.GCSBucket
}

func (f fakeGCP) Bucket(_ context.Context, name string) (bdomain.GCSBucket, []byte, error) {
	b, ok := f.buckets[name]
	if !ok {
		return bdomain.GCSBucket{}, nil, perr.NotFoundf("block %q not found", name)
	}
	return b, []byte(`{"type":"service_account"}`), nil
}

func TestFromConfig(t *testing.T) {
	o := FromConfig(config.New())
	if o.DataDir != "data" || o.Retries != 3 || o.RetryDelay != time.Minute || o.CacheExpiration != 24*time.Hour {
		t.Fatalf("defaults = %+v", o)
	}
	if o.JobFile != "spark_job.py" || o.JobFileDir != "flows" || o.Transform != domain.TransformBeam {
		t.Fatalf("job defaults = %+v", o)
	}

	t.Setenv("CORE_INGEST_RETRIES", "5")
	t.Setenv("CORE_INGEST_TRANSFORM", "cluster")
	t.Setenv("CORE_INGEST_DOWNLOAD_DIR", "/var/data")
	t.Setenv("SPARK_JOB_FILE", "crimes_job.py")
	o = FromConfig(config.New())
	if o.Retries != 5 || o.Transform != domain.TransformCluster || o.DataDir != "/var/data" || o.JobFile != "crimes_job.py" {
		t.Fatalf("env = %+v", o)
	}
}

func TestLakeConfig_FromBlock(t *testing.T) {
	t.Setenv("DATA_LAKE_BUCKET_NAME", "env_bucket")
	t.Setenv("BUCKET_BLOCK_NAME", "crime-lake")
	gcp := fakeGCP{buckets: map[string]bdomain.GCSBucket{
		"crime-lake": {Bucket: "crime_trends_explorer_data_lake", Credentials: "crime-creds"},
	}}
	lc, err := LakeConfig(context.Background(), config.New(), gcp)
	if err != nil {
		t.Fatalf("LakeConfig: %v", err)
	}
	if lc.Bucket != "crime_trends_explorer_data_lake" || len(lc.CredentialsJSON) == 0 {
		t.Fatalf("lake config = %+v", lc)
	}

	t.Setenv("BUCKET_BLOCK_NAME", "missing")
	if _, err := LakeConfig(context.Background(), config.New(), gcp); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("missing block err = %v", err)
	}
}

func TestLakeConfig_EnvOnly(t *testing.T) {
	t.Setenv("DATA_LAKE_BUCKET_NAME", "env_bucket")
	t.Setenv("LAKE_BACKEND", "s3")
	t.Setenv("BUCKET_BLOCK_NAME", "crime-lake")
	lc, err := LakeConfig(context.Background(), config.New(), fakeGCP{})
	if err != nil || lc.Bucket != "env_bucket" || lc.Backend != lake.BackendS3 {
		t.Fatalf("LakeConfig = %+v, %v", lc, err)
	}
}

func TestOpenSubmitter_NoCluster(t *testing.T) {
	s, err := OpenSubmitter(context.Background(), config.New(), nil)
	if err != nil || s != nil {
		t.Fatalf("OpenSubmitter = %v, %v", s, err)
	}
}
