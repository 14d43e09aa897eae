package dataproc

import (
	"context"
	"errors"
	"strings"
	"testing"

	"crimetrends/internal/core/crimes"
	"crimetrends/internal/platform/config"
	perr "crimetrends/internal/platform/errors"

	"cloud.google.com/go/dataproc/v2/apiv1/dataprocpb"
)

func testSubmitter(fn submitFunc) *Submitter {
	return &Submitter{
		cfg: Config{
			ProjectID:   "test_project",
			Region:      "test_region",
			ClusterName: "test_cluster",
			JobFile:     "spark_job.py",
			JarURIs:     []string{"gs://spark-lib/bigquery/spark-bigquery.jar"},
		},
		submit: fn,
		newID:  func() string { return "test_uuid" },
	}
}

func spec() JobSpec {
	return JobSpec{
		MainURI: "gs://test_bucket/code/spark_job.py",
		Args:    crimes.DefaultJobArgs(func(p string) string { return "gs://test_bucket/" + p }, "temp_gcs_bucket", "crimes"),
	}
}

func TestSubmit_ReturnsReferenceJobID(t *testing.T) {
	var got *dataprocpb.SubmitJobRequest
	s := testSubmitter(func(_ context.Context, req *dataprocpb.SubmitJobRequest) (*dataprocpb.Job, error) {
		got = req
		return &dataprocpb.Job{
			Reference: &dataprocpb.JobReference{JobId: req.GetJob().GetReference().GetJobId()},
			Status:    &dataprocpb.JobStatus{State: dataprocpb.JobStatus_DONE},
		}, nil
	})

	id, err := s.Submit(context.Background(), spec())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id != "test_uuid" {
		t.Fatalf("job id = %q", id)
	}
	if got == nil {
		t.Fatalf("submit not called")
	}
	job := got.GetJob()
	if got.GetProjectId() != "test_project" || got.GetRegion() != "test_region" {
		t.Fatalf("project/region = %s/%s", got.GetProjectId(), got.GetRegion())
	}
	if job.GetPlacement().GetClusterName() != "test_cluster" {
		t.Fatalf("cluster = %q", job.GetPlacement().GetClusterName())
	}
	py := job.GetPysparkJob()
	if py.GetMainPythonFileUri() != "gs://test_bucket/code/spark_job.py" {
		t.Fatalf("main = %q", py.GetMainPythonFileUri())
	}
	if len(py.GetArgs()) != 10 || py.GetArgs()[0] != "--temp_gcs_bucket=temp_gcs_bucket" {
		t.Fatalf("args = %v", py.GetArgs())
	}
	if !strings.HasPrefix(py.GetArgs()[1], "--input_path_aus=gs://test_bucket/") {
		t.Fatalf("args[1] = %q", py.GetArgs()[1])
	}
	if len(py.GetJarFileUris()) != 1 {
		t.Fatalf("jars = %v", py.GetJarFileUris())
	}
}

func TestSubmit_PropagatesErrors(t *testing.T) {
	calls := 0
	s := testSubmitter(func(context.Context, *dataprocpb.SubmitJobRequest) (*dataprocpb.Job, error) {
		calls++
		return nil, errors.New("Test Exception")
	})
	_, err := s.Submit(context.Background(), spec())
	if err == nil || !strings.Contains(err.Error(), "Test Exception") {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if _, ok := perr.As(err); !ok {
		t.Fatalf("error should be wrapped")
	}
}

func TestNew_RequiresCluster(t *testing.T) {
	if _, err := New(context.Background(), Config{ProjectID: "p"}, nil); err == nil {
		t.Fatalf("want error")
	}
}

func TestFromConfig(t *testing.T) {
	t.Setenv("PROJECT_ID", "crime-trends")
	t.Setenv("REGION", "us-central1")
	t.Setenv("DATAPROC_CLUSTER_NAME", "crime-cluster")
	t.Setenv("SPARK_JOB_FILE", "spark_job.py")
	c := FromConfig(config.New())
	if c.Endpoint() != "us-central1-dataproc.googleapis.com:443" || c.ClusterName != "crime-cluster" {
		t.Fatalf("config: %+v", c)
	}
	if len(c.JarURIs) != 1 {
		t.Fatalf("default jars = %v", c.JarURIs)
	}
	var nilS *Submitter
	if err := nilS.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}
}
