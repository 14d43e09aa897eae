package module

import (
	"time"

	"crimetrends/internal/platform/config"
	"crimetrends/internal/services/ingest/domain"
)

// Options controls the ingest tasks
type Options struct {
	DataDir         string
	DownloadTimeout time.Duration
	Retries         int
	RetryDelay      time.Duration
	RetryJitter     float64
	CacheExpiration time.Duration
	JobFile         string
	JobFileDir      string
	Transform       string
	TempBucket      string
	Dataset         string
	BucketBlock     string
}

// FromConfig reads CORE_INGEST_ plus the shared lake and warehouse names
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("CORE_INGEST_")
	return Options{
		DataDir:         c.MayString("DOWNLOAD_DIR", "data"),
		DownloadTimeout: c.MayDuration("DOWNLOAD_TIMEOUT", 0),
		Retries:         c.MayInt("RETRIES", 3),
		RetryDelay:      c.MayDuration("RETRY_DELAY", 60*time.Second),
		RetryJitter:     c.MayFloat64("RETRY_JITTER", 0),
		CacheExpiration: c.MayDuration("CACHE_EXPIRATION", 24*time.Hour),
		JobFile:         cfg.MayString("SPARK_JOB_FILE", "spark_job.py"),
		JobFileDir:      cfg.MayString("JOB_FILE_DIR", "flows"),
		Transform: c.MayEnum("TRANSFORM", domain.TransformBeam,
			domain.TransformCluster, domain.TransformBeam, domain.TransformNone),
		TempBucket:  cfg.MayString("TEMP_GCS_BUCKET", ""),
		Dataset:     cfg.MayString("BQ_DATASET", ""),
		BucketBlock: cfg.MayString("BUCKET_BLOCK_NAME", ""),
	}
}
