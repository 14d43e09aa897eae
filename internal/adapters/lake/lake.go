// Package lake stages files in the data lake bucket (GCS or an S3
// compatible store) and holds the local path rules shared by the flows
package lake

import (
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"crimetrends/internal/platform/config"
	perr "crimetrends/internal/platform/errors"
	"crimetrends/internal/platform/logger"
	"crimetrends/internal/platform/metrics"
)

// Bucket is the lake surface the flows use
type Bucket interface {
	// Upload copies the local file fromPath to the object toPath
	Upload(ctx context.Context, fromPath, toPath string) error
	// Download copies the object objectPath to the local file toPath
	Download(ctx context.Context, objectPath, toPath string) error
	// URI returns the scheme-qualified location of objectPath
	URI(objectPath string) string
	Close() error
}

// Backends
const (
	BackendGCS = "gcs"
	BackendS3  = "s3"
)

// DefaultUploadTimeout bounds a single upload
const DefaultUploadTimeout = 300 * time.Second

// Config selects and configures a lake backend
type Config struct {
	Backend       string
	Bucket        string
	UploadTimeout time.Duration

	// gcs; empty CredentialsJSON uses application default credentials
	CredentialsJSON []byte

	// s3
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
}

// FromConfig reads DATA_LAKE_BUCKET_NAME and LAKE_* from cfg
func FromConfig(cfg config.Conf) Config {
	lk := cfg.Prefix("LAKE_")
	s3 := lk.Prefix("S3_")
	return Config{
		Backend:       lk.MayEnum("BACKEND", BackendGCS, BackendGCS, BackendS3),
		Bucket:        cfg.MayString("DATA_LAKE_BUCKET_NAME", ""),
		UploadTimeout: lk.MayDuration("UPLOAD_TIMEOUT", DefaultUploadTimeout),
		Endpoint:      s3.MayString("ENDPOINT", ""),
		AccessKey:     s3.MayString("ACCESS_KEY", ""),
		SecretKey:     s3.MayString("SECRET_KEY", ""),
		UseSSL:        s3.MayBool("USE_SSL", false),
		Region:        s3.MayString("REGION", ""),
	}
}

// Open builds the configured backend wrapped with the upload timeout
func Open(ctx context.Context, cfg Config) (Bucket, error) {
	if cfg.Bucket == "" {
		return nil, perr.WithField(perr.InvalidArgf("lake bucket name is empty"), "bucket")
	}
	var (
		b   Bucket
		err error
	)
	switch cfg.Backend {
	case "", BackendGCS:
		b, err = OpenGCS(ctx, cfg.Bucket, cfg.CredentialsJSON)
	case BackendS3:
		b, err = OpenS3(ctx, cfg)
	default:
		return nil, perr.InvalidArgf("unknown lake backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return WithUploadTimeout(b, cfg.UploadTimeout), nil
}

type timeoutBucket struct {
	Bucket
	d time.Duration
}

// WithUploadTimeout bounds each Upload of b by d (DefaultUploadTimeout when d <= 0)
func WithUploadTimeout(b Bucket, d time.Duration) Bucket {
	if d <= 0 {
		d = DefaultUploadTimeout
	}
	return timeoutBucket{Bucket: b, d: d}
}

func (t timeoutBucket) Upload(ctx context.Context, fromPath, toPath string) error {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	err := t.Bucket.Upload(ctx, fromPath, toPath)
	if err != nil {
		metrics.LakeUploads.WithLabelValues("failed").Inc()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return perr.Wrapf(err, perr.ErrorCodeTimeout, "upload %s exceeded %s", fromPath, t.d)
		}
		return err
	}
	metrics.LakeUploads.WithLabelValues("uploaded").Inc()
	return nil
}

// DestinationPath inserts "raw" after the first component of a local
// path: data/city/file.csv becomes data/raw/city/file.csv, file.csv
// becomes raw/file.csv and the empty path becomes raw/
func DestinationPath(p string) string {
	p = filepath.ToSlash(p)
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if p == "" {
		return "raw/"
	}
	first, rest, ok := strings.Cut(p, "/")
	if !ok {
		return path.Join("raw", first)
	}
	return path.Join(first, "raw", rest)
}

// StagingPath returns the object path of a file downloaded under dataDir.
// The path relative to dataDir is staged below data/raw, so
// /var/dl/aus/a.csv under /var/dl becomes data/raw/aus/a.csv. Paths outside
// dataDir fall back to DestinationPath
func StagingPath(dataDir, p string) string {
	rel, err := filepath.Rel(dataDir, p)
	if dataDir == "" || err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return DestinationPath(p)
	}
	return DestinationPath(path.Join("data", filepath.ToSlash(rel)))
}

// Exists reports whether p names an existing local file
func Exists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}

// RemoveFile deletes the local file p, logging either outcome
func RemoveFile(ctx context.Context, p string) error {
	log := logger.C(ctx)
	if !Exists(p) {
		log.Info().Str("path", p).Msgf("The file '%s' does not exist.", p)
		return nil
	}
	if err := os.Remove(p); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "remove %s", p)
	}
	log.Info().Str("path", p).Msgf("The file %s was removed.", p)
	return nil
}
