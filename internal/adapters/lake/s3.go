package lake

import (
	"context"

	perr "crimetrends/internal/platform/errors"
	"crimetrends/internal/platform/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3 is a Bucket on an S3 compatible store
type S3 struct {
	client *minio.Client
	bucket string
}

// OpenS3 connects to cfg.Endpoint and creates the bucket when missing
func OpenS3(ctx context.Context, cfg Config) (*S3, error) {
	if cfg.Endpoint == "" {
		return nil, perr.WithField(perr.InvalidArgf("s3 endpoint is empty"), "endpoint")
	}
	c, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, perr.FromRemote(err, "s3 client")
	}
	exists, err := c.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, perr.FromRemote(err, "s3 bucket exists")
	}
	if !exists {
		if err := c.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, perr.FromRemote(err, "s3 make bucket")
		}
		logger.C(ctx).Info().Str("bucket", cfg.Bucket).Msg("created lake bucket")
	}
	return &S3{client: c, bucket: cfg.Bucket}, nil
}

// Upload puts fromPath at s3://bucket/toPath
func (s *S3) Upload(ctx context.Context, fromPath, toPath string) error {
	if !Exists(fromPath) {
		return perr.NotFoundf("open %s: no such file", fromPath)
	}
	_, err := s.client.FPutObject(ctx, s.bucket, toPath, fromPath, minio.PutObjectOptions{ContentType: contentType(fromPath)})
	if err != nil {
		return perr.FromRemote(err, "s3 upload "+toPath)
	}
	return nil
}

// Download copies s3://bucket/objectPath into toPath
func (s *S3) Download(ctx context.Context, objectPath, toPath string) error {
	obj, err := s.client.GetObject(ctx, s.bucket, objectPath, minio.GetObjectOptions{})
	if err != nil {
		return perr.FromRemote(err, "s3 download "+objectPath)
	}
	defer func() { _ = obj.Close() }()
	if _, err := obj.Stat(); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return perr.NotFoundf("s3://%s/%s does not exist", s.bucket, objectPath)
		}
		return perr.FromRemote(err, "s3 stat "+objectPath)
	}
	return copyToFile(obj, toPath)
}

// URI returns s3://bucket/objectPath
func (s *S3) URI(objectPath string) string { return "s3://" + s.bucket + "/" + objectPath }

// Close is a no-op; the minio client holds no closable resources
func (s *S3) Close() error { return nil }
