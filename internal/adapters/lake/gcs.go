package lake

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	perr "crimetrends/internal/platform/errors"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCS is a Bucket on Google Cloud Storage
type GCS struct {
	client *storage.Client
	bucket string
}

// OpenGCS creates a storage client from a service account JSON document,
// or from application default credentials when credsJSON is empty
func OpenGCS(ctx context.Context, bucket string, credsJSON []byte) (*GCS, error) {
	var opts []option.ClientOption
	if len(credsJSON) > 0 {
		opts = append(opts, option.WithCredentialsJSON(credsJSON))
	}
	c, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, perr.FromRemote(err, "gcs client")
	}
	return &GCS{client: c, bucket: bucket}, nil
}

// Upload streams fromPath into gs://bucket/toPath
func (g *GCS) Upload(ctx context.Context, fromPath, toPath string) error {
	f, err := os.Open(fromPath)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeNotFound, "open %s", fromPath)
	}
	defer func() { _ = f.Close() }()

	w := g.client.Bucket(g.bucket).Object(toPath).NewWriter(ctx)
	w.ContentType = contentType(fromPath)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return perr.FromRemote(err, "gcs upload "+toPath)
	}
	if err := w.Close(); err != nil {
		return perr.FromRemote(err, "gcs upload "+toPath)
	}
	return nil
}

// Download copies gs://bucket/objectPath into toPath
func (g *GCS) Download(ctx context.Context, objectPath, toPath string) error {
	r, err := g.client.Bucket(g.bucket).Object(objectPath).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return perr.NotFoundf("gs://%s/%s does not exist", g.bucket, objectPath)
	}
	if err != nil {
		return perr.FromRemote(err, "gcs download "+objectPath)
	}
	defer func() { _ = r.Close() }()
	return copyToFile(r, toPath)
}

// URI returns gs://bucket/objectPath
func (g *GCS) URI(objectPath string) string { return "gs://" + g.bucket + "/" + objectPath }

// Close releases the client
func (g *GCS) Close() error {
	if g == nil || g.client == nil {
		return nil
	}
	return g.client.Close()
}

func contentType(p string) string {
	switch filepath.Ext(p) {
	case ".csv":
		return "text/csv"
	case ".py":
		return "text/x-python"
	case ".parquet":
		return "application/vnd.apache.parquet"
	}
	return "application/octet-stream"
}

func copyToFile(r io.Reader, toPath string) error {
	if err := os.MkdirAll(filepath.Dir(toPath), 0o755); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "create %s", filepath.Dir(toPath))
	}
	tmp := toPath + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "create %s", tmp)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return perr.FromRemote(err, "download to "+toPath)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "close %s", tmp)
	}
	return os.Rename(tmp, toPath)
}
