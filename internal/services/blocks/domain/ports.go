package domain

import "context"

// StorePort reads and writes blocks
type StorePort interface {
	// Save writes b; an existing name is a conflict unless overwrite is set
	Save(ctx context.Context, b Block, overwrite bool) error
	Load(ctx context.Context, name string) (Block, error)
	List(ctx context.Context) ([]Block, error)
}

// GCPPort resolves the gcp blocks the flows use
type GCPPort interface {
	CreateCredentialsBlock(ctx context.Context, keyFile, name string) error
	CreateBucketBlock(ctx context.Context, credsName, bucket, name string) error
	// Credentials returns the service account JSON kept under name
	Credentials(ctx context.Context, name string) ([]byte, error)
	// Bucket returns the bucket block and its credentials JSON
	Bucket(ctx context.Context, name string) (GCSBucket, []byte, error)
}
