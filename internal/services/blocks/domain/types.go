// Package domain defines blocks: named, typed configuration documents kept
// in postgres
package domain

import (
	"encoding/json"
	"time"
)

// Block types
const (
	TypeGCPCredentials = "gcp-credentials"
	TypeGCSBucket      = "gcs-bucket"
)

// Block is one stored document
type Block struct {
	Name      string          `json:"name" validate:"required,max=128"`
	Type      string          `json:"type" validate:"required,oneof=gcp-credentials gcs-bucket"`
	Data      json.RawMessage `json:"data" validate:"required"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// GCPCredentials holds a service account key file
type GCPCredentials struct {
	ServiceAccountInfo json.RawMessage `json:"service_account_info"`
}

// GCSBucket names a bucket and the credentials block used to reach it
type GCSBucket struct {
	Bucket      string `json:"bucket"`
	Credentials string `json:"gcp_credentials"`
}

// Environment is the set of variables block creation reads
type Environment struct {
	CredentialsPath string
	CredsBlockName  string
	BucketName      string
	BucketBlockName string
}
