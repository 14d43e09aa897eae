// Package service implements block storage and the gcp block helpers
package service

import (
	"context"
	"encoding/json"
	"os"

	"crimetrends/internal/modkit/repokit"
	"crimetrends/internal/platform/config"
	perr "crimetrends/internal/platform/errors"
	"crimetrends/internal/platform/logger"
	"crimetrends/internal/platform/net/http/bind"
	"crimetrends/internal/services/blocks/domain"
	"crimetrends/internal/services/blocks/repo"
)

// Service implements domain.StorePort and domain.GCPPort
type Service struct {
	DB     repokit.TxRunner
	Binder repokit.Binder[repo.Storage]
}

// New constructs the blocks service
func New(db repokit.TxRunner, binder repokit.Binder[repo.Storage]) *Service {
	if db == nil {
		panic("blocks.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("blocks.Service requires a non nil Repo binder")
	}
	return &Service{DB: db, Binder: binder}
}

// LoadEnvironment reads the variables block creation needs
func LoadEnvironment(cfg config.Conf) domain.Environment {
	return domain.Environment{
		CredentialsPath: cfg.MayString("GOOGLE_APPLICATION_CREDENTIALS", ""),
		CredsBlockName:  cfg.MayString("CREDS_BLOCK_NAME", ""),
		BucketName:      cfg.MayString("DATA_LAKE_BUCKET_NAME", ""),
		BucketBlockName: cfg.MayString("BUCKET_BLOCK_NAME", ""),
	}
}

// Save implements domain.StorePort
func (s *Service) Save(ctx context.Context, b domain.Block, overwrite bool) error {
	if err := bind.Get().Validator.Struct(b); err != nil {
		field, msg := bind.ValidationFieldAndMessage(err)
		return perr.WithField(perr.Newf(perr.ErrorCodeValidation, "%s", msg), field)
	}
	if !json.Valid(b.Data) {
		return perr.WithField(perr.JSONErrf("block %s data is not valid JSON", b.Name), "data")
	}
	return s.DB.Tx(ctx, func(q repokit.Queryer) error {
		r := s.Binder.Bind(q)
		_, exists, err := r.Get(ctx, b.Name, true)
		if err != nil {
			return perr.FromPostgres(err, "load block")
		}
		if exists && !overwrite {
			return perr.WithField(perr.Conflictf("block %q already exists", b.Name), "name")
		}
		if err := r.Upsert(ctx, b); err != nil {
			return perr.FromPostgres(err, "save block")
		}
		return nil
	})
}

// Load implements domain.StorePort
func (s *Service) Load(ctx context.Context, name string) (domain.Block, error) {
	var (
		b  domain.Block
		ok bool
	)
	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		b, ok, err = s.Binder.Bind(q).Get(ctx, name, false)
		return err
	})
	if err != nil {
		return domain.Block{}, perr.FromPostgres(err, "load block")
	}
	if !ok {
		return domain.Block{}, perr.WithField(perr.NotFoundf("block %q not found", name), "name")
	}
	return b, nil
}

// List implements domain.StorePort
func (s *Service) List(ctx context.Context) ([]domain.Block, error) {
	var out []domain.Block
	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		out, err = s.Binder.Bind(q).List(ctx)
		return err
	})
	if err != nil {
		return nil, perr.FromPostgres(err, "list blocks")
	}
	return out, nil
}

func (s *Service) loadTyped(ctx context.Context, name, typ string, into any) error {
	b, err := s.Load(ctx, name)
	if err != nil {
		return err
	}
	if b.Type != typ {
		return perr.InvalidArgf("block %q is a %s, want %s", name, b.Type, typ)
	}
	if err := json.Unmarshal(b.Data, into); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "decode block %q", name)
	}
	return nil
}

// CreateCredentialsBlock reads the service account key file and saves it
// under name, replacing any previous block
func (s *Service) CreateCredentialsBlock(ctx context.Context, keyFile, name string) error {
	raw, err := os.ReadFile(keyFile)
	if err != nil {
		return perr.WithField(perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "read key file %s", keyFile), "key_file")
	}
	if !json.Valid(raw) {
		return perr.WithField(perr.JSONErrf("key file %s is not valid JSON", keyFile), "key_file")
	}
	data, err := json.Marshal(domain.GCPCredentials{ServiceAccountInfo: raw})
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "encode credentials block")
	}
	if err := s.Save(ctx, domain.Block{Name: name, Type: domain.TypeGCPCredentials, Data: data}, true); err != nil {
		return err
	}
	logger.C(ctx).Info().Str("block", name).Msg("credentials block saved")
	return nil
}

// CreateBucketBlock saves a bucket block bound to the credentials block
// credsName, replacing any previous block
func (s *Service) CreateBucketBlock(ctx context.Context, credsName, bucket, name string) error {
	if bucket == "" {
		return perr.WithField(perr.InvalidArgf("bucket name is empty"), "bucket")
	}
	var creds domain.GCPCredentials
	if err := s.loadTyped(ctx, credsName, domain.TypeGCPCredentials, &creds); err != nil {
		return err
	}
	data, err := json.Marshal(domain.GCSBucket{Bucket: bucket, Credentials: credsName})
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "encode bucket block")
	}
	if err := s.Save(ctx, domain.Block{Name: name, Type: domain.TypeGCSBucket, Data: data}, true); err != nil {
		return err
	}
	logger.C(ctx).Info().Str("block", name).Str("bucket", bucket).Msg("bucket block saved")
	return nil
}

// Credentials implements domain.GCPPort
func (s *Service) Credentials(ctx context.Context, name string) ([]byte, error) {
	var creds domain.GCPCredentials
	if err := s.loadTyped(ctx, name, domain.TypeGCPCredentials, &creds); err != nil {
		return nil, err
	}
	return creds.ServiceAccountInfo, nil
}

// Bucket implements domain.GCPPort
func (s *Service) Bucket(ctx context.Context, name string) (domain.GCSBucket, []byte, error) {
	var b domain.GCSBucket
	if err := s.loadTyped(ctx, name, domain.TypeGCSBucket, &b); err != nil {
		return domain.GCSBucket{}, nil, err
	}
	creds, err := s.Credentials(ctx, b.Credentials)
	if err != nil {
		return domain.GCSBucket{}, nil, err
	}
	return b, creds, nil
}

// MakeGCPBlocks creates the credentials and bucket blocks named in env
func (s *Service) MakeGCPBlocks(ctx context.Context, env domain.Environment) error {
	if env.CredentialsPath == "" || env.CredsBlockName == "" || env.BucketName == "" || env.BucketBlockName == "" {
		return perr.InvalidArgf("GOOGLE_APPLICATION_CREDENTIALS, CREDS_BLOCK_NAME, DATA_LAKE_BUCKET_NAME and BUCKET_BLOCK_NAME are required")
	}
	if err := s.CreateCredentialsBlock(ctx, env.CredentialsPath, env.CredsBlockName); err != nil {
		return err
	}
	return s.CreateBucketBlock(ctx, env.CredsBlockName, env.BucketName, env.BucketBlockName)
}
