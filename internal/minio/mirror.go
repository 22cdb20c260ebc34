package minio

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config holds the connection settings of the mirror bucket
type Config struct {
	Endpoint  string `env:"ENDPOINT"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET" envDefault:"doc-utils"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
}

// Enabled reports whether a mirror endpoint is configured
func (c Config) Enabled() bool {
	return c.Endpoint != ""
}

// Mirror copies produced files to a MinIO/S3 bucket
type Mirror struct {
	client *minio.Client
	bucket string
}

// New initializes the client and ensures the bucket exists
func New(ctx context.Context, cfg Config) (*Mirror, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client init error: %w", err)
	}

	m := &Mirror{client: client, bucket: cfg.Bucket}
	if err := m.ensureBucket(ctx); err != nil {
		return nil, err
	}

	slog.Info("MinIO mirror initialized", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket)
	return m, nil
}

func (m *Mirror) ensureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("error checking bucket: %w", err)
	}
	if exists {
		return nil
	}

	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("error creating bucket: %w", err)
	}
	slog.Info("Created bucket", "bucket", m.bucket)
	return nil
}

// Put uploads the file at path as object name
func (m *Mirror) Put(ctx context.Context, name, path, contentType string) error {
	info, err := m.client.FPutObject(ctx, m.bucket, name, path, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("upload object error: %w", err)
	}
	slog.Debug("Mirrored object", "bucket", m.bucket, "name", name, "size", info.Size)
	return nil
}

// Remove deletes object name
func (m *Mirror) Remove(ctx context.Context, name string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object error: %w", err)
	}
	return nil
}
