package storage

import (
	"context"
	"io"
	"os"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// gcsBackend transfers objects with the Cloud Storage client.
type gcsBackend struct {
	client *gcs.Client
}

func newGCSBackend(ctx context.Context, cfg Config) (Backend, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &gcsBackend{client: client}, nil
}

func (b *gcsBackend) Download(ctx context.Context, bucket, key string, dst *os.File) error {
	r, err := b.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	_, err = io.Copy(dst, r)
	return err
}

func (b *gcsBackend) Upload(ctx context.Context, bucket, key string, src io.Reader) error {
	w := b.client.Bucket(bucket).Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, src); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (b *gcsBackend) Close() error {
	return b.client.Close()
}
