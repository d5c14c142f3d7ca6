// Package blob stores uploaded receipt images on local disk or in Google Cloud Storage.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"

	"paisable/internal/ports"
)

var (
	_ ports.BlobStore = (*LocalStore)(nil)
	_ ports.BlobStore = (*GCSStore)(nil)
)

// LocalStore writes files below a root directory and returns /uploads/ URLs.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) Put(_ context.Context, name, _ string, data []byte) (string, error) {
	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return "/uploads/" + clean, nil
}

// Root is the directory served under /uploads/.
func (s *LocalStore) Root() string { return s.root }

// GCSStore writes objects to a bucket and returns gs:// URIs.
type GCSStore struct {
	client *storage.Client
	bucket string
}

func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("missing RECEIPT_GCS_BUCKET")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

func (s *GCSStore) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}
	wc := s.client.Bucket(s.bucket).Object(clean).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := io.Copy(wc, bytes.NewReader(data)); err != nil {
		wc.Close()
		return "", fmt.Errorf("write to GCS: %w", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("close GCS writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, clean), nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

// cleanName rejects names that would escape the store root.
func cleanName(name string) (string, error) {
	clean := filepath.ToSlash(filepath.Clean("/" + name))
	clean = strings.TrimPrefix(clean, "/")
	if clean == "" || clean == "." {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	return clean, nil
}
