// Package storage holds uploaded files outside the database.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/templui/skillfolio/internal/config"
)

// Storage is the file store behind avatars and project images.
type Storage interface {
	// Save stores the content of r under key.
	Save(ctx context.Context, key string, r io.Reader) error

	// SaveFile moves a file already on local disk (an upload's temp file) to key.
	SaveFile(ctx context.Context, tempPath, key string) error

	Delete(ctx context.Context, key string) error

	// URL returns where clients can fetch key.
	URL(ctx context.Context, key string) string
}

// New picks the backend named by STORAGE_DRIVER.
func New(ctx context.Context, c *config.Config) (Storage, error) {
	switch c.StorageDriver {
	case "s3":
		slog.Info("initializing S3 storage", "bucket", c.S3Bucket, "region", c.S3Region, "endpoint", c.S3Endpoint)
		return NewS3Storage(ctx, S3Config{
			Region:        c.S3Region,
			Bucket:        c.S3Bucket,
			AccessKey:     c.S3AccessKey,
			SecretKey:     c.S3SecretKey,
			Endpoint:      c.S3Endpoint,
			PresignExpiry: c.S3PresignExpiry,
		})
	case "local", "":
		slog.Info("initializing local storage", "dir", c.UploadDir)
		return NewLocalStorage(c.UploadDir, "/uploads")
	}
	return nil, fmt.Errorf("unknown storage driver %q", c.StorageDriver)
}

// cleanKey rejects keys that would escape the store's root.
func cleanKey(key string) (string, error) {
	cleaned := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." || cleaned != strings.TrimPrefix(key, "/") {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return cleaned, nil
}

func saveFile(ctx context.Context, s Storage, tempPath, key string) error {
	f, err := os.Open(tempPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", tempPath, err)
	}
	defer func() { _ = f.Close() }()

	err = s.Save(ctx, key, f)
	if err != nil {
		return err
	}
	err = os.Remove(tempPath)
	if err != nil {
		slog.Warn("failed to remove temp file", "path", tempPath, "error", err)
	}
	return nil
}
