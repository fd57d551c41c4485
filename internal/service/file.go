package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/templui/skillfolio/internal/storage"
	"github.com/templui/skillfolio/internal/validation"
)

// Upload is an image received from a client.
type Upload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

type FileService struct {
	storage storage.Storage
}

func NewFileService(storage storage.Storage) *FileService {
	return &FileService{storage: storage}
}

// SaveImage validates an image upload and stores it under folder with a
// random name. It returns the storage key.
func (s *FileService) SaveImage(ctx context.Context, folder string, upload Upload) (string, error) {
	err := validation.ValidateContent(upload.Content, upload.Filename, upload.Size, validation.ImageConstraints)
	if err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(upload.Filename))
	key := path.Join(folder, uuid.New().String()+ext)

	err = s.storage.Save(ctx, key, upload.Content)
	if err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return key, nil
}

// Delete removes a stored file. Failures are logged, not returned.
func (s *FileService) Delete(ctx context.Context, key string) {
	if key == "" {
		return
	}
	err := s.storage.Delete(ctx, key)
	if err != nil {
		slog.Error("failed to delete file from storage", "error", err, "key", key)
	}
}

func (s *FileService) URL(ctx context.Context, key string) string {
	if key == "" {
		return ""
	}
	return s.storage.URL(ctx, key)
}
