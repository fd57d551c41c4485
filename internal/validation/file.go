package validation

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/templui/skillfolio/internal/model"
)

// FileConstraints defines validation rules for file uploads
type FileConstraints struct {
	AllowedMimeTypes  map[string]bool
	AllowedExtensions map[string]bool
	MaxSize           int64
}

// ImageConstraints apply to avatars and project images.
var ImageConstraints = FileConstraints{
	AllowedMimeTypes: map[string]bool{
		"image/jpeg": true,
		"image/png":  true,
		"image/webp": true,
		"image/gif":  true,
	},
	AllowedExtensions: map[string]bool{
		".jpg":  true,
		".jpeg": true,
		".png":  true,
		".webp": true,
		".gif":  true,
	},
	MaxSize: 5 << 20,
}

// ValidateUpload checks an uploaded file's size, sniffed content type and
// extension. The file is rewound before returning.
func ValidateUpload(header *multipart.FileHeader, constraints FileConstraints) error {
	file, err := header.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer func() { _ = file.Close() }()
	return ValidateContent(file, header.Filename, header.Size, constraints)
}

// ValidateContent applies constraints to r, judging the type by its first 512
// bytes rather than by anything the client claimed.
func ValidateContent(r io.Reader, filename string, size int64, constraints FileConstraints) error {
	if size > constraints.MaxSize {
		return model.Invalid("file", fmt.Sprintf("file too large: maximum size is %d MB", constraints.MaxSize/(1<<20)))
	}

	buffer := make([]byte, 512)
	n, err := io.ReadFull(r, buffer)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return fmt.Errorf("read upload: %w", err)
	}
	if seeker, ok := r.(io.Seeker); ok {
		_, err = seeker.Seek(0, io.SeekStart)
		if err != nil {
			return fmt.Errorf("rewind upload: %w", err)
		}
	}

	detected := http.DetectContentType(buffer[:n])
	if !constraints.AllowedMimeTypes[detected] {
		return model.Invalid("file", fmt.Sprintf("invalid file type (detected: %s)", detected))
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !constraints.AllowedExtensions[ext] {
		return model.Invalid("file", fmt.Sprintf("invalid file extension: %q", ext))
	}
	return nil
}
