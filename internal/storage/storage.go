package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal"
)

const (
	// TypeLocal stores files under a directory on the local filesystem.
	TypeLocal = "local"
	// TypeS3 stores files in Amazon S3 or a compatible backend.
	TypeS3 = "s3"
)

var ErrNotFound = errors.New("storage: object not found")

// Storage persists binary objects under slash separated keys.
type Storage interface {
	Save(ctx context.Context, key string, body io.Reader, size int64) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// NewStorage instantiates the backend selected by cfg.Type.
func NewStorage(cfg internal.StorageConfig) (Storage, error) {
	typeName := strings.ToLower(strings.TrimSpace(cfg.Type))
	switch typeName {
	case "", TypeLocal:
		return NewLocalStorage(cfg.LocalDir)
	case TypeS3:
		return NewS3Storage(cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// DocumentKey is the key of a vehicle document:
// documents/{registration number}/{kind}{ext}.
func DocumentKey(registrationNumber, kind, ext string) string {
	reg := sanitizePathSegment(registrationNumber)
	if reg == "" {
		reg = "unregistered"
	}
	return path.Join("documents", reg, sanitizePathSegment(kind)+strings.ToLower(ext))
}

// IsKeySegment reports whether value survives DocumentKey unchanged, so two
// distinct values never share a document directory.
func IsKeySegment(value string) bool {
	return value != "" && sanitizePathSegment(value) == value
}

// ContentType guesses the media type from a key's extension.
func ContentType(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	}
	return "application/octet-stream"
}

func sanitizePathSegment(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	builder := strings.Builder{}
	builder.Grow(len(value))
	for i := 0; i < len(value); i++ {
		ch := value[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
			builder.WriteByte(ch)
		case ch == '-', ch == '_':
			builder.WriteByte(ch)
		}
	}
	return builder.String()
}

func cleanKey(key string) (string, error) {
	key = strings.TrimPrefix(path.Clean("/"+strings.TrimSpace(key)), "/")
	if key == "" || key == "." {
		return "", errors.New("storage: empty key")
	}
	return key, nil
}

func joinPrefix(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

func trimPrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}
