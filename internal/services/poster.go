package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/eventhub/apiserver/internal/storage"
	"github.com/google/uuid"
)

const maxPosterBytes = 5 << 20

// ErrStorageUnavailable is returned when poster uploads are attempted
// without a configured object storage backend.
var ErrStorageUnavailable = errors.New("poster storage is not configured")

// posterExtensions maps accepted poster content types, as detected from
// the file bytes, to the object key extension.
var posterExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// PosterService validates and stores event poster images in object storage.
type PosterService struct {
	storage *storage.Storage
}

func NewPosterService(storage *storage.Storage) *PosterService {
	return &PosterService{storage: storage}
}

// Enabled reports whether an object storage backend is configured.
func (s *PosterService) Enabled() bool {
	return s.storage != nil
}

// Upload validates the poster bytes and stores them under a fresh object
// key, which it returns. The content type is sniffed from the bytes, not
// taken from the upload headers.
func (s *PosterService) Upload(ctx context.Context, data []byte) (string, error) {
	if s.storage == nil {
		return "", ErrStorageUnavailable
	}
	if len(data) == 0 {
		return "", errors.New("empty poster file")
	}
	if len(data) > maxPosterBytes {
		return "", fmt.Errorf("poster exceeds %d bytes", maxPosterBytes)
	}

	contentType := http.DetectContentType(data)
	ext, ok := posterExtensions[contentType]
	if !ok {
		return "", fmt.Errorf("unsupported poster content type %q", contentType)
	}

	key := fmt.Sprintf("posters/%s%s", uuid.NewString(), ext)
	if err := s.storage.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", err
	}
	return key, nil
}

// Open returns a reader for a stored poster. The caller closes it.
func (s *PosterService) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if s.storage == nil {
		return nil, ErrStorageUnavailable
	}
	if key == "" {
		return nil, errors.New("missing poster key")
	}
	return s.storage.Get(ctx, key)
}

// Delete removes a previously uploaded poster. Missing keys and a missing
// backend are ignored; poster cleanup is best effort.
func (s *PosterService) Delete(ctx context.Context, key string) error {
	if s.storage == nil || key == "" {
		return nil
	}
	return s.storage.Delete(ctx, key)
}
