// Package blob stores player images. Uploads are sniffed for a real
// image type before they are accepted; the stored name is a fresh UUID
// so callers cannot pick paths.
package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var ErrUnsupportedType = errors.New("unsupported image type")

// Store persists an image and returns a URL path it can be served from.
type Store interface {
	Put(ctx context.Context, data []byte) (string, error)
}

var allowedExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// DiskStore writes images under dir and returns URLs under urlPrefix.
type DiskStore struct {
	dir       string
	urlPrefix string
}

func NewDiskStore(dir, urlPrefix string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image dir: %w", err)
	}
	return &DiskStore{dir: dir, urlPrefix: urlPrefix}, nil
}

// Dir returns the directory images are written to, for static serving.
func (s *DiskStore) Dir() string {
	return s.dir
}

func (s *DiskStore) Put(ctx context.Context, data []byte) (string, error) {
	mtype := mimetype.Detect(data)
	ext, ok := allowedExtensions[mtype.String()]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mtype.String())
	}

	name := uuid.New().String() + ext
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}

	log.Debug().Str("path", path).Str("mime_type", mtype.String()).Msg("stored image")
	return s.urlPrefix + "/" + name, nil
}
