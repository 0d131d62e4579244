package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrInvalidKey is returned for storage keys that escape the media root.
var ErrInvalidKey = errors.New("invalid media key")

// Store is a filesystem-backed blob store for detection frames and
// thumbnails, rooted under the data directory. Keys are date-partitioned
// relative paths, e.g.
// frames/<org>/<camera>/<yyyy>/<mm>/<dd>/<event>.jpg.
type Store struct {
	root string
}

// NewStore creates the media root if needed and returns the store.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return &Store{root: root}, nil
}

// FrameKey builds the storage key for an event's full frame.
func FrameKey(orgID, cameraID, eventID string, occurredAt time.Time) string {
	return frameKey(orgID, cameraID, eventID, occurredAt, ".jpg")
}

// ThumbKey builds the storage key for an event's thumbnail.
func ThumbKey(orgID, cameraID, eventID string, occurredAt time.Time) string {
	return frameKey(orgID, cameraID, eventID, occurredAt, "_thumb.jpg")
}

func frameKey(orgID, cameraID, eventID string, occurredAt time.Time, suffix string) string {
	t := occurredAt.UTC()
	return fmt.Sprintf("frames/%s/%s/%04d/%02d/%02d/%s%s",
		orgID, cameraID, t.Year(), int(t.Month()), t.Day(), eventID, suffix)
}

// resolve maps a key to an absolute path, rejecting traversal attempts.
func (s *Store) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.root, clean), nil
}

// Put writes a blob under the given key, creating parent directories.
func (s *Store) Put(key string, data []byte) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create media dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write media blob: %w", err)
	}
	return nil
}

// Path returns the absolute filesystem path for a key, for serving with
// http.ServeFile. The file may or may not exist.
func (s *Store) Path(key string) (string, error) {
	return s.resolve(key)
}

// Remove deletes a blob. Missing blobs are not an error, so retention
// sweeps are idempotent.
func (s *Store) Remove(key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove media blob: %w", err)
	}
	return nil
}

// DecodeDataURL splits a data:image/...;base64 payload into its content
// type and decoded bytes.
func DecodeDataURL(dataURL string) (string, []byte, error) {
	if !strings.HasPrefix(dataURL, "data:image/") {
		return "", nil, errors.New("not an image data url")
	}
	meta, b64, ok := strings.Cut(dataURL, ",")
	if !ok {
		return "", nil, errors.New("malformed data url")
	}
	contentType := strings.TrimPrefix(meta, "data:")
	contentType = strings.TrimSuffix(contentType, ";base64")

	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", nil, fmt.Errorf("decode data url: %w", err)
	}
	return contentType, data, nil
}
