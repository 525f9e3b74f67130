package snapshot

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/rs/xid"
)

var (
	// ErrNotFound is returned when a snapshot doesn't exist.
	ErrNotFound = errors.New("snapshot: not found")

	// ErrInvalidKey is returned for empty keys and keys that leave the
	// store's root.
	ErrInvalidKey = errors.New("snapshot: invalid key")
)

// Snapshot is a stored piece of rendered output.
type Snapshot struct {
	Key         string
	ContentType string
	Body        []byte
	CreatedAt   time.Time
}

// Store persists snapshots.
type Store interface {
	// Put stores body under key, replacing any previous snapshot.
	Put(ctx context.Context, key, contentType string, body []byte) error

	// Get returns the snapshot stored under key or ErrNotFound.
	Get(ctx context.Context, key string) (*Snapshot, error)

	// List returns the keys starting with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the snapshot under key. Deleting a missing key is
	// not an error.
	Delete(ctx context.Context, key string) error
}

// NewKey returns a unique key of the form name-<id><ext>.
func NewKey(name, ext string) string {
	if name == "" {
		name = "snapshot"
	}
	return name + "-" + xid.New().String() + ext
}

// CleanKey validates key and returns it in canonical form.
func CleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	clean := path.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return clean, nil
}

// ParseS3URL splits s3://bucket/key into its bucket and key.
func ParseS3URL(u string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(u, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", false
	}
	return bucket, key, true
}
