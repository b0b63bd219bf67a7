package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"
)

// ErrNotFound is returned by Read when no artifact exists under the key
var ErrNotFound = errors.New("artifact not found")

// Store keeps downloaded artifacts under deterministic keys of the form
// <prefix>.<id><ext> in a blob bucket.
type Store struct {
	bucket   *blob.Bucket
	location string
	localDir string
	prefix   string
	ext      string
}

// Open opens the artifact store at location. A plain path is treated as a
// local directory (created if missing); anything with a scheme, such as
// mem:// or s3://bucket, is opened through the blob URL mux.
func Open(ctx context.Context, location, prefix, ext string) (*Store, error) {
	if prefix == "" {
		return nil, errors.New("artifact prefix is required")
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	s := &Store{location: location, prefix: prefix, ext: ext}

	if strings.Contains(location, "://") {
		bucket, err := blob.OpenBucket(ctx, location)
		if err != nil {
			return nil, fmt.Errorf("open bucket %s: %w", location, err)
		}
		s.bucket = bucket
		return s, nil
	}

	dir, err := filepath.Abs(location)
	if err != nil {
		return nil, fmt.Errorf("resolve download directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}
	bucket, err := fileblob.OpenBucket(dir, &fileblob.Options{
		NoTempDir: true,
		Metadata:  fileblob.MetadataDontWrite,
	})
	if err != nil {
		return nil, fmt.Errorf("open directory %s: %w", dir, err)
	}
	s.bucket = bucket
	s.localDir = dir
	return s, nil
}

// Key returns the artifact key for an item id
func (s *Store) Key(id string) string {
	return s.prefix + "." + id + s.ext
}

// Exists reports whether an artifact is stored under key
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.bucket.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", key, err)
	}
	return ok, nil
}

// Read returns the stored artifact bytes
func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// Save writes data under key. Readers never observe a partial artifact:
// the blob writer only commits on a successful Close.
func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	w, err := s.bucket.NewWriter(ctx, key, &blob.WriterOptions{
		ContentType: "application/x-bittorrent",
	})
	if err != nil {
		return fmt.Errorf("open writer for %s: %w", key, err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("commit %s: %w", key, err)
	}
	return nil
}

// Location returns a human-readable path or URL for key
func (s *Store) Location(key string) string {
	if s.localDir != "" {
		return filepath.Join(s.localDir, key)
	}
	if strings.HasSuffix(s.location, "/") {
		return s.location + key
	}
	return s.location + "/" + key
}

// Count returns the number of stored artifacts
func (s *Store) Count(ctx context.Context) (int, error) {
	iter := s.bucket.List(&blob.ListOptions{Prefix: s.prefix + "."})
	count := 0
	for {
		obj, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, fmt.Errorf("list artifacts: %w", err)
		}
		if !obj.IsDir && strings.HasSuffix(obj.Key, s.ext) {
			count++
		}
	}
}

// Close releases the underlying bucket
func (s *Store) Close() error {
	return s.bucket.Close()
}
