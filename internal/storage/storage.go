package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/pkg/errors"
)

// Ref points at a stored blob: a retrievable URL plus the provider-side path.
type Ref struct {
	URL  string
	Path string
}

// BlobStore is the object-storage collaborator. Callers hand it the binary
// and persist only the returned reference.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (*Ref, error)
}

type diskStore struct {
	root    string
	baseURL string
}

// NewDiskStore stores blobs under root and serves them below baseURL.
func NewDiskStore(root, baseURL string) BlobStore {
	return &diskStore{root: root, baseURL: baseURL}
}

func (s *diskStore) Put(ctx context.Context, key, contentType string, r io.Reader) (*Ref, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dst := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create storage directory")
	}

	f, err := os.Create(dst)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create blob")
	}
	defer f.Close()

	if _, err = io.Copy(f, r); err != nil {
		return nil, errors.Wrap(err, "failed to write blob")
	}

	return &Ref{
		URL:  fmt.Sprintf("%s/attachments/%s", s.baseURL, escapeKey(key)),
		Path: dst,
	}, nil
}

func escapeKey(key string) string {
	parts := []string{}
	for _, p := range splitKey(key) {
		parts = append(parts, url.PathEscape(p))
	}
	return path.Join(parts...)
}

func splitKey(key string) []string {
	var parts []string
	start := 0
	for i := 0; i <= len(key); i++ {
		if i == len(key) || key[i] == '/' {
			if i > start {
				parts = append(parts, key[start:i])
			}
			start = i + 1
		}
	}
	return parts
}
