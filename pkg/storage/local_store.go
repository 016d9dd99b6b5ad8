package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStore implements ObjectStore on a plain directory. It serves
// single-node deployments and tests that should not need MinIO.
type LocalStore struct {
	basePath string
}

// NewLocalStore creates the base directory if missing.
func NewLocalStore(basePath string) (*LocalStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("storage base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStore{basePath: basePath}, nil
}

// Put writes an object under the base directory.
func (l *LocalStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	target := l.path(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}
	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create object: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("write object: %w", err)
	}
	return nil
}

// PresignGet returns a file URL; there is nothing to sign locally.
func (l *LocalStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	target := l.path(key)
	if _, err := os.Stat(target); err != nil {
		return "", fmt.Errorf("stat object: %w", err)
	}
	return "file://" + target, nil
}

// Delete removes an object. Missing objects are not an error.
func (l *LocalStore) Delete(_ context.Context, key string) error {
	err := os.Remove(l.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (l *LocalStore) path(key string) string {
	clean := filepath.FromSlash(strings.TrimPrefix(key, "/"))
	return filepath.Join(l.basePath, clean)
}
