package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/querybench/querybench/pkg/config"
	"github.com/sirupsen/logrus"
)

// Compile-time interface check.
var _ Store = (*localStore)(nil)

type localStore struct {
	log  logrus.FieldLogger
	root string
}

// NewLocalStore creates a Store rooted at the configured directory.
func NewLocalStore(log logrus.FieldLogger, cfg *config.LocalStorageConfig) Store {
	return &localStore{
		log:  log.WithField("component", "local-storage"),
		root: cfg.Root,
	}
}

// ListDirs returns directory names under {root}/{prefix}.
func (s *localStore) ListDirs(_ context.Context, prefix string) ([]string, error) {
	dir := filepath.Join(s.root, filepath.FromSlash(prefix))

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))

	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}

	sort.Strings(names)

	return names, nil
}

// GetFile reads {root}/{key}. Returns (nil, nil) when absent.
func (s *localStore) GetFile(_ context.Context, key string) ([]byte, error) {
	p := filepath.Join(s.root, filepath.FromSlash(key))

	data, err := os.ReadFile(p) //nolint:gosec // trusted paths from config
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading file %s: %w", p, err)
	}

	return data, nil
}

// PutFile writes {root}/{key}, creating parent directories.
func (s *localStore) PutFile(_ context.Context, key string, data []byte) error {
	p := filepath.Join(s.root, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", p, err)
	}

	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("writing file %s: %w", p, err)
	}

	return nil
}

// Preflight verifies the root directory is writable.
func (s *localStore) Preflight(ctx context.Context) error {
	content := fmt.Sprintf("querybench write test: %s", time.Now().UTC().Format(time.RFC3339))

	if err := s.PutFile(ctx, ".querybench-write-test", []byte(content)); err != nil {
		return fmt.Errorf("write test under %s: %w", s.root, err)
	}

	return nil
}

// UploadDir copies every file under localDir into {root}/{keyPrefix}.
func (s *localStore) UploadDir(ctx context.Context, localDir, keyPrefix string) (int, error) {
	var count int

	err := filepath.Walk(localDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(localDir, path)
		if err != nil {
			return fmt.Errorf("computing relative path: %w", err)
		}

		data, err := os.ReadFile(path) //nolint:gosec // walking caller-supplied dir
		if err != nil {
			return fmt.Errorf("reading %s: %w", relPath, err)
		}

		if err := s.PutFile(ctx, keyPrefix+"/"+filepath.ToSlash(relPath), data); err != nil {
			return err
		}

		count++

		return nil
	})
	if err != nil {
		return count, fmt.Errorf("walking directory %s: %w", localDir, err)
	}

	s.log.WithFields(logrus.Fields{
		"files":  count,
		"prefix": keyPrefix,
	}).Info("Upload completed")

	return count, nil
}
