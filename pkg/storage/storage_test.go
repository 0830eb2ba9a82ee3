package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/querybench/querybench/pkg/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T) (Store, string) {
	t.Helper()

	root := t.TempDir()

	return NewLocalStore(logrus.New(), &config.LocalStorageConfig{Root: root}), root
}

func TestLocalPutGetRoundTrip(t *testing.T) {
	s, _ := newLocal(t)
	ctx := context.Background()

	key := "engine=e6data/cluster_size=M/benchmark=tpcds/run_type=concurrency_4/run_id=20250101-120000/summary.json"
	require.NoError(t, s.PutFile(ctx, key, []byte(`{"no_data":false}`)))

	data, err := s.GetFile(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"no_data":false}`, string(data))
}

func TestLocalGetMissingFile(t *testing.T) {
	s, _ := newLocal(t)

	data, err := s.GetFile(context.Background(), "engine=x/absent.json")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestLocalListDirs(t *testing.T) {
	s, root := newLocal(t)
	ctx := context.Background()

	for _, dir := range []string{
		"base/run_type=concurrency_1",
		"base/run_type=concurrency_8",
		"base/run_type=sequential",
	} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
	}

	// Plain files are not listed.
	require.NoError(t, os.WriteFile(filepath.Join(root, "base", "notes.txt"), []byte("x"), 0o644))

	names, err := s.ListDirs(ctx, "base")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"run_type=concurrency_1",
		"run_type=concurrency_8",
		"run_type=sequential",
	}, names)
}

func TestLocalListDirsMissingPrefix(t *testing.T) {
	s, _ := newLocal(t)

	names, err := s.ListDirs(context.Background(), "does/not/exist")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLocalUploadDir(t *testing.T) {
	s, root := newLocal(t)
	ctx := context.Background()

	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "summary.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "nested", "result.jtl"), []byte("a,b"), 0o644))

	count, err := s.UploadDir(ctx, src, "runs/run_id=1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	data, err := os.ReadFile(filepath.Join(root, "runs", "run_id=1", "nested", "result.jtl"))
	require.NoError(t, err)
	assert.Equal(t, "a,b", string(data))
}

func TestLocalPreflight(t *testing.T) {
	s, root := newLocal(t)

	require.NoError(t, s.Preflight(context.Background()))

	_, err := os.Stat(filepath.Join(root, ".querybench-write-test"))
	assert.NoError(t, err)
}

func TestNewSelectsBackend(t *testing.T) {
	log := logrus.New()

	local, err := New(log, &config.StorageConfig{
		Local: &config.LocalStorageConfig{Root: t.TempDir()},
	})
	require.NoError(t, err)
	assert.NotNil(t, local)

	s3, err := New(log, &config.StorageConfig{
		S3: &config.S3Config{Bucket: "bkt", RetryAttempts: 3, RetryDelay: "100ms"},
	})
	require.NoError(t, err)
	assert.NotNil(t, s3)

	_, err = New(log, &config.StorageConfig{})
	assert.Error(t, err)
}

func TestFullKey(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "a/b.json", want: "a/b.json"},
		{name: "with prefix", prefix: "jmeter-results", key: "a/b.json", want: "jmeter-results/a/b.json"},
		{name: "trailing slash stripped", prefix: "p/", key: "a", want: "p/a"},
		{name: "leading slash stripped", prefix: "p", key: "/a", want: "p/a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &s3Store{cfg: &config.S3Config{Prefix: tt.prefix}}
			assert.Equal(t, tt.want, s.fullKey(tt.key))
		})
	}
}

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		path       string
		wantPrefix string
	}{
		{path: "run/summary.json", wantPrefix: "application/json"},
		{path: "run/index.html", wantPrefix: "text/html"},
		{path: "run/notes.txt", wantPrefix: "text/plain"},
		{path: "run/Makefile", wantPrefix: "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Contains(t, detectContentType(tt.path), tt.wantPrefix)
		})
	}
}

func TestIsS3NotFound(t *testing.T) {
	assert.False(t, isS3NotFound(nil))
	assert.False(t, isS3NotFound(errors.New("connection refused")))
	assert.True(t, isS3NotFound(errors.New("operation error S3: GetObject, NoSuchKey: the key does not exist")))
}
