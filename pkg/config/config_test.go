package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFillsUnsetFieldsFromDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cachedb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("intersection_chunk_size: 2048\nindex_worker_count: 8\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2048, cfg.IntersectionChunkSize)
	assert.Equal(t, 8, cfg.IndexWorkerCount)
	assert.Equal(t, Default().PersistQueueCapacity, cfg.PersistQueueCapacity)
	assert.Equal(t, Default().MaxReaders, cfg.MaxReaders)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadMalformedYAMLReturnsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cachedb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("index_worker_count: [this is not an int\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestBindFlagsOverridesDefaultValue(t *testing.T) {
	cfg := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs, &cfg)

	require.NoError(t, fs.Parse([]string{"--index-worker-count=16", "--max-db-size=1073741824"}))

	assert.Equal(t, 16, cfg.IndexWorkerCount)
	assert.Equal(t, int64(1073741824), cfg.MaxDBSize)
	assert.Equal(t, Default().IntersectionChunkSize, cfg.IntersectionChunkSize)
}
