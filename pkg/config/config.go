package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config holds the six recognized options, semantic only: nothing in
// this package enforces them, it only resolves their values from a
// YAML file and flag overrides for the components that do.
type Config struct {
	// MaxDBSize is an absolute byte ceiling per environment. bbolt has
	// no native per-file size cap (its mmap grows on demand), so this
	// is carried as a config value only; nothing currently enforces it
	// — see DESIGN.md's Open Question decision on this field.
	MaxDBSize int64 `yaml:"max_db_size"`

	// MaxReaders is the maximum concurrent read transactions per
	// environment. bbolt allows unlimited concurrent read
	// transactions by design, so this too is carried without
	// enforcement — see DESIGN.md.
	MaxReaders int `yaml:"max_readers"`

	// IntersectionChunkSize is the bitmap chunk size the executor's
	// k-way intersection processes per round; wired into
	// executor.New's chunkSize parameter.
	IntersectionChunkSize int `yaml:"intersection_chunk_size"`

	// PersistQueueCapacity is the worker-pool channel capacity; wired
	// into indexworker.NewWorker's capacity parameter.
	PersistQueueCapacity int `yaml:"persist_queue_capacity"`

	// FileBufferCapacity is the log writer's buffer size upstream of
	// logreader; carried for the writer-side component that appends
	// to the operation log.
	FileBufferCapacity int `yaml:"file_buffer_capacity"`

	// IndexWorkerCount bounds how many index workers may commit a batch
	// at the same time. serve starts one indexworker.Worker per
	// registered secondary index regardless of this value; it sizes the
	// semaphore those workers share.
	IndexWorkerCount int `yaml:"index_worker_count"`
}

// Default returns the configuration cachedb runs with if no file and
// no flags override anything.
func Default() Config {
	return Config{
		MaxDBSize:             0, // 0 means no ceiling
		MaxReaders:            126,
		IntersectionChunkSize: 1024,
		PersistQueueCapacity:  1024,
		FileBufferCapacity:    64 * 1024,
		IndexWorkerCount:      4,
	}
}

// Load reads a YAML file at path into a Config seeded with Default(),
// so a file that only sets a subset of options leaves the rest at
// their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// BindFlags registers the six options on fs with their current values
// in cfg as defaults, so a command can expose "--max-db-size" etc.
// alongside a config file without duplicating the default values.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.Int64Var(&cfg.MaxDBSize, "max-db-size", cfg.MaxDBSize, "absolute byte ceiling per environment (0 = no ceiling)")
	fs.IntVar(&cfg.MaxReaders, "max-readers", cfg.MaxReaders, "maximum concurrent read transactions per environment")
	fs.IntVar(&cfg.IntersectionChunkSize, "intersection-chunk-size", cfg.IntersectionChunkSize, "bitmap chunk size for index intersection")
	fs.IntVar(&cfg.PersistQueueCapacity, "persist-queue-capacity", cfg.PersistQueueCapacity, "worker-pool channel capacity")
	fs.IntVar(&cfg.FileBufferCapacity, "file-buffer-capacity", cfg.FileBufferCapacity, "log writer buffer size, in bytes")
	fs.IntVar(&cfg.IndexWorkerCount, "index-worker-count", cfg.IndexWorkerCount, "size of the indexing worker pool")
}
