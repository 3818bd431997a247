// Package config loads cachedb's recognized configuration options from
// a YAML file with command-line flag overrides, in that precedence
// order (flags win). It never talks to storage itself — callers read
// the resolved Config and pass its fields to the packages that use
// them (executor.ChunkSize, indexworker pool sizing, and so on).
package config
