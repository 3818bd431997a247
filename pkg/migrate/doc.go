// Package migrate repoints a cache's alias from its current version to
// another version already present on disk, backing up the alias file
// first. It is the shared implementation behind both the standalone
// cachedb-migrate tool and cachedb's "migrate" subcommand, following
// a backup-then-mutate-then-report workflow.
package migrate
