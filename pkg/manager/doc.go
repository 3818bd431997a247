// Package manager owns the on-disk cache directory: one subdirectory
// per cache name, one numbered subdirectory per version inside that,
// and an alias pointer file naming the version a cache's name currently
// resolves to. Creating a cache writes a new version directory and
// schema.bin, then swaps the alias onto it with a single atomic rename.
// Writers hold an exclusive lock on a cache's directory for as long as
// they're open; readers hold a shared one; any number of readers may
// open concurrently with each other, but not with a writer.
package manager
