// Package cachetypes defines the data model shared by every layer of the
// cache engine: tagged field values, schemas, index definitions, records
// and the change operations that the log reader feeds to the writer.
package cachetypes
