// Package sqlite contains SQLite repository implementations for the
// landcover asset registry: versioned stage outputs keyed by lineage name
// and the gzip-compressed checkpoint bands used to resume interrupted runs.
//
// The schema is owned by internal/db migrations; this package only issues
// queries against it.
package sqlite
