// Package history persists a ledger of conversion runs in SQLite.
//
// Each run is inserted when it starts and finalized with its outcome. The
// converter consults the ledger to skip inputs that were already converted
// successfully (same path and size) unless forced.
//
// The schema is versioned through a schema_version table. A database with a
// different version is rejected rather than migrated; delete the file to
// start over.
package history
