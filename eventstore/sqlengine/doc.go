// Package sqlengine implements an event store that keeps every stream in a table of its own.
//
// The table of a stream is created from a representative event: besides the fixed columns
// (event_id, version, event_name, payload, created_at) it gets one column per metadata key,
// so events can be filtered by metadata with plain column predicates.
//
// Reading goes through a StreamIterator that fetches fixed-size pages with LIMIT/OFFSET,
// ordered by version for Load/LoadEvents and by created_at for Replay.
//
// Postgres (pgx, lib/pq), MySQL/MariaDB, and SQLite are supported. Queries are rendered with goqu
// and executed with interpolated values. Duplicate keys are reported as eventstore.ErrConcurrencyConflict.
package sqlengine
