// Package adapters provide database adapter implementations for the sqlengine event store.
//
// This package implements the adapter pattern to support multiple database libraries:
// pgx.Pool, sql.DB, and sqlx.DB. All adapters provide equivalent functionality through
// a common DBAdapter interface, including explicit transactions whose statements run
// on the single connection the transaction holds.
package adapters
