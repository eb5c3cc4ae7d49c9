// Package config provides database configuration for EventStore testing.
//
// It contains factory functions for the connection types the sqlengine supports
// (pgx.Pool, sql.DB, sqlx.DB) against Postgres, MySQL/MariaDB, and in-memory SQLite.
// SQLite needs no running server and is the default backend of the test suite.
package config
