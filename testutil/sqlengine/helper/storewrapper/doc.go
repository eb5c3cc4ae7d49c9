// Package storewrapper creates sqlengine EventStores for tests on the backend selected by ADAPTER_TYPE.
//
// Supported values:
//
//	sqlite (default)  in-memory SQLite through database/sql, no server needed
//	pgx.pool          Postgres through pgxpool
//	sql.db            Postgres through database/sql and lib/pq
//	sqlx.db           Postgres through sqlx and lib/pq
//	mysql             MySQL/MariaDB through database/sql and go-sql-driver/mysql
//
// Every wrapper drops the tables a test names before handing out the EventStore,
// so tests against a shared server start from a clean state.
package storewrapper
