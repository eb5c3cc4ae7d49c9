package config

import (
	"context"
	"database/sql"
	"log"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // sqlite driver
)

// SQLiteSQLDBInMemoryConfig creates a *sql.DB on a fresh in-memory SQLite database.
//
// Every connection to ":memory:" opens its own database, so the pool is pinned to one connection
// that is never recycled.
func SQLiteSQLDBInMemoryConfig() *sql.DB {
	db, err := sql.Open("sqlite", SQLiteInMemoryDSN())
	if err != nil {
		log.Fatal("Failed to open database connection, error: ", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if pingErr := db.PingContext(context.Background()); pingErr != nil {
		log.Fatal("Failed to ping database, error: ", pingErr)
	}

	return db
}

// SQLiteSQLXInMemoryConfig creates a *sqlx.DB on a fresh in-memory SQLite database.
func SQLiteSQLXInMemoryConfig() *sqlx.DB {
	return sqlx.NewDb(SQLiteSQLDBInMemoryConfig(), "sqlite")
}
