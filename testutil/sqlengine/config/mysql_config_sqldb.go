package config

import (
	"database/sql"

	_ "github.com/go-sql-driver/mysql" // mysql driver
)

// MySQLSQLDBTestConfig creates a configured *sql.DB for the MySQL/MariaDB test database.
func MySQLSQLDBTestConfig() *sql.DB {
	return openSQLDB("mysql", MySQLTestDSN())
}
