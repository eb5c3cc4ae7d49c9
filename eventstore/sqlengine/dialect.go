package sqlengine

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"    // goqu dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // goqu dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // goqu dialect registration
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect names the SQL flavor the EventStore renders queries and DDL for.
// The values match the goqu dialect names.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
	DialectMySQL    Dialect = "mysql"
)

const (
	uniqueViolationSQLState   = "23505"
	mysqlDuplicateEntry       = 1062
	sqliteUniqueFailedMessage = "UNIQUE constraint failed"
)

var ErrUnsupportedDialect = errors.New("unsupported sql dialect")

// IsValid reports whether the dialect is one the engine can render for.
func (d Dialect) IsValid() bool {
	switch d {
	case DialectPostgres, DialectSQLite, DialectMySQL:
		return true
	default:
		return false
	}
}

func (d Dialect) String() string {
	return string(d)
}

func (d Dialect) builder() goqu.DialectWrapper {
	return goqu.Dialect(string(d))
}

// quoteIdentifier quotes a possibly schema qualified identifier like "billing.invoices".
func (d Dialect) quoteIdentifier(identifier string) string {
	quote := `"`
	if d == DialectMySQL {
		quote = "`"
	}

	parts := strings.Split(identifier, ".")
	for i, part := range parts {
		parts[i] = quote + strings.ReplaceAll(part, quote, quote+quote) + quote
	}

	return strings.Join(parts, ".")
}

// dialectFromDriver infers the dialect from the driver behind a sql.DB.
// Unknown drivers fall back to Postgres.
func dialectFromDriver(db *sql.DB) Dialect {
	switch db.Driver().(type) {
	case *sqlite.Driver:
		return DialectSQLite
	case *mysql.MySQLDriver:
		return DialectMySQL
	default:
		return DialectPostgres
	}
}

// dialectFromDriverName maps the driver names used with sql.Open and sqlx.Open.
func dialectFromDriverName(driverName string) Dialect {
	switch driverName {
	case "sqlite", "sqlite3":
		return DialectSQLite
	case "mysql":
		return DialectMySQL
	default:
		return DialectPostgres
	}
}

// isUniqueViolation recognizes the duplicate key errors of all supported drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationSQLState
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolationSQLState
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return true
		}

		return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sqliteErr.Error(), sqliteUniqueFailedMessage)
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntry
	}

	return false
}
