package storewrapper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/stream-tables-eventstore-go/eventstore/sqlengine"
	"github.com/AntonStoeckl/stream-tables-eventstore-go/testutil/sqlengine/config"
)

// Adapter type constants
const (
	typeSQLite  = "sqlite"
	typePGXPool = "pgx.pool"
	typeSQLDB   = "sql.db"
	typeSQLXDB  = "sqlx.db"
	typeMySQL   = "mysql"
)

// Wrapper abstracts over the different connection types.
type Wrapper interface {
	GetEventStore() *sqlengine.EventStore
	// Exec runs a raw statement outside the EventStore, e.g. to corrupt a row on purpose.
	Exec(ctx context.Context, statement string) error
	Close()
}

type sqlDBWrapper struct {
	db *sql.DB
	es *sqlengine.EventStore
}

func (w *sqlDBWrapper) GetEventStore() *sqlengine.EventStore {
	return w.es
}

func (w *sqlDBWrapper) Exec(ctx context.Context, statement string) error {
	_, err := w.db.ExecContext(ctx, statement)
	return err
}

func (w *sqlDBWrapper) Close() {
	_ = w.db.Close() // ignore error
}

type sqlxWrapper struct {
	db *sqlx.DB
	es *sqlengine.EventStore
}

func (w *sqlxWrapper) GetEventStore() *sqlengine.EventStore {
	return w.es
}

func (w *sqlxWrapper) Exec(ctx context.Context, statement string) error {
	_, err := w.db.ExecContext(ctx, statement)
	return err
}

func (w *sqlxWrapper) Close() {
	_ = w.db.Close() // ignore error
}

type pgxPoolWrapper struct {
	pool *pgxpool.Pool
	es   *sqlengine.EventStore
}

func (w *pgxPoolWrapper) GetEventStore() *sqlengine.EventStore {
	return w.es
}

func (w *pgxPoolWrapper) Exec(ctx context.Context, statement string) error {
	_, err := w.pool.Exec(ctx, statement)
	return err
}

func (w *pgxPoolWrapper) Close() {
	w.pool.Close()
}

// AdapterTypeFromEnv returns the lower-cased ADAPTER_TYPE, defaulting to sqlite.
func AdapterTypeFromEnv() string {
	adapterType := strings.ToLower(os.Getenv("ADAPTER_TYPE"))
	if adapterType == "" {
		return typeSQLite
	}

	return adapterType
}

// CreateWrapperWithTestConfig creates the wrapper selected by ADAPTER_TYPE and drops the given tables.
// The wrapper is closed when the test ends.
func CreateWrapperWithTestConfig(t testing.TB, dropTables []string, options ...sqlengine.Option) Wrapper {
	t.Helper()

	wrapper := createWrapper(t, options...)
	t.Cleanup(wrapper.Close)

	for _, table := range dropTables {
		statement := fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteTable(wrapper.GetEventStore().Dialect(), table))
		require.NoError(t, wrapper.Exec(context.Background(), statement), "error dropping table in test setup")
	}

	return wrapper
}

func createWrapper(t testing.TB, options ...sqlengine.Option) Wrapper {
	switch adapterType := AdapterTypeFromEnv(); adapterType {
	case typeSQLite:
		db := config.SQLiteSQLDBInMemoryConfig()
		es, err := sqlengine.NewEventStoreFromSQLDB(db, options...)
		require.NoError(t, err, "error creating event store")

		return &sqlDBWrapper{db: db, es: es}

	case typePGXPool:
		pool, err := pgxpool.NewWithConfig(context.Background(), config.PostgresPGXPoolTestConfig())
		require.NoError(t, err, "error connecting to DB pool in test setup")

		es, err := sqlengine.NewEventStoreFromPGXPool(pool, options...)
		require.NoError(t, err, "error creating event store")

		return &pgxPoolWrapper{pool: pool, es: es}

	case typeSQLDB:
		db := config.PostgresSQLDBTestConfig()
		es, err := sqlengine.NewEventStoreFromSQLDB(db, options...)
		require.NoError(t, err, "error creating event store")

		return &sqlDBWrapper{db: db, es: es}

	case typeSQLXDB:
		db := config.PostgresSQLXTestConfig()
		es, err := sqlengine.NewEventStoreFromSQLX(db, options...)
		require.NoError(t, err, "error creating event store")

		return &sqlxWrapper{db: db, es: es}

	case typeMySQL:
		db := config.MySQLSQLDBTestConfig()
		es, err := sqlengine.NewEventStoreFromSQLDB(db, options...)
		require.NoError(t, err, "error creating event store")

		return &sqlDBWrapper{db: db, es: es}

	default: // neither one of the known types nor empty
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", adapterType))
	}
}

func quoteTable(dialect sqlengine.Dialect, table string) string {
	if dialect == sqlengine.DialectMySQL {
		return "`" + table + "`"
	}

	return `"` + table + `"`
}
