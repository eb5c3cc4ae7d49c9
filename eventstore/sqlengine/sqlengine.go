package sqlengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/stream-tables-eventstore-go/eventstore"
	"github.com/AntonStoeckl/stream-tables-eventstore-go/eventstore/messaging"
	"github.com/AntonStoeckl/stream-tables-eventstore-go/eventstore/serializer"
	"github.com/AntonStoeckl/stream-tables-eventstore-go/eventstore/sqlengine/internal/adapters"
)

const (
	defaultLoadBatchSize = 10000

	logMsgBuildSelectQueryFailed = "failed to build select query"
	logMsgBuildInsertQueryFailed = "failed to build insert query"
	logMsgDBQueryFailed          = "database query execution failed"
	logMsgDBExecFailed           = "database execution failed during event append"
	logMsgSchemaExecFailed       = "database execution failed during schema creation"
	logMsgScanRowFailed          = "failed to scan database row"
	logMsgDecodeRowFailed        = "failed to decode stored row"
	logMsgConvertMessageFailed   = "failed to convert message to message data"
	logMsgSerializePayloadFailed = "failed to serialize payload"
	logMsgCloseRowsFailed        = "failed to close database rows"
	logMsgPageFetched            = "page fetched"
	logMsgEventsAppended         = "events appended"
	logMsgSchemaCreated          = "schema created"
	logMsgConcurrencyConflict    = "concurrency conflict detected"
	logMsgTransactionBegun       = "transaction begun"
	logMsgTransactionCommitted   = "transaction committed"
	logMsgTransactionRolledBack  = "transaction rolled back"
	logMsgSQLExecuted            = "executed sql for: "
	logMsgOperation              = "eventstore operation: "

	logAttrError         = "error"
	logAttrQuery         = "query"
	logAttrStreamName    = "stream_name"
	logAttrTableName     = "table_name"
	logAttrEventName     = "event_name"
	logAttrEventCount    = "event_count"
	logAttrDurationMS    = "duration_ms"
	logAttrBatchSize     = "batch_size"
	logAttrBatchPosition = "batch_position"
	logAttrVersion       = "version"

	logActionQuery       = "query"
	logActionAppend      = "append"
	logActionSchema      = "create schema"
	logActionTransaction = "transaction"
)

type transactionState int

const (
	noTransaction transactionState = iota
	transactionActive
)

// EventStore persists the events of each stream in a table of its own.
//
// An EventStore holds at most one open transaction and is meant to be used by a single goroutine at a time.
type EventStore struct {
	db                adapters.DBAdapter
	dialect           Dialect
	resolver          eventstore.TableResolver
	loadBatchSize     uint
	messageFactory    eventstore.MessageFactory
	messageConverter  eventstore.MessageConverter
	payloadSerializer eventstore.PayloadSerializer
	logger            eventstore.Logger
	contextualLogger  eventstore.ContextualLogger
	metricsCollector  eventstore.MetricsCollector
	tracingCollector  eventstore.TracingCollector
	txState           transactionState
	tx                adapters.DBTx
}

// NewEventStoreFromPGXPool creates a new EventStore using a pgx Pool with optional configuration.
func NewEventStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewPGXAdapter(db), DialectPostgres, options...)
}

// NewEventStoreFromPGXPoolAndReplica creates a new EventStore using a primary and a replica pgx Pool.
// Reads go to the replica when the context asks for eventual consistency, see eventstore.WithEventualConsistency.
func NewEventStoreFromPGXPoolAndReplica(primary *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (*EventStore, error) {
	if primary == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	if replica == nil {
		return NewEventStoreFromPGXPool(primary, options...)
	}

	return newEventStore(adapters.NewPGXAdapterWithReplica(primary, replica), DialectPostgres, options...)
}

// NewEventStoreFromSQLDB creates a new EventStore using a sql.DB with optional configuration.
// The dialect is inferred from the registered driver unless WithDialect is given.
func NewEventStoreFromSQLDB(db *sql.DB, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewSQLAdapter(db), dialectFromDriver(db), options...)
}

// NewEventStoreFromSQLX creates a new EventStore using a sqlx.DB with optional configuration.
// The dialect is inferred from the driver name unless WithDialect is given.
func NewEventStoreFromSQLX(db *sqlx.DB, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewSQLXAdapter(db), dialectFromDriverName(db.DriverName()), options...)
}

func newEventStore(db adapters.DBAdapter, dialect Dialect, options ...Option) (*EventStore, error) {
	es := &EventStore{
		db:                db,
		dialect:           dialect,
		resolver:          eventstore.NewTableResolver(nil),
		loadBatchSize:     defaultLoadBatchSize,
		messageFactory:    messaging.NewRegistryMessageFactory(),
		messageConverter:  messaging.NewNoOpMessageConverter(),
		payloadSerializer: serializer.NewJSONPayloadSerializer(),
	}

	for _, option := range options {
		if err := option(es); err != nil {
			return nil, err
		}
	}

	return es, nil
}

// Dialect returns the SQL dialect the EventStore renders for.
func (es *EventStore) Dialect() Dialect {
	return es.dialect
}

// TableFor returns the table that holds the events of streamName.
func (es *EventStore) TableFor(streamName eventstore.StreamName) string {
	return es.resolver.TableFor(streamName)
}

// BeginTransaction opens a transaction, all following operations run inside it until Commit or Rollback.
func (es *EventStore) BeginTransaction(ctx context.Context) error {
	if es.txState == transactionActive {
		return eventstore.ErrTransactionAlreadyActive
	}

	tx, err := es.db.Begin(ctx)
	if err != nil {
		es.logErrorContext(ctx, logMsgOperation+logActionTransaction, err)
		return errors.Join(eventstore.ErrBeginningTransactionFailed, err)
	}

	es.tx = tx
	es.txState = transactionActive
	es.logDebugContext(ctx, logMsgTransactionBegun)

	return nil
}

// Commit commits the open transaction.
// The transaction is finished afterward, also when committing fails.
func (es *EventStore) Commit(ctx context.Context) error {
	if es.txState != transactionActive {
		return eventstore.ErrNoActiveTransaction
	}

	tx := es.tx
	es.tx = nil
	es.txState = noTransaction

	if err := tx.Commit(ctx); err != nil {
		es.logErrorContext(ctx, logMsgOperation+logActionTransaction, err)
		return err
	}

	es.logDebugContext(ctx, logMsgTransactionCommitted)

	return nil
}

// Rollback discards the open transaction.
func (es *EventStore) Rollback(ctx context.Context) error {
	if es.txState != transactionActive {
		return eventstore.ErrNoActiveTransaction
	}

	tx := es.tx
	es.tx = nil
	es.txState = noTransaction

	if err := tx.Rollback(ctx); err != nil {
		es.logErrorContext(ctx, logMsgOperation+logActionTransaction, err)
		return err
	}

	es.logDebugContext(ctx, logMsgTransactionRolledBack)

	return nil
}

// InTransaction runs fn inside a transaction. It commits when fn returns nil and rolls back otherwise.
func (es *EventStore) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := es.BeginTransaction(ctx); err != nil {
		return err
	}

	if err := fn(ctx); err != nil {
		if rollbackErr := es.Rollback(ctx); rollbackErr != nil {
			return errors.Join(err, fmt.Errorf("rollback failed: %w", rollbackErr))
		}

		return err
	}

	return es.Commit(ctx)
}

// HasActiveTransaction reports whether a transaction is open.
func (es *EventStore) HasActiveTransaction() bool {
	return es.txState == transactionActive
}

func (es *EventStore) executor() adapters.DBExecutor {
	if es.txState == transactionActive {
		return es.tx
	}

	return es.db
}
