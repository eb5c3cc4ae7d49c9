package eventstore

import (
	"errors"
)

var ErrNilDatabaseConnection = errors.New("database connection must not be nil")
var ErrEmptyTableName = errors.New("empty table name supplied")
var ErrInvalidBatchSize = errors.New("load batch size must be positive")

// ErrEmptyStream is returned by Create when the stream does not carry a single event,
// so there is no representative event to derive the table schema from.
var ErrEmptyStream = errors.New("cannot create an empty stream, at least one event is required to derive the schema")

var ErrTransactionAlreadyActive = errors.New("transaction already started")
var ErrNoActiveTransaction = errors.New("no transaction active")

// ErrConcurrencyConflict is the optimistic concurrency signal: an event with the same version
// (for the same aggregate) exists already. It is always joined with the underlying store error.
var ErrConcurrencyConflict = errors.New("concurrency error, at least one event with the same version exists already")

// ErrDecodingRowFailed is returned when a stored row can not be turned back into a Message.
var ErrDecodingRowFailed = errors.New("decoding stored row failed")

var ErrReservedColumnName = errors.New("metadata key collides with a reserved column name")
var ErrInvalidColumnName = errors.New("metadata key is not a valid column name")
var ErrInvalidMessageData = errors.New("message data is not valid")

var ErrBuildingQueryFailed = errors.New("building query failed")
var ErrQueryingEventsFailed = errors.New("querying events failed")
var ErrAppendingEventFailed = errors.New("appending event failed")
var ErrCreatingSchemaFailed = errors.New("creating schema failed")
var ErrScanningDBRowFailed = errors.New("scanning db row failed")
var ErrBeginningTransactionFailed = errors.New("beginning transaction failed")

// Version is the per-aggregate position of an event.
type Version = uint
