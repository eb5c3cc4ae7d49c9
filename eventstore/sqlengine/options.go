package sqlengine

import (
	"fmt"

	"github.com/AntonStoeckl/stream-tables-eventstore-go/eventstore"
)

// Option defines a functional option for configuring EventStore.
type Option func(*EventStore) error

// WithDialect overrides the SQL dialect inferred from the database handle.
func WithDialect(dialect Dialect) Option {
	return func(es *EventStore) error {
		if !dialect.IsValid() {
			return fmt.Errorf("%w: %q", ErrUnsupportedDialect, dialect)
		}

		es.dialect = dialect

		return nil
	}
}

// WithStreamTableMap sets explicit table names for stream names.
// Mapped names are used verbatim, unmapped stream names are derived.
func WithStreamTableMap(streamTableMap map[string]string) Option {
	return func(es *EventStore) error {
		for streamName, tableName := range streamTableMap {
			if tableName == "" {
				return fmt.Errorf("%w: for stream %q", eventstore.ErrEmptyTableName, streamName)
			}
		}

		es.resolver = eventstore.NewTableResolver(streamTableMap)

		return nil
	}
}

// WithLoadBatchSize sets how many rows one page of a StreamIterator fetches.
func WithLoadBatchSize(batchSize uint) Option {
	return func(es *EventStore) error {
		if batchSize == 0 {
			return eventstore.ErrInvalidBatchSize
		}

		es.loadBatchSize = batchSize

		return nil
	}
}

// WithMessageFactory sets the factory used to turn stored rows back into messages.
func WithMessageFactory(factory eventstore.MessageFactory) Option {
	return func(es *EventStore) error {
		es.messageFactory = factory
		return nil
	}
}

// WithMessageConverter sets the converter used to turn messages into MessageData before storing.
func WithMessageConverter(converter eventstore.MessageConverter) Option {
	return func(es *EventStore) error {
		es.messageConverter = converter
		return nil
	}
}

// WithPayloadSerializer sets the serializer for the payload column.
func WithPayloadSerializer(serializer eventstore.PayloadSerializer) Option {
	return func(es *EventStore) error {
		es.payloadSerializer = serializer
		return nil
	}
}

// WithLogger sets the logger for the EventStore.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL statements with execution timing
// Info level: event counts, durations, concurrency conflicts, created schemas
// Error level: failures that abort an operation.
func WithLogger(logger eventstore.Logger) Option {
	return func(es *EventStore) error {
		es.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger, it receives the same records as the Logger.
func WithContextualLogger(logger eventstore.ContextualLogger) Option {
	return func(es *EventStore) error {
		es.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the EventStore.
// It receives append/query durations, event counts, concurrency conflicts, and database errors.
func WithMetrics(collector eventstore.MetricsCollector) Option {
	return func(es *EventStore) error {
		es.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector, it receives one span per append, page query, and schema creation.
func WithTracing(collector eventstore.TracingCollector) Option {
	return func(es *EventStore) error {
		es.tracingCollector = collector
		return nil
	}
}
