package sqlengine

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/AntonStoeckl/stream-tables-eventstore-go/eventstore"
)

const (
	metricAppendDuration       = "eventstore_append_duration_seconds"
	metricQueryDuration        = "eventstore_query_duration_seconds"
	metricEventsAppended       = "eventstore_events_appended_total"
	metricEventsQueried        = "eventstore_events_queried_total"
	metricConcurrencyConflicts = "eventstore_concurrency_conflicts_total"
	metricDatabaseErrors       = "eventstore_database_errors_total"
	metricSchemasCreated       = "eventstore_schemas_created_total"

	labelOperation    = "operation"
	labelStatus       = "status"
	labelErrorType    = "error_type"
	labelConflictType = "conflict_type"
	labelTable        = "table"

	operationQuery  = "query"
	operationAppend = "append"
	operationSchema = "create_schema"

	statusSuccess  = "success"
	statusError    = "error"
	statusConflict = "conflict"

	spanNamePrefix       = "eventstore."
	spanAttrOperation    = "operation"
	spanAttrTable        = "table"
	spanAttrDialect      = "db.system"
	spanAttrEventCount   = "event_count"
	spanAttrErrorType    = "error_type"
	spanAttrConflictType = "conflict_type"
	spanAttrDurationMS   = "duration_ms"

	errorTypeBuildQuery   = "build_query"
	errorTypeDatabase     = "database_query"
	errorTypeDatabaseExec = "database_exec"
	errorTypeRowScan      = "row_scan"
	errorTypeDecode       = "decode"
	errorTypeConvert      = "convert"
	errorTypeValidation   = "validation"
	errorTypeSerialize    = "serialize"
	conflictConcurrency   = "concurrency"
)

// logQueryWithDuration logs SQL statements with execution time at debug level.
func (es *EventStore) logQueryWithDuration(
	ctx context.Context,
	sqlQuery string,
	action string,
	duration time.Duration,
) {
	args := []any{logAttrDurationMS, es.toMilliseconds(duration), logAttrQuery, sqlQuery}

	if es.logger != nil {
		es.logger.Debug(logMsgSQLExecuted+action, args...)
	}

	if es.contextualLogger != nil {
		es.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, args...)
	}
}

func (es *EventStore) logDebugContext(ctx context.Context, message string, args ...any) {
	if es.logger != nil {
		es.logger.Debug(message, args...)
	}

	if es.contextualLogger != nil {
		es.contextualLogger.DebugContext(ctx, message, args...)
	}
}

// logOperation logs operational information at info level.
func (es *EventStore) logOperation(ctx context.Context, action string, args ...any) {
	if es.logger != nil {
		es.logger.Info(logMsgOperation+action, args...)
	}

	if es.contextualLogger != nil {
		es.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
	}
}

// logErrorContext logs error information at the error level.
func (es *EventStore) logErrorContext(
	ctx context.Context,
	message string,
	err error,
	args ...any,
) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if es.logger != nil {
		es.logger.Error(message, allArgs...)
	}

	if es.contextualLogger != nil {
		es.contextualLogger.ErrorContext(ctx, message, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func (es *EventStore) toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

func (es *EventStore) recordDurationMetrics(
	ctx context.Context,
	metricName string,
	duration time.Duration,
	labels map[string]string,
) {
	if es.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := es.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metricName, duration, labels)
		return
	}

	es.metricsCollector.RecordDuration(metricName, duration, labels)
}

func (es *EventStore) recordValueMetrics(
	ctx context.Context,
	metricName string,
	value float64,
	labels map[string]string,
) {
	if es.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := es.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextualCollector.RecordValueContext(ctx, metricName, value, labels)
		return
	}

	es.metricsCollector.RecordValue(metricName, value, labels)
}

func (es *EventStore) incrementCounter(ctx context.Context, metricName string, labels map[string]string) {
	if es.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := es.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metricName, labels)
		return
	}

	es.metricsCollector.IncrementCounter(metricName, labels)
}

// operationObserver bundles the metrics and the span of one append, query, or schema operation on one table.
type operationObserver struct {
	es           *EventStore
	ctx          context.Context
	operation    string
	table        string
	durationName string
	eventsName   string
	startedAt    time.Time
	span         eventstore.SpanContext
}

// observeOperation starts the metrics and the span of one operation.
// The returned context carries the span and is meant for all calls that belong to the operation.
func (es *EventStore) observeOperation(ctx context.Context, operation, table string) (context.Context, *operationObserver) {
	observer := &operationObserver{
		es:        es,
		ctx:       ctx,
		operation: operation,
		table:     table,
		startedAt: time.Now(),
	}

	switch operation {
	case operationAppend:
		observer.durationName = metricAppendDuration
		observer.eventsName = metricEventsAppended
	case operationQuery:
		observer.durationName = metricQueryDuration
		observer.eventsName = metricEventsQueried
	}

	if es.tracingCollector != nil {
		observer.ctx, observer.span = es.tracingCollector.StartSpan(ctx, spanNamePrefix+operation, map[string]string{
			spanAttrOperation: operation,
			spanAttrTable:     table,
			spanAttrDialect:   es.dialect.String(),
		})
	}

	return observer.ctx, observer
}

func (o *operationObserver) labels(status string) map[string]string {
	return map[string]string{
		labelOperation: o.operation,
		labelStatus:    status,
		labelTable:     o.table,
	}
}

func (o *operationObserver) elapsed() time.Duration {
	return time.Since(o.startedAt)
}

func (o *operationObserver) recordSuccess(eventCount int) {
	if o.durationName != "" {
		o.es.recordDurationMetrics(o.ctx, o.durationName, o.elapsed(), o.labels(statusSuccess))
	}

	if o.eventsName != "" {
		o.es.recordValueMetrics(o.ctx, o.eventsName, float64(eventCount), o.labels(statusSuccess))
	}

	if o.operation == operationSchema {
		o.es.incrementCounter(o.ctx, metricSchemasCreated, o.labels(statusSuccess))
	}

	o.finishSpan(statusSuccess, map[string]string{spanAttrEventCount: strconv.Itoa(eventCount)})
}

func (o *operationObserver) recordError(errorType string) {
	if o.durationName != "" {
		o.es.recordDurationMetrics(o.ctx, o.durationName, o.elapsed(), o.labels(statusError))
	}

	labels := o.labels(statusError)
	labels[labelErrorType] = errorType
	o.es.incrementCounter(o.ctx, metricDatabaseErrors, labels)

	o.finishSpan(statusError, map[string]string{spanAttrErrorType: errorType})
}

func (o *operationObserver) recordConcurrencyConflict() {
	if o.durationName != "" {
		o.es.recordDurationMetrics(o.ctx, o.durationName, o.elapsed(), o.labels(statusError))
	}

	o.es.incrementCounter(o.ctx, metricConcurrencyConflicts, map[string]string{
		labelOperation:    o.operation,
		labelConflictType: conflictConcurrency,
		labelTable:        o.table,
	})

	o.finishSpan(statusConflict, map[string]string{spanAttrConflictType: conflictConcurrency})
}

// finishSpan ends the span once, later calls are ignored.
func (o *operationObserver) finishSpan(status string, attrs map[string]string) {
	if o.span == nil {
		return
	}

	attrs[spanAttrDurationMS] = strconv.FormatFloat(o.es.toMilliseconds(o.elapsed()), 'f', 2, 64)
	o.es.tracingCollector.FinishSpan(o.span, status, attrs)
	o.span = nil
}
