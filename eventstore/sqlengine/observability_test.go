package sqlengine_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/AntonStoeckl/stream-tables-eventstore-go/eventstore"
	. "github.com/AntonStoeckl/stream-tables-eventstore-go/eventstore/sqlengine"
	. "github.com/AntonStoeckl/stream-tables-eventstore-go/testutil/sqlengine/helper"
)

func Test_Observability_WithLogger_It_Should_Log_Appends_And_Statements(t *testing.T) {
	// setup
	ctx := givenContext(t)
	logHandler := NewLogHandlerSpy(false)
	es, _ := givenEventStore(t, []string{UserStreamTable}, WithLogger(slog.New(logHandler)))

	// act
	err := es.Create(ctx, UserStreamWith(FixtureUserHistory(GivenUniqueID(t), 3, FixedClock())...))

	// assert
	require.NoError(t, err)
	assert.True(t, logHandler.HasInfoLogWithMessage("eventstore operation: create schema").
		WithStringAttr("table_name", UserStreamTable).
		WithDurationMS().
		Assert())
	assert.True(t, logHandler.HasInfoLogWithMessage("eventstore operation: append").
		WithEventCount(3).
		WithStringAttr("stream_name", UserStream).
		WithDurationMS().
		Assert())
	assert.True(t, logHandler.HasDebugLogWithMessage("executed sql for: append").
		WithAttr("query").
		WithDurationMS().
		Assert())
	assert.Equal(t, 3, logHandler.CountLogsWithMessage(slog.LevelDebug, "executed sql for: append"))
}

func Test_Observability_WithContextualLogger_It_Should_Log_Page_Fetches(t *testing.T) {
	// setup
	ctx := givenContext(t)
	logHandler := NewLogHandlerSpy(false)
	es, _ := givenEventStore(t, []string{UserStreamTable}, WithContextualLogger(slog.New(logHandler)))

	// arrange
	require.NoError(t, es.Create(ctx, UserStreamWith(FixtureUserHistory(GivenUniqueID(t), 2, FixedClock())...)))
	logHandler.Reset()

	// act
	_, err := es.Load(ctx, BuildStreamName(UserStream), 0, nil)

	// assert
	require.NoError(t, err)
	assert.True(t, logHandler.HasDebugLogWithMessage("page fetched").
		WithStringAttr("table_name", UserStreamTable).
		WithEventCount(2).
		Assert())
	assert.True(t, logHandler.HasDebugLogWithMessage("executed sql for: query").WithDurationMS().Assert())
}

func Test_Observability_WithLogger_It_Should_Log_Concurrency_Conflicts(t *testing.T) {
	// setup
	ctx := givenContext(t)
	logHandler := NewLogHandlerSpy(false)
	es, _ := givenEventStore(t, []string{UserStreamTable}, WithLogger(slog.New(logHandler)))

	// arrange
	aggregateID := GivenUniqueID(t)
	require.NoError(t, es.Create(ctx, UserStreamWith(FixtureUserRegistered(aggregateID, 1, FixedClock()))))

	// act
	err := es.AppendTo(
		ctx,
		BuildStreamName(UserStream),
		Messages{FixtureUserEmailChanged(aggregateID, 1, FixedClock().Add(time.Second), MetadataValuePerson)},
	)

	// assert
	assert.ErrorIs(t, err, ErrConcurrencyConflict)
	assert.True(t, logHandler.HasInfoLogWithMessage("eventstore operation: concurrency conflict detected").
		WithStringAttr("table_name", UserStreamTable).
		WithStringAttr("event_name", UserEmailChangedName).
		Assert())
}

func Test_Observability_WithMetrics_It_Should_Record_Append_Metrics(t *testing.T) {
	// setup
	ctx := givenContext(t)
	metricsSpy := NewMetricsCollectorSpy()
	es, _ := givenEventStore(t, []string{UserStreamTable}, WithMetrics(metricsSpy))

	// act
	err := es.Create(ctx, UserStreamWith(FixtureUserHistory(GivenUniqueID(t), 4, FixedClock())...))

	// assert
	require.NoError(t, err)
	assert.True(t, metricsSpy.HasDurationRecordForMetric("eventstore_append_duration_seconds").
		WithOperation("append").
		WithStatus("success").
		WithTable(UserStreamTable).
		Assert())
	assert.True(t, metricsSpy.HasCounterRecordForMetric("eventstore_schemas_created_total").
		WithTable(UserStreamTable).
		Assert())
	assert.Equal(t, 4.0, metricsSpy.SumValuesForMetric("eventstore_events_appended_total"))

	for _, record := range metricsSpy.GetRecords() {
		assert.True(t, record.HadContext, "the context-aware methods should be preferred")
	}
}

func Test_Observability_WithMetrics_It_Should_Record_Concurrency_Conflicts(t *testing.T) {
	// setup
	ctx := givenContext(t)
	metricsSpy := NewMetricsCollectorSpy()
	es, _ := givenEventStore(t, []string{UserStreamTable}, WithMetrics(metricsSpy))

	// arrange
	aggregateID := GivenUniqueID(t)
	require.NoError(t, es.Create(ctx, UserStreamWith(FixtureUserRegistered(aggregateID, 1, FixedClock()))))
	metricsSpy.Reset()

	// act
	err := es.AppendTo(ctx, BuildStreamName(UserStream), Messages{FixtureUserRegistered(aggregateID, 1, FixedClock())})

	// assert
	assert.ErrorIs(t, err, ErrConcurrencyConflict)
	assert.True(t, metricsSpy.HasCounterRecordForMetric("eventstore_concurrency_conflicts_total").
		WithOperation("append").
		WithLabel("conflict_type", "concurrency").
		Assert())
	assert.True(t, metricsSpy.HasDurationRecordForMetric("eventstore_append_duration_seconds").
		WithStatus("error").
		Assert())
}

func Test_Observability_WithMetrics_It_Should_Record_Query_Errors(t *testing.T) {
	// setup
	ctx := givenContext(t)
	metricsSpy := NewMetricsCollectorSpy()
	es, _ := givenEventStore(t, []string{UserStreamTable}, WithMetrics(metricsSpy))

	// act
	_, err := es.Load(ctx, BuildStreamName(UserStream), 0, nil)

	// assert
	assert.ErrorIs(t, err, ErrQueryingEventsFailed)
	assert.True(t, metricsSpy.HasCounterRecordForMetric("eventstore_database_errors_total").
		WithOperation("query").
		WithErrorType("database_query").
		WithTable(UserStreamTable).
		Assert())
}

func Test_Observability_WithTracing_It_Should_Trace_Each_Operation_Once(t *testing.T) {
	// setup
	ctx := givenContext(t)
	tracingSpy := NewTracingCollectorSpy()
	es, _ := givenEventStore(t, []string{UserStreamTable}, WithLoadBatchSize(2), WithTracing(tracingSpy))

	// arrange
	aggregateID := GivenUniqueID(t)

	// act
	createErr := es.Create(ctx, UserStreamWith(FixtureUserHistory(aggregateID, 3, FixedClock())...))
	_, loadErr := es.Load(ctx, BuildStreamName(UserStream), 0, nil)

	// assert
	require.NoError(t, createErr)
	require.NoError(t, loadErr)

	schemaSpans := tracingSpy.SpanRecordsNamed("eventstore.create_schema")
	require.Len(t, schemaSpans, 1)
	assert.Equal(t, UserStreamTable, schemaSpans[0].StartAttributes["table"])
	assert.Equal(t, es.Dialect().String(), schemaSpans[0].StartAttributes["db.system"])

	appendSpans := tracingSpy.SpanRecordsNamed("eventstore.append")
	require.Len(t, appendSpans, 1)
	assert.Equal(t, "success", appendSpans[0].Status)
	assert.Equal(t, "3", appendSpans[0].EndAttributes["event_count"])
	assert.Contains(t, appendSpans[0].EndAttributes, "duration_ms")

	querySpans := tracingSpy.SpanRecordsNamed("eventstore.query")
	require.Len(t, querySpans, 3, "two pages with rows and one empty page")

	for _, record := range tracingSpy.GetSpanRecords() {
		assert.Equal(t, 1, record.FinishCount, "span %s should be finished exactly once", record.Name)
	}
}

func Test_Observability_WithTracing_It_Should_Mark_Conflicts_And_Errors(t *testing.T) {
	// setup
	ctx := givenContext(t)
	tracingSpy := NewTracingCollectorSpy()
	es, _ := givenEventStore(t, []string{UserStreamTable}, WithTracing(tracingSpy))

	// arrange
	aggregateID := GivenUniqueID(t)
	require.NoError(t, es.Create(ctx, UserStreamWith(FixtureUserRegistered(aggregateID, 1, FixedClock()))))
	tracingSpy.Reset()

	// act
	conflictErr := es.AppendTo(ctx, BuildStreamName(UserStream), Messages{FixtureUserRegistered(aggregateID, 1, FixedClock())})
	_, queryErr := es.Load(ctx, BuildStreamName("App\\Domain\\Missing"), 0, nil)

	// assert
	assert.ErrorIs(t, conflictErr, ErrConcurrencyConflict)
	assert.ErrorIs(t, queryErr, ErrQueryingEventsFailed)

	appendSpans := tracingSpy.SpanRecordsNamed("eventstore.append")
	require.Len(t, appendSpans, 1)
	assert.Equal(t, "conflict", appendSpans[0].Status)
	assert.Equal(t, "concurrency", appendSpans[0].EndAttributes["conflict_type"])

	querySpans := tracingSpy.SpanRecordsNamed("eventstore.query")
	require.Len(t, querySpans, 1)
	assert.Equal(t, "error", querySpans[0].Status)
	assert.Equal(t, "database_query", querySpans[0].EndAttributes["error_type"])
}

var errPayloadNotSerializable = errors.New("payload not serializable")

type failingPayloadSerializer struct{}

func (failingPayloadSerializer) SerializePayload(Payload) (string, error) {
	return "", errPayloadNotSerializable
}

func (failingPayloadSerializer) UnserializePayload(string) (Payload, error) {
	return nil, errPayloadNotSerializable
}

func Test_Observability_WithMetrics_It_Should_Label_Serialization_Failures(t *testing.T) {
	// setup
	ctx := givenContext(t)
	metricsSpy := NewMetricsCollectorSpy()
	logHandler := NewLogHandlerSpy(false)
	es, _ := givenEventStore(
		t,
		[]string{UserStreamTable},
		WithMetrics(metricsSpy),
		WithLogger(slog.New(logHandler)),
		WithPayloadSerializer(failingPayloadSerializer{}),
	)

	// act
	err := es.Create(ctx, UserStreamWith(FixtureUserRegistered(GivenUniqueID(t), 1, FixedClock())))

	// assert
	assert.ErrorIs(t, err, errPayloadNotSerializable)
	assert.True(t, metricsSpy.HasCounterRecordForMetric("eventstore_database_errors_total").
		WithOperation("append").
		WithErrorType("serialize").
		WithTable(UserStreamTable).
		Assert())
	assert.False(t, metricsSpy.HasCounterRecordForMetric("eventstore_database_errors_total").
		WithErrorType("build_query").
		Assert())
	assert.True(t, logHandler.HasErrorLogWithMessage("failed to serialize payload").
		WithStringAttr("event_name", UserRegisteredName).
		Assert())
}

func Test_Observability_WithTracing_It_Should_Log_With_The_Span_Context(t *testing.T) {
	// setup
	ctx := givenContext(t)
	tracingSpy := NewTracingCollectorSpy()
	logHandler := NewLogHandlerSpy(false)
	es, _ := givenEventStore(
		t,
		[]string{UserStreamTable},
		WithTracing(tracingSpy),
		WithContextualLogger(slog.New(logHandler)),
	)

	// arrange
	require.NoError(t, es.Create(ctx, UserStreamWith(FixtureUserHistory(GivenUniqueID(t), 2, FixedClock())...)))

	// act
	_, err := es.Load(ctx, BuildStreamName(UserStream), 0, nil)

	// assert
	require.NoError(t, err)
	assert.Nil(t, SpySpanFromContext(ctx), "the caller context should stay untouched")
	assert.True(t, logHandler.HasInfoLogWithMessage("eventstore operation: create schema").WithSpanInContext().Assert())
	assert.True(t, logHandler.HasDebugLogWithMessage("executed sql for: append").WithSpanInContext().Assert())
	assert.True(t, logHandler.HasInfoLogWithMessage("eventstore operation: append").WithSpanInContext().Assert())
	assert.True(t, logHandler.HasDebugLogWithMessage("executed sql for: query").WithSpanInContext().Assert())
	assert.True(t, logHandler.HasDebugLogWithMessage("page fetched").WithSpanInContext().Assert())
}
