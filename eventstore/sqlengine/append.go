package sqlengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/AntonStoeckl/stream-tables-eventstore-go/eventstore"
)

// Create creates the table of a new stream and appends its events.
//
// The metadata keys of the first event define the dynamic columns of the table.
// An empty stream is rejected with eventstore.ErrEmptyStream before anything is written.
func (es *EventStore) Create(ctx context.Context, stream eventstore.Stream) error {
	first, ok := stream.First()
	if !ok {
		return fmt.Errorf("%w: %s", eventstore.ErrEmptyStream, stream.StreamName())
	}

	data, err := es.messageConverter.ConvertToMessageData(first)
	if err != nil {
		es.logErrorContext(ctx, logMsgConvertMessageFailed, err, logAttrStreamName, stream.StreamName().String())
		return err
	}

	if err = es.CreateSchemaFor(ctx, stream.StreamName(), eventstore.MetadataKeys(data.Metadata)); err != nil {
		return err
	}

	return es.AppendTo(ctx, stream.StreamName(), stream.Messages())
}

// AppendTo inserts messages into the table of streamName, one row per message, in the given order.
//
// A duplicate event_id, or a duplicate (aggregate_id, version) pair, fails with eventstore.ErrConcurrencyConflict
// joined with the driver error. Rows inserted before a failing message are kept unless a transaction is rolled back.
func (es *EventStore) AppendTo(ctx context.Context, streamName eventstore.StreamName, messages eventstore.Messages) error {
	table := es.TableFor(streamName)
	ctx, metrics := es.observeOperation(ctx, operationAppend, table)

	for _, message := range messages {
		if err := es.insertMessage(ctx, table, message, metrics); err != nil {
			return err
		}
	}

	metrics.recordSuccess(len(messages))
	es.logOperation(
		ctx,
		logActionAppend,
		logAttrStreamName, streamName.String(),
		logAttrTableName, table,
		logAttrEventCount, len(messages),
		logAttrDurationMS, es.toMilliseconds(metrics.elapsed()),
	)

	return nil
}

func (es *EventStore) insertMessage(
	ctx context.Context,
	table string,
	message eventstore.Message,
	metrics *operationObserver,
) error {
	data, err := es.messageConverter.ConvertToMessageData(message)
	if err != nil {
		metrics.recordError(errorTypeConvert)
		es.logErrorContext(ctx, logMsgConvertMessageFailed, err, logAttrTableName, table)
		return err
	}

	if err = eventstore.ValidateMessageData(data); err != nil {
		metrics.recordError(errorTypeValidation)
		es.logErrorContext(ctx, logMsgOperation+logActionAppend, err, logAttrEventName, data.MessageName)
		return err
	}

	serializedPayload, err := es.payloadSerializer.SerializePayload(data.Payload)
	if err != nil {
		metrics.recordError(errorTypeSerialize)
		es.logErrorContext(ctx, logMsgSerializePayloadFailed, err, logAttrEventName, data.MessageName)
		return err
	}

	sqlQuery, err := es.buildInsertQuery(table, data, serializedPayload)
	if err != nil {
		metrics.recordError(errorTypeBuildQuery)
		es.logErrorContext(ctx, logMsgBuildInsertQueryFailed, err, logAttrTableName, table)
		return err
	}

	start := time.Now()

	if _, err = es.executor().Exec(ctx, sqlQuery); err != nil {
		if isUniqueViolation(err) {
			metrics.recordConcurrencyConflict()
			es.logOperation(
				ctx,
				logMsgConcurrencyConflict,
				logAttrTableName, table,
				logAttrEventName, data.MessageName,
				logAttrVersion, data.Version,
			)

			return errors.Join(eventstore.ErrConcurrencyConflict, err)
		}

		metrics.recordError(errorTypeDatabaseExec)
		es.logErrorContext(ctx, logMsgDBExecFailed, err, logAttrQuery, sqlQuery)

		return errors.Join(eventstore.ErrAppendingEventFailed, err)
	}

	es.logQueryWithDuration(ctx, sqlQuery, logActionAppend, time.Since(start))

	return nil
}

func (es *EventStore) buildInsertQuery(table string, data eventstore.MessageData, serializedPayload string) (string, error) {
	record := goqu.Record{
		eventstore.ColEventID:   data.UUID,
		eventstore.ColVersion:   data.Version,
		eventstore.ColEventName: data.MessageName,
		eventstore.ColPayload:   serializedPayload,
		eventstore.ColCreatedAt: eventstore.FormatCreatedAt(data.CreatedAt),
	}

	for key, value := range data.Metadata {
		if value == nil {
			record[key] = nil
			continue
		}

		record[key] = eventstore.MetadataValueToString(value)
	}

	sqlQuery, _, toSQLErr := es.dialect.builder().Insert(table).Rows(record).ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}
