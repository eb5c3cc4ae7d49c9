package sqlengine

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/AntonStoeckl/stream-tables-eventstore-go/eventstore"
)

type iteratorState int

const (
	iteratorNotStarted iteratorState = iota
	iteratorPositioned
	iteratorExhausted
)

// StreamIterator walks the rows of one query page by page, each page holding at most the load batch size rows.
//
// Rows are decoded one at a time while advancing, so a broken row is reported by the Rewind or Next call
// that reaches it. Once exhausted, the iterator stays exhausted until Rewind.
type StreamIterator struct {
	es            *EventStore
	table         string
	query         *goqu.SelectDataset
	batchSize     uint
	batchPosition uint
	page          []storedRow
	pagePosition  int
	state         iteratorState
	current       eventstore.Message
	key           int
}

func newStreamIterator(
	ctx context.Context,
	es *EventStore,
	table string,
	query *goqu.SelectDataset,
) (*StreamIterator, error) {

	it := &StreamIterator{
		es:        es,
		table:     table,
		query:     query,
		batchSize: es.loadBatchSize,
		state:     iteratorNotStarted,
		key:       -1,
	}

	if err := it.Rewind(ctx); err != nil {
		return nil, err
	}

	return it, nil
}

// Rewind repositions the iterator on the first row by fetching the first page again.
// It does nothing when the iterator is on the first row already.
func (it *StreamIterator) Rewind(ctx context.Context) error {
	if it.state == iteratorPositioned && it.key == 0 {
		return nil
	}

	it.batchPosition = 0
	it.key = -1
	it.current = nil

	if err := it.fetchPage(ctx); err != nil {
		it.exhaust()
		return err
	}

	return it.takeFromPage(ctx)
}

// Next advances to the following row, fetching the next page when the current one is used up.
// It does nothing on an exhausted iterator.
func (it *StreamIterator) Next(ctx context.Context) error {
	if it.state == iteratorExhausted {
		return nil
	}

	if it.pagePosition >= len(it.page) {
		it.batchPosition++

		if err := it.fetchPage(ctx); err != nil {
			it.exhaust()
			return err
		}
	}

	return it.takeFromPage(ctx)
}

// Valid reports whether the iterator is positioned on a row.
func (it *StreamIterator) Valid() bool {
	return it.state == iteratorPositioned
}

// Current returns the message of the current row, or nil if the iterator is not positioned on a row.
func (it *StreamIterator) Current() eventstore.Message {
	if it.state != iteratorPositioned {
		return nil
	}

	return it.current
}

// Key returns the zero-based position of the current row across all pages.
// The bool is false if the iterator is not positioned on a row.
func (it *StreamIterator) Key() (int, bool) {
	if it.state != iteratorPositioned {
		return -1, false
	}

	return it.key, true
}

// All rewinds the iterator and yields its messages in order. An error ends the sequence.
func (it *StreamIterator) All(ctx context.Context) iter.Seq2[eventstore.Message, error] {
	return func(yield func(eventstore.Message, error) bool) {
		if err := it.Rewind(ctx); err != nil {
			yield(nil, err)
			return
		}

		for it.Valid() {
			if !yield(it.Current(), nil) {
				return
			}

			if err := it.Next(ctx); err != nil {
				yield(nil, err)
				return
			}
		}
	}
}

func (it *StreamIterator) takeFromPage(ctx context.Context) error {
	if it.pagePosition >= len(it.page) {
		it.exhaust()
		return nil
	}

	row := it.page[it.pagePosition]
	it.pagePosition++

	message, err := it.es.decodeRow(row)
	if err != nil {
		it.exhaust()
		it.es.logErrorContext(ctx, logMsgDecodeRowFailed, err, logAttrTableName, it.table)
		it.es.incrementCounter(ctx, metricDatabaseErrors, map[string]string{
			labelOperation: operationQuery,
			labelStatus:    statusError,
			labelTable:     it.table,
			labelErrorType: errorTypeDecode,
		})

		return err
	}

	it.current = message
	it.key++
	it.state = iteratorPositioned

	return nil
}

func (it *StreamIterator) exhaust() {
	it.state = iteratorExhausted
	it.current = nil
	it.key = -1
	it.page = nil
	it.pagePosition = 0
}

// fetchPage reads the page at batchPosition completely and releases the rows before returning.
func (it *StreamIterator) fetchPage(ctx context.Context) error {
	ctx, metrics := it.es.observeOperation(ctx, operationQuery, it.table)

	sqlQuery, _, toSQLErr := it.query.
		Offset(it.batchSize * it.batchPosition).
		Limit(it.batchSize).
		ToSQL()
	if toSQLErr != nil {
		metrics.recordError(errorTypeBuildQuery)
		it.es.logErrorContext(ctx, logMsgBuildSelectQueryFailed, toSQLErr, logAttrTableName, it.table)
		return errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	start := time.Now()

	rows, queryErr := it.es.executor().Query(ctx, sqlQuery)
	if queryErr != nil {
		metrics.recordError(errorTypeDatabase)
		it.es.logErrorContext(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		return errors.Join(eventstore.ErrQueryingEventsFailed, queryErr)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			it.es.logErrorContext(ctx, logMsgCloseRowsFailed, closeErr)
		}
	}()

	columns, err := rows.Columns()
	if err != nil {
		metrics.recordError(errorTypeRowScan)
		it.es.logErrorContext(ctx, logMsgScanRowFailed, err, logAttrTableName, it.table)
		return errors.Join(eventstore.ErrScanningDBRowFailed, err)
	}

	page := make([]storedRow, 0)
	for rows.Next() {
		row, scanErr := scanRow(rows, columns)
		if scanErr != nil {
			metrics.recordError(errorTypeRowScan)
			it.es.logErrorContext(ctx, logMsgScanRowFailed, scanErr, logAttrTableName, it.table)
			return scanErr
		}

		page = append(page, row)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		metrics.recordError(errorTypeDatabase)
		it.es.logErrorContext(ctx, logMsgDBQueryFailed, rowsErr, logAttrQuery, sqlQuery)
		return errors.Join(eventstore.ErrQueryingEventsFailed, rowsErr)
	}

	it.page = page
	it.pagePosition = 0

	it.es.logQueryWithDuration(ctx, sqlQuery, logActionQuery, time.Since(start))
	it.es.logDebugContext(
		ctx,
		logMsgPageFetched,
		logAttrTableName, it.table,
		logAttrBatchPosition, it.batchPosition,
		logAttrBatchSize, it.batchSize,
		logAttrEventCount, len(page),
	)
	metrics.recordSuccess(len(page))

	return nil
}
