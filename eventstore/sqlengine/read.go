package sqlengine

import (
	"context"
	"slices"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/AntonStoeckl/stream-tables-eventstore-go/eventstore"
)

// Load reads the events of streamName with a version of at least minVersion (0 means all)
// that match all entries of metadataMatcher, ordered by version, into a Stream.
func (es *EventStore) Load(
	ctx context.Context,
	streamName eventstore.StreamName,
	minVersion eventstore.Version,
	metadataMatcher eventstore.MetadataMatcher,
) (eventstore.Stream, error) {

	iterator, err := es.LoadEvents(ctx, streamName, metadataMatcher, minVersion)
	if err != nil {
		return eventstore.Stream{}, err
	}

	messages := make(eventstore.Messages, 0)
	for message, iterErr := range iterator.All(ctx) {
		if iterErr != nil {
			return eventstore.Stream{}, iterErr
		}

		messages = append(messages, message)
	}

	return eventstore.BuildStream(streamName, messages...), nil
}

// LoadEvents returns a StreamIterator over the events of streamName, ordered by version.
// The first page is fetched before LoadEvents returns.
func (es *EventStore) LoadEvents(
	ctx context.Context,
	streamName eventstore.StreamName,
	metadataMatcher eventstore.MetadataMatcher,
	minVersion eventstore.Version,
) (*StreamIterator, error) {

	table := es.TableFor(streamName)

	query, err := es.buildSelectQuery(table, metadataMatcher)
	if err != nil {
		es.logErrorContext(ctx, logMsgBuildSelectQueryFailed, err, logAttrTableName, table)
		return nil, err
	}

	if minVersion > 0 {
		query = query.Where(goqu.C(eventstore.ColVersion).Gte(minVersion))
	}

	query = query.Order(
		goqu.I(eventstore.ColVersion).Asc(),
		goqu.I(eventstore.ColEventID).Asc(),
	)

	return newStreamIterator(ctx, es, table, query)
}

// Replay returns a StreamIterator over the events of streamName created strictly after since
// (the zero time means all), ordered by creation time, then version.
func (es *EventStore) Replay(
	ctx context.Context,
	streamName eventstore.StreamName,
	since time.Time,
	metadataMatcher eventstore.MetadataMatcher,
) (*StreamIterator, error) {

	table := es.TableFor(streamName)

	query, err := es.buildSelectQuery(table, metadataMatcher)
	if err != nil {
		es.logErrorContext(ctx, logMsgBuildSelectQueryFailed, err, logAttrTableName, table)
		return nil, err
	}

	if !since.IsZero() {
		query = query.Where(goqu.C(eventstore.ColCreatedAt).Gt(eventstore.FormatCreatedAt(since)))
	}

	query = query.Order(
		goqu.I(eventstore.ColCreatedAt).Asc(),
		goqu.I(eventstore.ColVersion).Asc(),
		goqu.I(eventstore.ColEventID).Asc(),
	)

	return newStreamIterator(ctx, es, table, query)
}

func (es *EventStore) buildSelectQuery(table string, metadataMatcher eventstore.MetadataMatcher) (*goqu.SelectDataset, error) {
	query := es.dialect.builder().From(table)

	if len(metadataMatcher) == 0 {
		return query, nil
	}

	keys := make([]string, 0, len(metadataMatcher))
	for key := range metadataMatcher {
		if err := eventstore.ValidateColumnName(key); err != nil {
			return nil, err
		}

		keys = append(keys, key)
	}

	slices.Sort(keys)

	conditions := make([]exp.Expression, 0, len(keys))
	for _, key := range keys {
		conditions = append(conditions, goqu.C(key).Eq(metadataMatcher[key]))
	}

	return query.Where(conditions...), nil
}
