// Package eventstore provides the core abstractions for persisting event streams into
// relational tables, one physical table per logical stream.
//
// This package is dialect-free. It defines:
//   - StreamName and Stream: the logical stream and its ordered messages
//   - Message, MessageData, MessageConverter, MessageFactory, PayloadSerializer:
//     the narrow contracts towards the event object model and the payload format
//   - TableResolver: maps a StreamName to a table name
//   - TableSchema and DeriveTableSchema: the column set and constraints of a stream table,
//     derived from the metadata keys of the first event written to the stream
//   - the sentinel errors shared by all engines
//
// Every stream table has the fixed columns event_id, version, event_name, payload and created_at,
// plus one string column per metadata key. If an aggregate_id column exists, (aggregate_id, version)
// is unique, which turns concurrent appends at the same version into ErrConcurrencyConflict.
//
// Common usage pattern (with the sqlengine package):
//
//	streamName := eventstore.BuildStreamName(`App\Model\User`)
//
//	err := store.Create(ctx, eventstore.BuildStream(streamName, userWasCreated))
//	if err != nil {
//		// handle error
//	}
//
//	stream, err := store.Load(ctx, streamName, 2, eventstore.MetadataMatcher{"aggregate_id": userID})
package eventstore
