package sqlengine_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/AntonStoeckl/stream-tables-eventstore-go/eventstore"
	"github.com/AntonStoeckl/stream-tables-eventstore-go/eventstore/messaging"
	. "github.com/AntonStoeckl/stream-tables-eventstore-go/eventstore/sqlengine"
	. "github.com/AntonStoeckl/stream-tables-eventstore-go/testutil/sqlengine/helper"
	"github.com/AntonStoeckl/stream-tables-eventstore-go/testutil/sqlengine/helper/storewrapper"
)

func givenEventStore(t *testing.T, dropTables []string, options ...Option) (*EventStore, storewrapper.Wrapper) {
	t.Helper()

	wrapper := storewrapper.CreateWrapperWithTestConfig(t, dropTables, options...)

	return wrapper.GetEventStore(), wrapper
}

func givenContext(t *testing.T) context.Context {
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	return ctxWithTimeout
}

func Test_NewEventStore_When_DatabaseIsNil_It_Should_Fail(t *testing.T) {
	_, pgxErr := NewEventStoreFromPGXPool(nil)
	_, replicaErr := NewEventStoreFromPGXPoolAndReplica(nil, nil)
	_, sqlErr := NewEventStoreFromSQLDB((*sql.DB)(nil))
	_, sqlxErr := NewEventStoreFromSQLX((*sqlx.DB)(nil))

	assert.ErrorIs(t, pgxErr, ErrNilDatabaseConnection)
	assert.ErrorIs(t, replicaErr, ErrNilDatabaseConnection)
	assert.ErrorIs(t, sqlErr, ErrNilDatabaseConnection)
	assert.ErrorIs(t, sqlxErr, ErrNilDatabaseConnection)
}

func Test_NewEventStore_When_AnOptionIsInvalid_It_Should_Fail(t *testing.T) {
	testCases := []struct {
		name        string
		option      Option
		expectedErr error
	}{
		{name: "zero batch size", option: WithLoadBatchSize(0), expectedErr: ErrInvalidBatchSize},
		{name: "unknown dialect", option: WithDialect("oracle"), expectedErr: ErrUnsupportedDialect},
		{name: "empty mapped table", option: WithStreamTableMap(map[string]string{UserStream: ""}), expectedErr: ErrEmptyTableName},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// act
			_, err := NewEventStoreFromPGXPool(&pgxpool.Pool{}, tc.option)

			// assert
			assert.ErrorIs(t, err, tc.expectedErr)
		})
	}
}

func Test_TableFor_When_StreamIsMapped_It_Should_Use_The_Mapped_Table(t *testing.T) {
	// setup
	es, err := NewEventStoreFromPGXPool(
		&pgxpool.Pool{},
		WithStreamTableMap(map[string]string{UserStream: "people"}),
	)
	require.NoError(t, err)

	// act & assert
	assert.Equal(t, "people", es.TableFor(BuildStreamName(UserStream)))
	assert.Equal(t, "order_stream", es.TableFor(BuildStreamName(`Shop\Order`)))
}

func Test_Create_When_Stream_Has_Events_It_Should_Store_And_Load_Them_Unchanged(t *testing.T) {
	// setup
	ctx := givenContext(t)
	es, _ := givenEventStore(t, []string{UserStreamTable})

	// arrange
	aggregateID := GivenUniqueID(t)
	history := FixtureUserHistory(aggregateID, 3, FixedClock())

	// act
	err := es.Create(ctx, UserStreamWith(history...))
	require.NoError(t, err)

	stream, loadErr := es.Load(ctx, BuildStreamName(UserStream), 0, nil)

	// assert
	require.NoError(t, loadErr)
	assert.Equal(t, BuildStreamName(UserStream), stream.StreamName())
	require.Len(t, stream.Messages(), 3)

	for i, message := range stream.Messages() {
		AssertSameMessage(t, history[i], message)
	}
}

func Test_Create_When_Stream_Is_Empty_It_Should_Fail_Without_Writing(t *testing.T) {
	// setup
	ctx := givenContext(t)
	es, _ := givenEventStore(t, []string{UserStreamTable})

	// act
	err := es.Create(ctx, UserStreamWith())

	// assert
	assert.ErrorIs(t, err, ErrEmptyStream)

	_, loadErr := es.Load(ctx, BuildStreamName(UserStream), 0, nil)
	assert.ErrorIs(t, loadErr, ErrQueryingEventsFailed, "the table should not exist")
}

func Test_Create_When_Metadata_Uses_A_Reserved_Key_It_Should_Fail_Without_Writing(t *testing.T) {
	// setup
	ctx := givenContext(t)
	es, _ := givenEventStore(t, []string{UserStreamTable})

	// arrange
	message := FixtureUserRegistered(GivenUniqueID(t), 1, FixedClock()).WithAddedMetadata(ColPayload, "oops")

	// act
	err := es.Create(ctx, UserStreamWith(message))

	// assert
	assert.ErrorIs(t, err, ErrReservedColumnName)

	_, loadErr := es.Load(ctx, BuildStreamName(UserStream), 0, nil)
	assert.ErrorIs(t, loadErr, ErrQueryingEventsFailed, "the table should not exist")
}

func Test_Create_When_Metadata_Uses_A_Reserved_Key_In_Other_Case_It_Should_Fail_Without_Writing(t *testing.T) {
	// setup
	ctx := givenContext(t)
	es, _ := givenEventStore(t, []string{UserStreamTable})

	// arrange
	message := FixtureUserRegistered(GivenUniqueID(t), 1, FixedClock()).WithAddedMetadata("Version", "7")

	// act
	err := es.Create(ctx, UserStreamWith(message))

	// assert
	assert.ErrorIs(t, err, ErrReservedColumnName)
	assert.NotErrorIs(t, err, ErrCreatingSchemaFailed)

	_, loadErr := es.Load(ctx, BuildStreamName(UserStream), 0, nil)
	assert.ErrorIs(t, loadErr, ErrQueryingEventsFailed, "the table should not exist")
}

func Test_Create_When_Table_Exists_It_Should_Fail(t *testing.T) {
	// setup
	ctx := givenContext(t)
	es, _ := givenEventStore(t, []string{UserStreamTable})

	// arrange
	aggregateID := GivenUniqueID(t)
	require.NoError(t, es.Create(ctx, UserStreamWith(FixtureUserRegistered(aggregateID, 1, FixedClock()))))

	// act
	err := es.Create(ctx, UserStreamWith(FixtureUserRegistered(GivenUniqueID(t), 1, FixedClock())))

	// assert
	assert.ErrorIs(t, err, ErrCreatingSchemaFailed)
}

func Test_AppendTo_When_Version_Exists_For_Aggregate_It_Should_Fail_With_ConcurrencyConflict(t *testing.T) {
	// setup
	ctx := givenContext(t)
	es, _ := givenEventStore(t, []string{UserStreamTable})

	// arrange
	aggregateID := GivenUniqueID(t)
	history := FixtureUserHistory(aggregateID, 2, FixedClock())
	require.NoError(t, es.Create(ctx, UserStreamWith(history...)))

	conflicting := FixtureUserEmailChanged(aggregateID, 2, FixedClock().Add(time.Second), MetadataValuePerson)

	// act
	err := es.AppendTo(ctx, BuildStreamName(UserStream), Messages{conflicting})

	// assert
	assert.ErrorIs(t, err, ErrConcurrencyConflict)

	stream, loadErr := es.Load(ctx, BuildStreamName(UserStream), 0, nil)
	require.NoError(t, loadErr)
	require.Len(t, stream.Messages(), 2)
	AssertSameMessage(t, history[1], stream.Messages()[1])
}

func Test_AppendTo_When_EventID_Exists_It_Should_Fail_With_ConcurrencyConflict(t *testing.T) {
	// setup
	ctx := givenContext(t)
	es, _ := givenEventStore(t, []string{UserStreamTable})

	// arrange
	registered := FixtureUserRegistered(GivenUniqueID(t), 1, FixedClock())
	require.NoError(t, es.Create(ctx, UserStreamWith(registered)))

	sameID := FixtureUserRegistered(GivenUniqueID(t), 1, FixedClock()).WithUUID(registered.UUID())

	// act
	err := es.AppendTo(ctx, BuildStreamName(UserStream), Messages{sameID})

	// assert
	assert.ErrorIs(t, err, ErrConcurrencyConflict)
}

func Test_AppendTo_When_Same_Version_Belongs_To_Another_Aggregate_It_Should_Succeed(t *testing.T) {
	// setup
	ctx := givenContext(t)
	es, _ := givenEventStore(t, []string{UserStreamTable})

	// arrange
	require.NoError(t, es.Create(ctx, UserStreamWith(FixtureUserRegistered(GivenUniqueID(t), 1, FixedClock()))))

	// act
	err := es.AppendTo(
		ctx,
		BuildStreamName(UserStream),
		Messages{FixtureUserRegistered(GivenUniqueID(t), 1, FixedClock())},
	)

	// assert
	assert.NoError(t, err)
}

func Test_AppendTo_When_Table_Has_No_AggregateID_Versions_May_Repeat(t *testing.T) {
	// setup
	ctx := givenContext(t)
	es, _ := givenEventStore(t, []string{"audit_stream"})

	// arrange
	streamName := BuildStreamName("audit")
	first := messaging.BuildDomainMessage("Audited", Payload{"n": "1"}, 1).WithAddedMetadata(MetadataKeyTag, "a")
	second := messaging.BuildDomainMessage("Audited", Payload{"n": "2"}, 1).WithAddedMetadata(MetadataKeyTag, "b")

	// act
	err := es.Create(ctx, BuildStream(streamName, first, second))

	// assert
	assert.NoError(t, err)

	stream, loadErr := es.Load(ctx, streamName, 0, nil)
	require.NoError(t, loadErr)
	assert.Len(t, stream.Messages(), 2)
}

func Test_AppendTo_When_Message_Data_Is_Invalid_It_Should_Fail(t *testing.T) {
	// setup
	ctx := givenContext(t)
	es, _ := givenEventStore(t, []string{UserStreamTable})

	// arrange
	require.NoError(t, es.Create(ctx, UserStreamWith(FixtureUserRegistered(GivenUniqueID(t), 1, FixedClock()))))

	// act
	err := es.AppendTo(
		ctx,
		BuildStreamName(UserStream),
		Messages{FixtureUserRegistered(GivenUniqueID(t), 0, FixedClock())},
	)

	// assert
	assert.ErrorIs(t, err, ErrInvalidMessageData)
}

func Test_Load_When_MinVersion_Is_Given_It_Should_Return_Only_Later_Events(t *testing.T) {
	// setup
	ctx := givenContext(t)
	es, _ := givenEventStore(t, []string{UserStreamTable})

	// arrange
	require.NoError(t, es.Create(ctx, UserStreamWith(FixtureUserHistory(GivenUniqueID(t), 5, FixedClock())...)))

	// act
	stream, err := es.Load(ctx, BuildStreamName(UserStream), 3, nil)

	// assert
	require.NoError(t, err)
	assert.Equal(t, []Version{3, 4, 5}, Versions(stream.Messages()))
}

func Test_Load_When_MetadataMatcher_Is_Given_It_Should_Return_Only_Matching_Events(t *testing.T) {
	// setup
	ctx := givenContext(t)
	es, _ := givenEventStore(t, []string{UserStreamTable})

	// arrange
	person := GivenUniqueID(t)
	customer := GivenUniqueID(t)
	require.NoError(t, es.Create(ctx, UserStreamWith(
		FixtureUserRegistered(person, 1, FixedClock()),
		FixtureUserEmailChanged(customer, 1, FixedClock(), MetadataValueCustomer),
		FixtureUserEmailChanged(person, 2, FixedClock(), MetadataValuePerson),
		FixtureUserEmailChanged(customer, 2, FixedClock(), MetadataValueCustomer),
	)))

	// act
	customers, err := es.Load(ctx, BuildStreamName(UserStream), 0, MetadataMatcher{MetadataKeyTag: MetadataValueCustomer})
	personV2, err2 := es.Load(
		ctx,
		BuildStreamName(UserStream),
		0,
		MetadataMatcher{MetadataKeyTag: MetadataValuePerson, MetadataKeyAggregate: person.String()},
	)

	// assert
	require.NoError(t, err)
	require.NoError(t, err2)
	require.Len(t, customers.Messages(), 2)

	for _, message := range customers.Messages() {
		assert.Equal(t, MetadataValueCustomer, message.Metadata()[MetadataKeyTag])
	}

	assert.Equal(t, []Version{1, 2}, Versions(personV2.Messages()))
}

func Test_Load_When_MetadataMatcher_Key_Is_Not_An_Identifier_It_Should_Fail(t *testing.T) {
	// setup
	ctx := givenContext(t)
	es, _ := givenEventStore(t, []string{UserStreamTable})

	// act
	_, err := es.Load(ctx, BuildStreamName(UserStream), 0, MetadataMatcher{"tag; DROP TABLE x": "1"})

	// assert
	assert.ErrorIs(t, err, ErrInvalidColumnName)
}

func Test_Load_When_Stream_Has_No_Matching_Events_It_Should_Return_An_Empty_Stream(t *testing.T) {
	// setup
	ctx := givenContext(t)
	es, _ := givenEventStore(t, []string{UserStreamTable})

	// arrange
	require.NoError(t, es.Create(ctx, UserStreamWith(FixtureUserRegistered(GivenUniqueID(t), 1, FixedClock()))))

	// act
	stream, err := es.Load(ctx, BuildStreamName(UserStream), 0, MetadataMatcher{MetadataKeyTag: "nobody"})

	// assert
	require.NoError(t, err)
	assert.True(t, stream.IsEmpty())
}

func Test_Load_When_Metadata_Is_Missing_Or_Not_A_String_It_Should_Decode_It_As_Stored(t *testing.T) {
	// setup
	ctx := givenContext(t)
	es, _ := givenEventStore(t, []string{UserStreamTable})

	// arrange
	aggregateID := GivenUniqueID(t)
	first := FixtureUserRegistered(aggregateID, 1, FixedClock()).WithAddedMetadata("priority", 5)
	second := messaging.BuildDomainMessage(UserEmailChangedName, Payload{}, 2).
		WithCreatedAt(FixedClock()).
		WithAddedMetadata(MetadataKeyAggregate, aggregateID.String())

	// act
	require.NoError(t, es.Create(ctx, UserStreamWith(first, second)))
	stream, err := es.Load(ctx, BuildStreamName(UserStream), 0, nil)

	// assert
	require.NoError(t, err)
	require.Len(t, stream.Messages(), 2)
	assert.Equal(t, "5", stream.Messages()[0].Metadata()["priority"])
	assert.Equal(t, Metadata{MetadataKeyAggregate: aggregateID.String()}, stream.Messages()[1].Metadata())
}

func Test_Load_When_A_Row_Is_Corrupt_It_Should_Fail_With_DecodingError(t *testing.T) {
	// setup
	ctx := givenContext(t)
	es, wrapper := givenEventStore(t, []string{UserStreamTable})

	// arrange
	aggregateID := GivenUniqueID(t)
	require.NoError(t, es.Create(ctx, UserStreamWith(FixtureUserRegistered(aggregateID, 1, FixedClock()))))

	insert, _, err := goqu.Dialect(es.Dialect().String()).
		Insert(UserStreamTable).
		Rows(goqu.Record{
			ColEventID:           GivenUniqueID(t).String(),
			ColVersion:           2,
			ColEventName:         UserEmailChangedName,
			ColPayload:           "{}",
			ColCreatedAt:         "not a timestamp",
			MetadataKeyAggregate: aggregateID.String(),
			MetadataKeyTag:       MetadataValuePerson,
		}).
		ToSQL()
	require.NoError(t, err)
	require.NoError(t, wrapper.Exec(ctx, insert))

	// act
	_, loadErr := es.Load(ctx, BuildStreamName(UserStream), 0, nil)

	// assert
	assert.ErrorIs(t, loadErr, ErrDecodingRowFailed)
}

func Test_Load_When_Stream_Is_Mapped_It_Should_Use_The_Mapped_Table(t *testing.T) {
	// setup
	ctx := givenContext(t)
	es, _ := givenEventStore(t, []string{"people"}, WithStreamTableMap(map[string]string{UserStream: "people"}))

	// arrange
	registered := FixtureUserRegistered(GivenUniqueID(t), 1, FixedClock())
	require.NoError(t, es.Create(ctx, UserStreamWith(registered)))

	// act
	stream, err := es.Load(ctx, BuildStreamName(UserStream), 0, nil)

	// assert
	require.NoError(t, err)
	require.Len(t, stream.Messages(), 1)
	AssertSameMessage(t, registered, stream.Messages()[0])
}

func Test_Load_With_A_Strict_Factory_It_Should_Use_The_Registered_Constructor(t *testing.T) {
	// setup
	ctx := givenContext(t)

	factory := messaging.NewStrictRegistryMessageFactory()
	constructed := 0
	factory.Register(UserRegisteredName, func(data MessageData) (Message, error) {
		constructed++
		return messaging.DomainMessageFromData(data)
	})

	es, _ := givenEventStore(t, []string{UserStreamTable}, WithMessageFactory(factory))

	// arrange
	require.NoError(t, es.Create(ctx, UserStreamWith(FixtureUserRegistered(GivenUniqueID(t), 1, FixedClock()))))

	// act
	stream, err := es.Load(ctx, BuildStreamName(UserStream), 0, nil)

	// assert
	require.NoError(t, err)
	assert.Len(t, stream.Messages(), 1)
	assert.Equal(t, 1, constructed)
}

func Test_Replay_It_Should_Order_Events_Of_All_Aggregates_By_CreatedAt(t *testing.T) {
	// setup
	ctx := givenContext(t)
	es, _ := givenEventStore(t, []string{UserStreamTable})

	// arrange
	a := GivenUniqueID(t)
	b := GivenUniqueID(t)
	clock := FixedClock()
	a1 := FixtureUserRegistered(a, 1, clock)
	b1 := FixtureUserRegistered(b, 1, clock.Add(1*time.Second))
	a2 := FixtureUserEmailChanged(a, 2, clock.Add(2*time.Second), MetadataValuePerson)
	b2 := FixtureUserEmailChanged(b, 2, clock.Add(3*time.Second), MetadataValuePerson)
	a3 := FixtureUserEmailChanged(a, 3, clock.Add(4*time.Second), MetadataValuePerson)

	require.NoError(t, es.Create(ctx, UserStreamWith(a1, a2, a3)))
	require.NoError(t, es.AppendTo(ctx, BuildStreamName(UserStream), Messages{b1, b2}))

	// act
	iterator, err := es.Replay(ctx, BuildStreamName(UserStream), time.Time{}, nil)
	require.NoError(t, err)

	replayed := make(Messages, 0)
	for message, iterErr := range iterator.All(ctx) {
		require.NoError(t, iterErr)
		replayed = append(replayed, message)
	}

	// assert
	expected := Messages{a1, b1, a2, b2, a3}
	require.Len(t, replayed, len(expected))

	for i := range expected {
		AssertSameMessage(t, expected[i], replayed[i])
	}
}

func Test_Replay_When_Since_Is_Given_It_Should_Return_Strictly_Later_Events(t *testing.T) {
	// setup
	ctx := givenContext(t)
	es, _ := givenEventStore(t, []string{UserStreamTable})

	// arrange
	history := FixtureUserHistory(GivenUniqueID(t), 4, FixedClock())
	require.NoError(t, es.Create(ctx, UserStreamWith(history...)))

	// act
	iterator, err := es.Replay(ctx, BuildStreamName(UserStream), history[1].CreatedAt(), nil)
	require.NoError(t, err)

	replayed := make(Messages, 0)
	for message, iterErr := range iterator.All(ctx) {
		require.NoError(t, iterErr)
		replayed = append(replayed, message)
	}

	// assert
	assert.Equal(t, []Version{3, 4}, Versions(replayed))
}

func Test_SchemaSQLFor_It_Should_Not_Touch_The_Database(t *testing.T) {
	// setup
	ctx := givenContext(t)
	es, _ := givenEventStore(t, []string{UserStreamTable})

	// act
	statements, err := es.SchemaSQLFor(BuildStreamName(UserStream), []string{MetadataKeyTag, MetadataKeyAggregate})

	// assert
	require.NoError(t, err)
	require.Len(t, statements, 2)
	assert.Contains(t, statements[0], "CREATE TABLE")
	assert.Contains(t, statements[0], "user_stream_aggregate_id_version_key")
	assert.Contains(t, statements[1], "CREATE INDEX")

	_, loadErr := es.Load(ctx, BuildStreamName(UserStream), 0, nil)
	assert.ErrorIs(t, loadErr, ErrQueryingEventsFailed, "the table should not exist")
}

func Test_CreateSchemaFor_It_Should_Create_An_Empty_Stream_Table(t *testing.T) {
	// setup
	ctx := givenContext(t)
	es, _ := givenEventStore(t, []string{UserStreamTable})

	// act
	err := es.CreateSchemaFor(ctx, BuildStreamName(UserStream), []string{MetadataKeyAggregate, MetadataKeyTag})

	// assert
	require.NoError(t, err)

	stream, loadErr := es.Load(ctx, BuildStreamName(UserStream), 0, nil)
	require.NoError(t, loadErr)
	assert.True(t, stream.IsEmpty())
}
