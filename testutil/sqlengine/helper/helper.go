package helper

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/stream-tables-eventstore-go/eventstore"
	"github.com/AntonStoeckl/stream-tables-eventstore-go/eventstore/messaging"
)

const (
	UserStream            = `App\Domain\User`
	UserStreamTable       = "user_stream"
	UserRegisteredName    = "UserRegistered"
	UserEmailChangedName  = "UserEmailChanged"
	MetadataKeyAggregate  = eventstore.ColAggregateID
	MetadataKeyTag        = "tag"
	MetadataValuePerson   = "person"
	MetadataValueCustomer = "customer"
)

// FixedClock returns a stable point in time with microsecond precision.
func FixedClock() time.Time {
	return time.Date(2025, time.March, 14, 9, 26, 53, 589793000, time.UTC)
}

// GivenUniqueID returns a fresh aggregate ID.
func GivenUniqueID(t testing.TB) uuid.UUID {
	id, err := uuid.NewV7()
	assert.NoError(t, err, "error in arranging test data")

	return id
}

// FixtureUserRegistered builds a UserRegistered event of the given aggregate tagged as person.
func FixtureUserRegistered(aggregateID uuid.UUID, version eventstore.Version, createdAt time.Time) messaging.DomainMessage {
	return messaging.BuildDomainMessage(
		UserRegisteredName,
		eventstore.Payload{"name": "Alice", "email": "alice@example.com"},
		version,
	).
		WithCreatedAt(createdAt).
		WithAddedMetadata(MetadataKeyAggregate, aggregateID.String()).
		WithAddedMetadata(MetadataKeyTag, MetadataValuePerson)
}

// FixtureUserEmailChanged builds a UserEmailChanged event of the given aggregate.
func FixtureUserEmailChanged(
	aggregateID uuid.UUID,
	version eventstore.Version,
	createdAt time.Time,
	tag string,
) messaging.DomainMessage {

	return messaging.BuildDomainMessage(
		UserEmailChangedName,
		eventstore.Payload{"email": fmt.Sprintf("alice+%d@example.com", version)},
		version,
	).
		WithCreatedAt(createdAt).
		WithAddedMetadata(MetadataKeyAggregate, aggregateID.String()).
		WithAddedMetadata(MetadataKeyTag, tag)
}

// FixtureUserHistory builds count events of one aggregate with the versions 1..count,
// each created one millisecond after the previous one.
func FixtureUserHistory(aggregateID uuid.UUID, count int, startAt time.Time) eventstore.Messages {
	messages := make(eventstore.Messages, 0, count)
	for i := 1; i <= count; i++ {
		createdAt := startAt.Add(time.Duration(i-1) * time.Millisecond)
		if i == 1 {
			messages = append(messages, FixtureUserRegistered(aggregateID, 1, createdAt))
			continue
		}

		messages = append(messages, FixtureUserEmailChanged(aggregateID, eventstore.Version(i), createdAt, MetadataValuePerson))
	}

	return messages
}

// UserStreamWith builds the user Stream holding messages.
func UserStreamWith(messages ...eventstore.Message) eventstore.Stream {
	return eventstore.BuildStream(eventstore.BuildStreamName(UserStream), messages...)
}

// AssertSameMessage checks that actual is what was stored for expected.
// Metadata values come back as strings, times with microsecond precision.
func AssertSameMessage(t testing.TB, expected eventstore.Message, actual eventstore.Message) {
	t.Helper()

	if !assert.NotNil(t, actual) {
		return
	}

	assert.Equal(t, expected.UUID(), actual.UUID())
	assert.Equal(t, expected.MessageName(), actual.MessageName())
	assert.Equal(t, expected.Version(), actual.Version())
	assert.True(
		t,
		expected.CreatedAt().Truncate(time.Microsecond).Equal(actual.CreatedAt()),
		"created at differs: %s != %s", expected.CreatedAt(), actual.CreatedAt(),
	)
	assert.Equal(t, expected.Payload(), actual.Payload())

	expectedMetadata := eventstore.Metadata{}
	for key, value := range expected.Metadata() {
		if value != nil {
			expectedMetadata[key] = eventstore.MetadataValueToString(value)
		}
	}

	assert.Equal(t, expectedMetadata, actual.Metadata())
}

// Versions returns the versions of messages in order.
func Versions(messages eventstore.Messages) []eventstore.Version {
	versions := make([]eventstore.Version, 0, len(messages))
	for _, message := range messages {
		versions = append(versions, message.Version())
	}

	return versions
}
