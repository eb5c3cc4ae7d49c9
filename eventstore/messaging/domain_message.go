package messaging

import (
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/stream-tables-eventstore-go/eventstore"
)

// DomainMessage is an immutable, generic implementation of eventstore.Message.
type DomainMessage struct {
	uuid        uuid.UUID
	messageName string
	version     eventstore.Version
	createdAt   time.Time
	payload     eventstore.Payload
	metadata    eventstore.Metadata
}

// BuildDomainMessage creates a DomainMessage with a new UUID (v7) and the current time as created at.
func BuildDomainMessage(messageName string, payload eventstore.Payload, version eventstore.Version) DomainMessage {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	return DomainMessage{
		uuid:        id,
		messageName: messageName,
		version:     version,
		createdAt:   time.Now().UTC(),
		payload:     clonePayload(payload),
		metadata:    eventstore.Metadata{},
	}
}

// DomainMessageFromData rebuilds a DomainMessage from stored MessageData.
func DomainMessageFromData(data eventstore.MessageData) (DomainMessage, error) {
	id, err := uuid.Parse(data.UUID)
	if err != nil {
		return DomainMessage{}, err
	}

	return DomainMessage{
		uuid:        id,
		messageName: data.MessageName,
		version:     data.Version,
		createdAt:   data.CreatedAt,
		payload:     clonePayload(data.Payload),
		metadata:    cloneMetadata(data.Metadata),
	}, nil
}

func (m DomainMessage) UUID() uuid.UUID {
	return m.uuid
}

func (m DomainMessage) MessageName() string {
	return m.messageName
}

func (m DomainMessage) Version() eventstore.Version {
	return m.version
}

func (m DomainMessage) CreatedAt() time.Time {
	return m.createdAt
}

func (m DomainMessage) Payload() eventstore.Payload {
	return clonePayload(m.payload)
}

func (m DomainMessage) Metadata() eventstore.Metadata {
	return cloneMetadata(m.metadata)
}

// WithUUID returns a copy with the given UUID.
func (m DomainMessage) WithUUID(id uuid.UUID) DomainMessage {
	m.uuid = id
	return m
}

// WithVersion returns a copy with the given version.
func (m DomainMessage) WithVersion(version eventstore.Version) DomainMessage {
	m.version = version
	return m
}

// WithCreatedAt returns a copy with the given created at time.
func (m DomainMessage) WithCreatedAt(createdAt time.Time) DomainMessage {
	m.createdAt = createdAt
	return m
}

// WithAddedMetadata returns a copy with one more metadata entry.
func (m DomainMessage) WithAddedMetadata(key string, value any) DomainMessage {
	m.metadata = cloneMetadata(m.metadata)
	m.metadata[key] = value

	return m
}

func clonePayload(payload eventstore.Payload) eventstore.Payload {
	if payload == nil {
		return eventstore.Payload{}
	}

	return maps.Clone(payload)
}

func cloneMetadata(metadata eventstore.Metadata) eventstore.Metadata {
	if metadata == nil {
		return eventstore.Metadata{}
	}

	return maps.Clone(metadata)
}
