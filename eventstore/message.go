package eventstore

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Payload is the deserialized body of a Message.
type Payload = map[string]any

// Metadata holds the additional key/value information of a Message.
// Each key becomes a column of the stream table, values are stored as strings.
type Metadata = map[string]any

// Message is the event object model the EventStore persists.
//
// The EventStore never touches a Message directly, it goes through a MessageConverter on write
// and through a MessageFactory on read.
type Message interface {
	UUID() uuid.UUID
	MessageName() string
	Version() Version
	CreatedAt() time.Time
	Payload() Payload
	Metadata() Metadata
}

// MessageData is the scalar record view of a Message.
type MessageData struct {
	UUID        string
	MessageName string
	Version     Version
	CreatedAt   time.Time
	Payload     Payload
	Metadata    Metadata
}

// MessageConverter turns a Message into MessageData before it is stored.
type MessageConverter interface {
	ConvertToMessageData(message Message) (MessageData, error)
}

// MessageFactory reconstructs a Message from MessageData that was read back from a stream table.
type MessageFactory interface {
	CreateMessageFromData(data MessageData) (Message, error)
}

// PayloadSerializer turns a Payload into the blob stored in the payload column and back.
type PayloadSerializer interface {
	SerializePayload(payload Payload) (string, error)
	UnserializePayload(serialized string) (Payload, error)
}

// ValidateMessageData checks that the data is complete enough to be stored as one row.
func ValidateMessageData(data MessageData) error {
	if data.UUID == "" {
		return errors.Join(ErrInvalidMessageData, errors.New("uuid must not be empty"))
	}

	if _, err := uuid.Parse(data.UUID); err != nil {
		return errors.Join(ErrInvalidMessageData, fmt.Errorf("uuid %q is not valid", data.UUID), err)
	}

	if data.MessageName == "" {
		return errors.Join(ErrInvalidMessageData, errors.New("message name must not be empty"))
	}

	if data.Version == 0 {
		return errors.Join(ErrInvalidMessageData, errors.New("version must be positive"))
	}

	if data.CreatedAt.IsZero() {
		return errors.Join(ErrInvalidMessageData, errors.New("created at must not be zero"))
	}

	for key := range data.Metadata {
		if err := ValidateMetadataKey(key); err != nil {
			return errors.Join(ErrInvalidMessageData, err)
		}
	}

	return nil
}
