package messaging

import (
	"errors"

	"github.com/AntonStoeckl/stream-tables-eventstore-go/eventstore"
)

// ErrNilMessage is returned when a nil Message is converted.
var ErrNilMessage = errors.New("message must not be nil")

// NoOpMessageConverter reads MessageData straight from the Message getters.
type NoOpMessageConverter struct{}

// NewNoOpMessageConverter creates a NoOpMessageConverter.
func NewNoOpMessageConverter() NoOpMessageConverter {
	return NoOpMessageConverter{}
}

// ConvertToMessageData implements eventstore.MessageConverter.
func (NoOpMessageConverter) ConvertToMessageData(message eventstore.Message) (eventstore.MessageData, error) {
	if message == nil {
		return eventstore.MessageData{}, ErrNilMessage
	}

	return eventstore.MessageData{
		UUID:        message.UUID().String(),
		MessageName: message.MessageName(),
		Version:     message.Version(),
		CreatedAt:   message.CreatedAt(),
		Payload:     message.Payload(),
		Metadata:    message.Metadata(),
	}, nil
}
