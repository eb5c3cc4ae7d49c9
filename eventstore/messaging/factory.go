package messaging

import (
	"errors"
	"fmt"
	"sync"

	"github.com/AntonStoeckl/stream-tables-eventstore-go/eventstore"
)

var (
	// ErrUnknownMessageName is returned in strict mode for message names without a registered constructor.
	ErrUnknownMessageName = errors.New("no constructor registered for message name")

	// ErrCreatingMessageFailed is returned when a constructor fails.
	ErrCreatingMessageFailed = errors.New("creating message from data failed")
)

// MessageConstructor builds a concrete Message from stored data.
type MessageConstructor func(data eventstore.MessageData) (eventstore.Message, error)

// RegistryMessageFactory rebuilds Messages based on their message name.
//
// Message names without a registered constructor become a DomainMessage, unless the factory is strict.
type RegistryMessageFactory struct {
	mu           sync.RWMutex
	constructors map[string]MessageConstructor
	strict       bool
}

// NewRegistryMessageFactory creates a lenient RegistryMessageFactory.
func NewRegistryMessageFactory() *RegistryMessageFactory {
	return &RegistryMessageFactory{constructors: make(map[string]MessageConstructor)}
}

// NewStrictRegistryMessageFactory creates a RegistryMessageFactory that fails for unknown message names.
func NewStrictRegistryMessageFactory() *RegistryMessageFactory {
	factory := NewRegistryMessageFactory()
	factory.strict = true

	return factory
}

// Register adds or replaces the constructor for messageName.
func (f *RegistryMessageFactory) Register(messageName string, constructor MessageConstructor) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.constructors[messageName] = constructor
}

// CreateMessageFromData implements eventstore.MessageFactory.
func (f *RegistryMessageFactory) CreateMessageFromData(data eventstore.MessageData) (eventstore.Message, error) {
	f.mu.RLock()
	constructor, ok := f.constructors[data.MessageName]
	f.mu.RUnlock()

	if !ok {
		if f.strict {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMessageName, data.MessageName)
		}

		message, err := DomainMessageFromData(data)
		if err != nil {
			return nil, errors.Join(ErrCreatingMessageFailed, err)
		}

		return message, nil
	}

	message, err := constructor(data)
	if err != nil {
		return nil, errors.Join(ErrCreatingMessageFailed, err)
	}

	return message, nil
}
