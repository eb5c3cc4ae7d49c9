// Package serializer provides PayloadSerializer implementations for the eventstore.
package serializer

import (
	"errors"

	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/stream-tables-eventstore-go/eventstore"
)

var (
	// ErrSerializingPayloadFailed is returned when a payload can not be encoded.
	ErrSerializingPayloadFailed = errors.New("serializing payload failed")

	// ErrUnserializingPayloadFailed is returned when a stored payload is not a valid JSON object.
	ErrUnserializingPayloadFailed = errors.New("unserializing payload failed")
)

// JSONPayloadSerializer stores payloads as JSON objects.
type JSONPayloadSerializer struct {
	api jsoniter.API
}

// NewJSONPayloadSerializer creates a JSONPayloadSerializer compatible with encoding/json.
func NewJSONPayloadSerializer() JSONPayloadSerializer {
	return JSONPayloadSerializer{api: jsoniter.ConfigCompatibleWithStandardLibrary}
}

// SerializePayload implements eventstore.PayloadSerializer.
func (s JSONPayloadSerializer) SerializePayload(payload eventstore.Payload) (string, error) {
	if payload == nil {
		payload = eventstore.Payload{}
	}

	serialized, err := s.api.MarshalToString(payload)
	if err != nil {
		return "", errors.Join(ErrSerializingPayloadFailed, err)
	}

	return serialized, nil
}

// UnserializePayload implements eventstore.PayloadSerializer.
func (s JSONPayloadSerializer) UnserializePayload(serialized string) (eventstore.Payload, error) {
	payload := eventstore.Payload{}

	if err := s.api.UnmarshalFromString(serialized, &payload); err != nil {
		return nil, errors.Join(ErrUnserializingPayloadFailed, err)
	}

	return payload, nil
}
