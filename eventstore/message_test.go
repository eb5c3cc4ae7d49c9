package eventstore

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func validMessageData() MessageData {
	return MessageData{
		UUID:        uuid.NewString(),
		MessageName: "App.Model.UserWasCreated",
		Version:     1,
		CreatedAt:   time.Now(),
		Payload:     Payload{"name": "X"},
		Metadata:    Metadata{"tag": "person"},
	}
}

func Test_ValidateMessageData(t *testing.T) {
	assert.NoError(t, ValidateMessageData(validMessageData()))
}

func Test_ValidateMessageData_ErrorCases(t *testing.T) {
	tests := []struct {
		name   string
		modify func(data *MessageData)
	}{
		{name: "empty uuid", modify: func(data *MessageData) { data.UUID = "" }},
		{name: "malformed uuid", modify: func(data *MessageData) { data.UUID = "not-a-uuid" }},
		{name: "empty message name", modify: func(data *MessageData) { data.MessageName = "" }},
		{name: "zero version", modify: func(data *MessageData) { data.Version = 0 }},
		{name: "zero created at", modify: func(data *MessageData) { data.CreatedAt = time.Time{} }},
		{name: "reserved metadata key", modify: func(data *MessageData) { data.Metadata["event_id"] = "x" }},
		{name: "invalid metadata key", modify: func(data *MessageData) { data.Metadata["a-b"] = "x" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := validMessageData()
			tt.modify(&data)

			assert.ErrorIs(t, ValidateMessageData(data), ErrInvalidMessageData)
		})
	}
}
