package sqlengine

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/AntonStoeckl/stream-tables-eventstore-go/eventstore"
	"github.com/AntonStoeckl/stream-tables-eventstore-go/eventstore/sqlengine/internal/adapters"
)

// storedRow maps the column names of a fetched row to the raw driver values.
type storedRow map[string]any

func scanRow(rows adapters.DBRows, columns []string) (storedRow, error) {
	values, err := rows.Values()
	if err != nil {
		return nil, errors.Join(eventstore.ErrScanningDBRowFailed, err)
	}

	if len(values) != len(columns) {
		return nil, fmt.Errorf("%w: got %d values for %d columns", eventstore.ErrScanningDBRowFailed, len(values), len(columns))
	}

	row := make(storedRow, len(columns))
	for i, column := range columns {
		row[column] = values[i]
	}

	return row, nil
}

// decodeRow turns a stored row into a Message.
// Columns other than the fixed ones become metadata, NULL columns are left out.
func (es *EventStore) decodeRow(row storedRow) (eventstore.Message, error) {
	eventID, err := requiredString(row, eventstore.ColEventID)
	if err != nil {
		return nil, err
	}

	eventName, err := requiredString(row, eventstore.ColEventName)
	if err != nil {
		return nil, err
	}

	serializedPayload, err := requiredString(row, eventstore.ColPayload)
	if err != nil {
		return nil, err
	}

	encodedCreatedAt, err := requiredString(row, eventstore.ColCreatedAt)
	if err != nil {
		return nil, err
	}

	version, err := requiredVersion(row)
	if err != nil {
		return nil, err
	}

	createdAt, err := eventstore.ParseCreatedAt(encodedCreatedAt)
	if err != nil {
		return nil, err
	}

	payload, err := es.payloadSerializer.UnserializePayload(serializedPayload)
	if err != nil {
		return nil, errors.Join(eventstore.ErrDecodingRowFailed, err)
	}

	metadata := make(eventstore.Metadata)
	for column, value := range row {
		if eventstore.IsFixedColumn(column) || value == nil {
			continue
		}

		if s, ok := stringValue(value); ok {
			metadata[column] = s
		}
	}

	message, err := es.messageFactory.CreateMessageFromData(eventstore.MessageData{
		UUID:        eventID,
		MessageName: eventName,
		Version:     version,
		CreatedAt:   createdAt,
		Payload:     payload,
		Metadata:    metadata,
	})
	if err != nil {
		return nil, errors.Join(eventstore.ErrDecodingRowFailed, err)
	}

	return message, nil
}

func requiredString(row storedRow, column string) (string, error) {
	value, ok := row[column]
	if !ok || value == nil {
		return "", fmt.Errorf("%w: column %q is missing", eventstore.ErrDecodingRowFailed, column)
	}

	s, ok := stringValue(value)
	if !ok {
		return "", fmt.Errorf("%w: column %q has unexpected type %T", eventstore.ErrDecodingRowFailed, column, value)
	}

	return s, nil
}

func requiredVersion(row storedRow) (eventstore.Version, error) {
	value, ok := row[eventstore.ColVersion]
	if !ok || value == nil {
		return 0, fmt.Errorf("%w: column %q is missing", eventstore.ErrDecodingRowFailed, eventstore.ColVersion)
	}

	switch v := value.(type) {
	case int64:
		if v >= 0 {
			return eventstore.Version(v), nil
		}
	case int32:
		if v >= 0 {
			return eventstore.Version(v), nil
		}
	case int:
		if v >= 0 {
			return eventstore.Version(v), nil
		}
	case uint64:
		return eventstore.Version(v), nil
	case string, []byte:
		s, _ := stringValue(v)
		parsed, err := strconv.ParseUint(s, 10, 64)
		if err == nil {
			return eventstore.Version(parsed), nil
		}
	}

	return 0, fmt.Errorf("%w: column %q holds %v", eventstore.ErrDecodingRowFailed, eventstore.ColVersion, value)
}

// stringValue normalizes what drivers return for character columns.
func stringValue(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int:
		return strconv.Itoa(v), true
	default:
		return "", false
	}
}
