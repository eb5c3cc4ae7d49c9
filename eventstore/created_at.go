package eventstore

import (
	"errors"
	"fmt"
	"time"
)

// CreatedAtLayout is the fixed-width encoding of the created_at column.
// Lexical order of encoded values equals chronological order, which the replay ordering relies on.
const CreatedAtLayout = "2006-01-02T15:04:05.000000"

// FormatCreatedAt encodes t in UTC with microsecond precision.
func FormatCreatedAt(t time.Time) string {
	return t.UTC().Format(CreatedAtLayout)
}

// ParseCreatedAt decodes a value written by FormatCreatedAt.
func ParseCreatedAt(encoded string) (time.Time, error) {
	t, err := time.ParseInLocation(CreatedAtLayout, encoded, time.UTC)
	if err != nil {
		return time.Time{}, errors.Join(ErrDecodingRowFailed, fmt.Errorf("malformed created_at %q", encoded), err)
	}

	return t, nil
}
