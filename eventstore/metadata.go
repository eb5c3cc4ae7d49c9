package eventstore

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Fixed columns of every stream table.
const (
	ColEventID   = "event_id"
	ColVersion   = "version"
	ColEventName = "event_name"
	ColPayload   = "payload"
	ColCreatedAt = "created_at"

	// ColAggregateID is the metadata column that scopes versions to an aggregate.
	ColAggregateID = "aggregate_id"
)

var fixedColumns = []string{ColEventID, ColVersion, ColEventName, ColPayload, ColCreatedAt}

var columnNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// MetadataMatcher filters rows by exact equality on metadata columns, all pairs must match.
type MetadataMatcher = map[string]string

// FixedColumns returns the names of the five columns every stream table has.
func FixedColumns() []string {
	return slices.Clone(fixedColumns)
}

// IsFixedColumn reports whether name is one of the fixed columns.
func IsFixedColumn(name string) bool {
	return slices.Contains(fixedColumns, name)
}

// ValidateMetadataKey rejects keys that would collide with a fixed column or are not usable as a column name.
// The collision check ignores case, sqlite and mysql treat "Version" and "version" as the same column.
func ValidateMetadataKey(key string) error {
	if slices.ContainsFunc(fixedColumns, func(column string) bool { return strings.EqualFold(column, key) }) {
		return fmt.Errorf("%w: %s", ErrReservedColumnName, key)
	}

	return ValidateColumnName(key)
}

// ValidateColumnName rejects names that are not plain SQL identifiers.
func ValidateColumnName(name string) error {
	if !columnNameRegex.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidColumnName, name)
	}

	return nil
}

// MetadataKeys returns the sorted keys of metadata.
func MetadataKeys(metadata Metadata) []string {
	keys := make([]string, 0, len(metadata))
	for key := range metadata {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	return keys
}

// MetadataValueToString coerces a metadata value to the string that is stored in its column.
func MetadataValueToString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return FormatCreatedAt(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
