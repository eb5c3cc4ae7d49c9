package eventstore

import (
	"regexp"
	"slices"
)

var constraintNameRegex = regexp.MustCompile(`[^A-Za-z0-9_]`)

// ColumnType is the semantic type of a stream table column.
type ColumnType int

const (
	// ColumnTypeIdentifier is a fixed-length string holding a UUID.
	ColumnTypeIdentifier ColumnType = iota
	ColumnTypeInteger
	// ColumnTypeString is a bounded string.
	ColumnTypeString
	// ColumnTypeText is an unbounded string.
	ColumnTypeText
	// ColumnTypeTimestamp is a bounded string holding a value encoded with CreatedAtLayout.
	ColumnTypeTimestamp
)

const (
	IdentifierLength = 36
	StringLength     = 100
	TimestampLength  = 50
)

func (ct ColumnType) String() string {
	switch ct {
	case ColumnTypeIdentifier:
		return "identifier"
	case ColumnTypeInteger:
		return "integer"
	case ColumnTypeString:
		return "string"
	case ColumnTypeText:
		return "text"
	case ColumnTypeTimestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// Length returns the maximum length of bounded column types, 0 for unbounded ones.
func (ct ColumnType) Length() int {
	switch ct {
	case ColumnTypeIdentifier:
		return IdentifierLength
	case ColumnTypeString:
		return StringLength
	case ColumnTypeTimestamp:
		return TimestampLength
	default:
		return 0
	}
}

// Column is one column of a TableSchema.
type Column struct {
	Name string
	Type ColumnType
}

// ConstraintKind distinguishes primary key and unique constraints.
type ConstraintKind int

const (
	ConstraintPrimaryKey ConstraintKind = iota
	ConstraintUnique
)

// Constraint is a table level constraint over one or more columns.
type Constraint struct {
	Kind    ConstraintKind
	Name    string
	Columns []string
}

// Index is a non-unique index that backs an ordering.
type Index struct {
	Name    string
	Columns []string
}

// TableSchema describes the table of one stream. It is derived, never persisted.
type TableSchema struct {
	TableName   string
	Columns     []Column
	Constraints []Constraint
	Indexes     []Index
}

// HasColumn reports whether the schema has a column with the given name.
func (ts TableSchema) HasColumn(name string) bool {
	return slices.ContainsFunc(ts.Columns, func(c Column) bool { return c.Name == name })
}

// MetadataColumns returns the names of the dynamic columns in schema order.
func (ts TableSchema) MetadataColumns() []string {
	names := make([]string, 0, len(ts.Columns))
	for _, column := range ts.Columns {
		if !IsFixedColumn(column.Name) {
			names = append(names, column.Name)
		}
	}

	return names
}

// DeriveTableSchema builds the TableSchema for tableName from the metadata keys of a representative event.
//
// The fixed columns come first, followed by one bounded string column per metadata key in sorted order.
// event_id is the primary key. When an aggregate_id column exists, (aggregate_id, version) is unique.
func DeriveTableSchema(tableName string, metadataKeys []string) (TableSchema, error) {
	if tableName == "" {
		return TableSchema{}, ErrEmptyTableName
	}

	keys := slices.Clone(metadataKeys)
	slices.Sort(keys)
	keys = slices.Compact(keys)

	for _, key := range keys {
		if err := ValidateMetadataKey(key); err != nil {
			return TableSchema{}, err
		}
	}

	schema := TableSchema{
		TableName: tableName,
		Columns: []Column{
			{Name: ColEventID, Type: ColumnTypeIdentifier},
			{Name: ColVersion, Type: ColumnTypeInteger},
			{Name: ColEventName, Type: ColumnTypeString},
			{Name: ColPayload, Type: ColumnTypeText},
			{Name: ColCreatedAt, Type: ColumnTypeTimestamp},
		},
	}

	for _, key := range keys {
		schema.Columns = append(schema.Columns, Column{Name: key, Type: ColumnTypeString})
	}

	nameBase := constraintNameRegex.ReplaceAllString(tableName, "_")

	schema.Constraints = append(schema.Constraints, Constraint{
		Kind:    ConstraintPrimaryKey,
		Name:    nameBase + "_pkey",
		Columns: []string{ColEventID},
	})

	if schema.HasColumn(ColAggregateID) {
		schema.Constraints = append(schema.Constraints, Constraint{
			Kind:    ConstraintUnique,
			Name:    nameBase + "_aggregate_id_version_key",
			Columns: []string{ColAggregateID, ColVersion},
		})
	}

	schema.Indexes = append(schema.Indexes, Index{
		Name:    nameBase + "_created_at_version_idx",
		Columns: []string{ColCreatedAt, ColVersion},
	})

	return schema, nil
}
