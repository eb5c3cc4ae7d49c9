package sqlengine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AntonStoeckl/stream-tables-eventstore-go/eventstore"
)

// SchemaSQLFor returns the DDL statements CreateSchemaFor would execute, without touching the database.
func (es *EventStore) SchemaSQLFor(streamName eventstore.StreamName, metadataKeys []string) ([]string, error) {
	schema, err := eventstore.DeriveTableSchema(es.TableFor(streamName), metadataKeys)
	if err != nil {
		return nil, err
	}

	return renderSchemaSQL(es.dialect, schema), nil
}

// CreateSchemaFor creates the table of streamName with one column per metadata key.
func (es *EventStore) CreateSchemaFor(ctx context.Context, streamName eventstore.StreamName, metadataKeys []string) error {
	table := es.TableFor(streamName)
	ctx, metrics := es.observeOperation(ctx, operationSchema, table)

	statements, err := es.SchemaSQLFor(streamName, metadataKeys)
	if err != nil {
		metrics.recordError(errorTypeValidation)
		es.logErrorContext(ctx, logMsgOperation+logActionSchema, err, logAttrStreamName, streamName.String())
		return err
	}

	for _, statement := range statements {
		start := time.Now()

		if _, execErr := es.executor().Exec(ctx, statement); execErr != nil {
			metrics.recordError(errorTypeDatabaseExec)
			es.logErrorContext(ctx, logMsgSchemaExecFailed, execErr, logAttrQuery, statement)
			return errors.Join(eventstore.ErrCreatingSchemaFailed, execErr)
		}

		es.logQueryWithDuration(ctx, statement, logActionSchema, time.Since(start))
	}

	metrics.recordSuccess(0)
	es.logOperation(
		ctx,
		logActionSchema,
		logAttrStreamName, streamName.String(),
		logAttrTableName, table,
		logAttrDurationMS, es.toMilliseconds(metrics.elapsed()),
	)

	return nil
}

func renderSchemaSQL(dialect Dialect, schema eventstore.TableSchema) []string {
	definitions := make([]string, 0, len(schema.Columns)+len(schema.Constraints))

	for _, column := range schema.Columns {
		definitions = append(definitions, renderColumn(dialect, column))
	}

	for _, constraint := range schema.Constraints {
		definitions = append(definitions, renderConstraint(dialect, constraint))
	}

	statements := []string{
		fmt.Sprintf(
			"CREATE TABLE %s (%s)",
			dialect.quoteIdentifier(schema.TableName),
			strings.Join(definitions, ", "),
		),
	}

	for _, index := range schema.Indexes {
		statements = append(statements, fmt.Sprintf(
			"CREATE INDEX %s ON %s (%s)",
			dialect.quoteIdentifier(index.Name),
			dialect.quoteIdentifier(schema.TableName),
			quoteColumns(dialect, index.Columns),
		))
	}

	return statements
}

func renderColumn(dialect Dialect, column eventstore.Column) string {
	name := dialect.quoteIdentifier(column.Name)

	switch column.Type {
	case eventstore.ColumnTypeInteger:
		return name + " INTEGER NOT NULL"
	case eventstore.ColumnTypeText:
		return name + " TEXT NOT NULL"
	case eventstore.ColumnTypeString:
		if !eventstore.IsFixedColumn(column.Name) {
			// metadata columns stay nullable, events may omit a key
			return fmt.Sprintf("%s VARCHAR(%d)", name, column.Type.Length())
		}

		return fmt.Sprintf("%s VARCHAR(%d) NOT NULL", name, column.Type.Length())
	default:
		return fmt.Sprintf("%s VARCHAR(%d) NOT NULL", name, column.Type.Length())
	}
}

func renderConstraint(dialect Dialect, constraint eventstore.Constraint) string {
	kind := "UNIQUE"
	if constraint.Kind == eventstore.ConstraintPrimaryKey {
		kind = "PRIMARY KEY"
	}

	return fmt.Sprintf(
		"CONSTRAINT %s %s (%s)",
		dialect.quoteIdentifier(constraint.Name),
		kind,
		quoteColumns(dialect, constraint.Columns),
	)
}

func quoteColumns(dialect Dialect, columns []string) string {
	quoted := make([]string, len(columns))
	for i, column := range columns {
		quoted[i] = dialect.quoteIdentifier(column)
	}

	return strings.Join(quoted, ", ")
}
