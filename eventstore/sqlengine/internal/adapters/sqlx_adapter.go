package adapters

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// SQLXAdapter implements DBAdapter for sqlx.DB
type SQLXAdapter struct {
	db *sqlx.DB
}

// NewSQLXAdapter creates a new SQLX adapter
func NewSQLXAdapter(db *sqlx.DB) *SQLXAdapter {
	return &SQLXAdapter{db: db}
}

// Query executes a query using the sqlx.DB and returns wrapped rows.
func (s *SQLXAdapter) Query(ctx context.Context, query string) (DBRows, error) {
	rows, err := s.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}

	return &sqlxRows{rows: rows}, nil
}

// Exec executes a statement using the sqlx.DB and returns wrapped result.
func (s *SQLXAdapter) Exec(ctx context.Context, query string) (DBResult, error) {
	result, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return nil, err
	}

	return &stdResult{result: result}, nil
}

// Begin starts a transaction.
func (s *SQLXAdapter) Begin(ctx context.Context) (DBTx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}

	return &sqlxTx{tx: tx}, nil
}

// sqlxRows wraps sqlx.Rows to implement the DBRows interface.
type sqlxRows struct {
	rows *sqlx.Rows
}

// Next advances to the next row.
func (s *sqlxRows) Next() bool {
	return s.rows.Next()
}

// Columns returns the column names of the result set.
func (s *sqlxRows) Columns() ([]string, error) {
	return s.rows.Columns()
}

// Values scans the current row into driver values, one per column.
func (s *sqlxRows) Values() ([]any, error) {
	return s.rows.SliceScan()
}

// Err returns the error, if any, that was encountered during iteration.
func (s *sqlxRows) Err() error {
	return s.rows.Err()
}

// Close closes the rows iterator.
func (s *sqlxRows) Close() error {
	return s.rows.Close()
}

// sqlxTx wraps sqlx.Tx to implement the DBTx interface.
type sqlxTx struct {
	tx *sqlx.Tx
}

// Query executes a query inside the transaction.
func (s *sqlxTx) Query(ctx context.Context, query string) (DBRows, error) {
	rows, err := s.tx.QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}

	return &sqlxRows{rows: rows}, nil
}

// Exec executes a statement inside the transaction.
func (s *sqlxTx) Exec(ctx context.Context, query string) (DBResult, error) {
	result, err := s.tx.ExecContext(ctx, query)
	if err != nil {
		return nil, err
	}

	return &stdResult{result: result}, nil
}

// Commit commits the transaction.
func (s *sqlxTx) Commit(_ context.Context) error {
	return s.tx.Commit()
}

// Rollback aborts the transaction.
func (s *sqlxTx) Rollback(_ context.Context) error {
	return s.tx.Rollback()
}
