// Package sqlite provides a concrete implementation of the persistence.DatabaseInteractor
// interface for SQLite databases. It handles the specifics of connecting to, querying,
// and managing a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/asaidimu/go-querydsl/core/persistence"
	"github.com/asaidimu/go-querydsl/core/query"
	"github.com/asaidimu/go-querydsl/core/schema"
	"go.uber.org/zap"
)

// dbRunner is an interface that abstracts the common methods of *sql.DB and *sql.Tx,
// allowing for the same code to be used for both transactional and non-transactional
// database operations.
type dbRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteInteractor is a concrete implementation of the persistence.DatabaseInteractor
// interface for SQLite. It renders statements with a query.QueryGenerator, a
// SqliteQuery unless replaced, and executes them against the database in
// either transactional or non-transactional mode.
type SQLiteInteractor struct {
	db        *sql.DB
	tx        *sql.Tx
	generator query.QueryGenerator
	logger    *zap.Logger
	options   *persistence.InteractorOptions
}

// Ensure SQLiteInteractor implements the persistence.DatabaseInteractor interface.
var _ persistence.DatabaseInteractor = (*SQLiteInteractor)(nil)

// NewSQLiteInteractor creates a new instance of the SQLiteInteractor. It can be
// configured to operate in transactional mode by providing a non-nil *sql.Tx.
func NewSQLiteInteractor(db *sql.DB, logger *zap.Logger, options *persistence.InteractorOptions, tx *sql.Tx) *SQLiteInteractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options == nil {
		options = DefaultInteractorOptions()
	}
	queryOpts := []QueryOption{WithTablePrefix(options.TablePrefix)}
	if options.NullOrdering != query.NullHandlingDefault {
		queryOpts = append(queryOpts, WithNullOrdering(options.NullOrdering))
	}
	return &SQLiteInteractor{
		db:        db,
		tx:        tx,
		options:   options,
		generator: NewSqliteQuery(queryOpts...),
		logger:    logger,
	}
}

// WithGenerator returns a copy of the interactor that renders statements with
// g. Transactions started from the copy keep using g.
func (i *SQLiteInteractor) WithGenerator(g query.QueryGenerator) *SQLiteInteractor {
	c := *i
	c.generator = g
	return &c
}

// runner returns the appropriate dbRunner for the current context, either the
// database connection pool or the active transaction.
func (i *SQLiteInteractor) runner() dbRunner {
	if i.tx != nil {
		return i.tx
	}
	return i.db
}

// normalize converts a raw driver value into the canonical Go value of a
// semantic type: int64, float64, bool, string or UTC time.Time.
func normalize(value any, fieldType schema.FieldType) (any, error) {
	if value == nil {
		return nil, nil
	}
	if b, ok := value.([]byte); ok {
		value = string(b)
	}

	switch fieldType {
	case schema.FieldTypeBoolean:
		switch v := value.(type) {
		case int64:
			return v != 0, nil
		case bool:
			return v, nil
		}
	case schema.FieldTypeInteger, schema.FieldTypeReference:
		switch v := value.(type) {
		case int64:
			return v, nil
		case float64:
			return int64(v), nil
		}
	case schema.FieldTypeNumber:
		switch v := value.(type) {
		case float64:
			return v, nil
		case int64:
			return float64(v), nil
		}
	case schema.FieldTypeString:
		if s, ok := value.(string); ok {
			return s, nil
		}
	case schema.FieldTypeDateTime:
		switch v := value.(type) {
		case time.Time:
			return v.UTC(), nil
		case string:
			if t, err := time.Parse(DateTimeLayout, v); err == nil {
				return t, nil
			}
			t, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				return nil, fmt.Errorf("invalid datetime value %q: %w", v, err)
			}
			return t.UTC(), nil
		}
	default:
		return value, nil
	}
	return nil, fmt.Errorf("cannot read %T as %s", value, fieldType)
}

// rowIterator folds scanned rows into projection values as they are read.
type rowIterator struct {
	rows    *sql.Rows
	layout  *query.ResultLayout
	types   []schema.FieldType
	current query.Row
	err     error
}

func (it *rowIterator) Next() bool {
	if it.err != nil || !it.rows.Next() {
		return false
	}
	values := make([]any, len(it.types))
	scanArgs := make([]any, len(values))
	for i := range values {
		scanArgs[i] = &values[i]
	}
	if err := it.rows.Scan(scanArgs...); err != nil {
		it.err = fmt.Errorf("failed to scan row: %w", err)
		return false
	}
	for i, t := range it.types {
		v, err := normalize(values[i], t)
		if err != nil {
			it.err = fmt.Errorf("column %d: %w", i, err)
			return false
		}
		values[i] = v
	}
	it.current = it.layout.Fold(values)
	return true
}

func (it *rowIterator) Row() query.Row { return it.current }

func (it *rowIterator) Err() error {
	if it.err != nil {
		return it.err
	}
	if err := it.rows.Err(); err != nil {
		return fmt.Errorf("error after scanning rows: %w", err)
	}
	return nil
}

func (it *rowIterator) Close() error { return it.rows.Close() }

// SelectRows executes a SELECT query against the database.
func (i *SQLiteInteractor) SelectRows(ctx context.Context, q query.Query) (persistence.Rows, error) {
	sqlQuery, queryParams, layout, err := i.generator.GenerateSelectSQL(q)
	if err != nil {
		return nil, fmt.Errorf("failed to generate SQL query: %w", err)
	}

	i.logger.Debug("Executing SQL SELECT", zap.String("sql", sqlQuery), zap.Any("params", queryParams))

	rows, err := i.runner().QueryContext(ctx, sqlQuery, queryParams...)
	if err != nil {
		i.logger.Error("Failed to execute SELECT query", zap.Error(err), zap.String("sql", sqlQuery))
		return nil, fmt.Errorf("failed to execute SELECT query: %w", err)
	}
	return &rowIterator{rows: rows, layout: layout, types: layout.Types()}, nil
}

// CountRows executes the count form of a SELECT query.
func (i *SQLiteInteractor) CountRows(ctx context.Context, q query.Query) (int64, error) {
	sqlQuery, queryParams, err := i.generator.GenerateCountSQL(q)
	if err != nil {
		return 0, fmt.Errorf("failed to generate SQL COUNT query: %w", err)
	}

	i.logger.Debug("Executing SQL COUNT", zap.String("sql", sqlQuery), zap.Any("params", queryParams))

	var count int64
	if err := i.runner().QueryRowContext(ctx, sqlQuery, queryParams...).Scan(&count); err != nil {
		i.logger.Error("Failed to execute COUNT query", zap.Error(err), zap.String("sql", sqlQuery))
		return 0, fmt.Errorf("failed to execute COUNT query: %w", err)
	}
	return count, nil
}

// UpdateRows executes a bulk UPDATE against the database.
func (i *SQLiteInteractor) UpdateRows(ctx context.Context, u query.UpdateStatement) (int64, error) {
	sqlQuery, queryParams, err := i.generator.GenerateUpdateSQL(u)
	if err != nil {
		return 0, fmt.Errorf("failed to generate SQL UPDATE query: %w", err)
	}

	i.logger.Debug("Executing SQL UPDATE", zap.String("sql", sqlQuery), zap.Any("params", queryParams))

	result, err := i.runner().ExecContext(ctx, sqlQuery, queryParams...)
	if err != nil {
		i.logger.Error("Failed to execute UPDATE query", zap.Error(err), zap.String("sql", sqlQuery))
		return 0, fmt.Errorf("failed to execute UPDATE query: %w", err)
	}
	return result.RowsAffected()
}

// DeleteRows executes a bulk DELETE against the database.
func (i *SQLiteInteractor) DeleteRows(ctx context.Context, d query.DeleteStatement) (int64, error) {
	sqlQuery, queryParams, err := i.generator.GenerateDeleteSQL(d)
	if err != nil {
		return 0, fmt.Errorf("failed to generate DELETE SQL: %w", err)
	}

	i.logger.Debug("Executing SQL DELETE", zap.String("sql", sqlQuery), zap.Any("params", queryParams))

	result, err := i.runner().ExecContext(ctx, sqlQuery, queryParams...)
	if err != nil {
		i.logger.Error("Failed to execute DELETE query", zap.Error(err), zap.String("sql", sqlQuery))
		return 0, fmt.Errorf("failed to execute DELETE query: %w", err)
	}
	return result.RowsAffected()
}

// InsertDocument executes an INSERT ... RETURNING for one record.
func (i *SQLiteInteractor) InsertDocument(ctx context.Context, entity *schema.EntityDefinition, record schema.Document) (schema.Document, error) {
	sqlQuery, queryParams, err := i.generator.GenerateInsertSQL(entity, record)
	if err != nil {
		return nil, fmt.Errorf("failed to generate INSERT SQL: %w", err)
	}

	i.logger.Debug("Executing SQL INSERT with RETURNING clause", zap.String("sql", sqlQuery), zap.Any("params", queryParams))

	values := make([]any, len(entity.Fields))
	scanArgs := make([]any, len(values))
	for idx := range values {
		scanArgs[idx] = &values[idx]
	}
	if err := i.runner().QueryRowContext(ctx, sqlQuery, queryParams...).Scan(scanArgs...); err != nil {
		i.logger.Error("Failed to execute INSERT ... RETURNING query", zap.Error(err), zap.String("sql", sqlQuery))
		return nil, fmt.Errorf("failed to execute INSERT ... RETURNING query: %w", err)
	}

	doc := make(schema.Document, len(entity.Fields))
	for idx, f := range entity.Fields {
		v, err := normalize(values[idx], f.Type)
		if err != nil {
			return nil, fmt.Errorf("field '%s': %w", f.Name, err)
		}
		doc[f.Name] = v
	}
	return doc, nil
}

// StartTransaction begins a new database transaction and returns a new SQLiteInteractor
// that is scoped to that transaction.
func (i *SQLiteInteractor) StartTransaction(ctx context.Context) (persistence.DatabaseInteractor, error) {
	if i.tx != nil {
		return nil, fmt.Errorf("cannot start a new transaction from an existing transactional interactor")
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	i.logger.Debug("Transaction initiated, returning new transactional interactor")
	return NewSQLiteInteractor(i.db, i.logger, i.options, tx).WithGenerator(i.generator), nil
}

// Commit commits the current transaction.
func (i *SQLiteInteractor) Commit(ctx context.Context) error {
	if i.tx == nil {
		return fmt.Errorf("commit not applicable: not in a transactional context")
	}
	i.logger.Debug("Committing transaction")
	return i.tx.Commit()
}

// Rollback rolls back the current transaction.
func (i *SQLiteInteractor) Rollback(ctx context.Context) error {
	if i.tx == nil {
		return fmt.Errorf("rollback not applicable: not in a transactional context")
	}
	i.logger.Debug("Rolling back transaction")
	return i.tx.Rollback()
}
