package persistence

import (
	"context"

	"github.com/asaidimu/go-querydsl/core/query"
	"github.com/asaidimu/go-querydsl/core/schema"
)

// InteractorOptions provides configuration for the interactor.
type InteractorOptions struct {
	// IfNotExists adds IF NOT EXISTS clause to CREATE TABLE statements.
	IfNotExists bool

	// DropIfExists drops the table before creating it.
	DropIfExists bool

	// CreateIndexes creates an index on every reference column along with
	// the table.
	CreateIndexes bool

	// TablePrefix adds a prefix to all table names.
	TablePrefix string

	// NullOrdering places NULL sort keys when an order specifier does not.
	NullOrdering query.NullHandling
}

// Rows iterates over the folded result rows of a select. Rows must be closed;
// while open they may hold the underlying connection.
type Rows interface {
	Next() bool
	Row() query.Row
	Err() error
	Close() error
}

// DatabaseInteractor defines the interface for interacting with the database.
// It can operate in either a non-transactional (default) or transactional mode.
// The transactional methods only become meaningful on an instance returned by
// StartTransaction.
type DatabaseInteractor interface {
	// SelectRows executes a select and returns its rows folded according to
	// the query's projections.
	SelectRows(ctx context.Context, q query.Query) (Rows, error)

	// CountRows returns the number of rows q produces, ignoring its offset
	// and limit.
	CountRows(ctx context.Context, q query.Query) (int64, error)

	UpdateRows(ctx context.Context, u query.UpdateStatement) (int64, error)
	DeleteRows(ctx context.Context, d query.DeleteStatement) (int64, error)

	// InsertDocument stores a validated record and returns the stored row,
	// including any generated identifier.
	InsertDocument(ctx context.Context, entity *schema.EntityDefinition, record schema.Document) (schema.Document, error)

	// CreateEntities generates and executes the DDL for every registered
	// entity, referenced entities first.
	CreateEntities(ctx context.Context, registry *schema.Registry) error

	// DropEntity drops an entity's table if it exists.
	DropEntity(ctx context.Context, entity *schema.EntityDefinition) error

	// EntityExists checks if an entity's table exists.
	EntityExists(ctx context.Context, entity *schema.EntityDefinition) (bool, error)

	// StartTransaction initiates a new database transaction and returns a
	// new DatabaseInteractor scoped to it. The original instance remains
	// non-transactional.
	StartTransaction(ctx context.Context) (DatabaseInteractor, error)

	// Commit commits the transaction. Calling it on a non-transactional
	// interactor is an error.
	Commit(ctx context.Context) error

	// Rollback rolls back the transaction. Calling it on a non-transactional
	// interactor is an error.
	Rollback(ctx context.Context) error
}
