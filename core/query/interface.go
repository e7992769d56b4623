package query

import (
	"github.com/asaidimu/go-querydsl/core/schema"
)

// QueryGenerator defines the interface for generating database-specific
// statements from frozen queries. Each implementation translates the
// dialect-independent descriptors of this package into one SQL dialect and
// returns the statement together with its positional parameters.
type QueryGenerator interface {
	// GenerateSelectSQL renders a select statement and the layout describing
	// how its result columns fold back into projection values.
	GenerateSelectSQL(q Query) (string, []any, *ResultLayout, error)

	// GenerateCountSQL renders a statement returning the number of rows q
	// would produce without its offset and limit.
	GenerateCountSQL(q Query) (string, []any, error)

	// GenerateUpdateSQL renders a bulk update.
	GenerateUpdateSQL(u UpdateStatement) (string, []any, error)

	// GenerateDeleteSQL renders a bulk delete.
	GenerateDeleteSQL(d DeleteStatement) (string, []any, error)

	// GenerateInsertSQL renders the insert of a single validated record,
	// returning the stored row.
	GenerateInsertSQL(entity *schema.EntityDefinition, record schema.Document) (string, []any, error)
}
