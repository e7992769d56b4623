package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/asaidimu/go-querydsl/core/persistence"
	"github.com/asaidimu/go-querydsl/core/schema"
	"go.uber.org/zap"
)

// DefaultInteractorOptions returns a set of sensible default options for the
// SQLite interactor.
func DefaultInteractorOptions() *persistence.InteractorOptions {
	return &persistence.InteractorOptions{
		IfNotExists:   true, // Prevent errors if a table already exists.
		CreateIndexes: true, // Index reference columns.
	}
}

func (s *SQLiteInteractor) rawTableName(entity *schema.EntityDefinition) string {
	return s.options.TablePrefix + entity.TableName()
}

// CreateEntities creates the table of every registered entity, referenced
// entities first, together with the indexes on their reference columns.
func (s *SQLiteInteractor) CreateEntities(ctx context.Context, registry *schema.Registry) error {
	for _, entity := range registry.Entities() {
		if err := s.createEntity(ctx, entity, registry); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteInteractor) createEntity(ctx context.Context, entity *schema.EntityDefinition, registry *schema.Registry) error {
	if s.options.DropIfExists {
		if err := s.DropEntity(ctx, entity); err != nil {
			return err
		}
	}

	stmts, err := s.CreateTableSQL(entity, registry)
	if err != nil {
		return fmt.Errorf("failed to generate SQL for table %s: %w", entity.Name, err)
	}
	if s.options.CreateIndexes {
		stmts = append(stmts, s.CreateIndexSQL(entity)...)
	}

	for _, stmt := range stmts {
		s.logger.Debug("Executing DDL", zap.String("sql", stmt))
		if _, err := s.runner().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute SQL statement '%s': %w", stmt, err)
		}
	}
	return nil
}

// CreateTableSQL generates the CREATE TABLE statement for an entity. A
// generated identifier becomes an AUTOINCREMENT primary key and every
// reference becomes a foreign key to the identifier of its target, resolved
// through the registry.
func (s *SQLiteInteractor) CreateTableSQL(entity *schema.EntityDefinition, registry *schema.Registry) ([]string, error) {
	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	if s.options.IfNotExists {
		sb.WriteString("IF NOT EXISTS ")
	}
	sb.WriteString(quoteIdentifier(s.rawTableName(entity)) + " (\n")

	var columns []string
	identifier := entity.IdentifierName()
	for _, field := range entity.Fields {
		columnDef, err := s.buildColumnDefinition(entity, field, field.Name == identifier)
		if err != nil {
			return nil, fmt.Errorf("error on field '%s': %w", field.Name, err)
		}
		columns = append(columns, "    "+columnDef)
	}
	for _, field := range entity.References() {
		target, ok := registry.Lookup(field.Reference)
		if !ok {
			return nil, fmt.Errorf("reference '%s' targets unknown entity '%s'", field.Name, field.Reference)
		}
		columns = append(columns, fmt.Sprintf("    FOREIGN KEY (%s) REFERENCES %s (%s)",
			quoteIdentifier(field.ColumnName()),
			quoteIdentifier(s.rawTableName(target)),
			quoteIdentifier(target.IdentifierField().ColumnName()),
		))
	}
	sb.WriteString(strings.Join(columns, ",\n"))
	sb.WriteString("\n);")
	return []string{sb.String()}, nil
}

// buildColumnDefinition constructs the DDL string for a single column.
func (s *SQLiteInteractor) buildColumnDefinition(entity *schema.EntityDefinition, field *schema.FieldDefinition, identifier bool) (string, error) {
	columnType, err := s.GetColumnType(field.Type)
	if err != nil {
		return "", err
	}
	parts := []string{quoteIdentifier(field.ColumnName()), columnType}
	if identifier {
		parts = append(parts, "PRIMARY KEY")
		if entity.Generated {
			parts = append(parts, "AUTOINCREMENT")
		}
		return strings.Join(parts, " "), nil
	}
	if !field.Nullable {
		parts = append(parts, "NOT NULL")
	}
	return strings.Join(parts, " "), nil
}

// GetColumnType maps a schema.FieldType to its corresponding SQLite column type.
func (s *SQLiteInteractor) GetColumnType(fieldType schema.FieldType) (string, error) {
	switch fieldType {
	case schema.FieldTypeString, schema.FieldTypeDateTime:
		return "TEXT", nil
	case schema.FieldTypeNumber:
		return "REAL", nil
	case schema.FieldTypeInteger, schema.FieldTypeReference, schema.FieldTypeBoolean:
		return "INTEGER", nil
	default:
		return "", fmt.Errorf("unsupported column type: %s", fieldType)
	}
}

// CreateIndexSQL generates one index per reference column.
func (s *SQLiteInteractor) CreateIndexSQL(entity *schema.EntityDefinition) []string {
	table := s.rawTableName(entity)
	var stmts []string
	for _, field := range entity.References() {
		name := fmt.Sprintf("idx_%s_%s", table, field.ColumnName())
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s);",
			quoteIdentifier(name), quoteIdentifier(table), quoteIdentifier(field.ColumnName())))
	}
	return stmts
}

// DropEntity drops an entity's table from the database.
func (s *SQLiteInteractor) DropEntity(ctx context.Context, entity *schema.EntityDefinition) error {
	table := quoteIdentifier(s.rawTableName(entity))
	if _, err := s.runner().ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s;", table)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	return nil
}

// EntityExists checks if an entity's table exists in the database.
func (s *SQLiteInteractor) EntityExists(ctx context.Context, entity *schema.EntityDefinition) (bool, error) {
	const stmt = "SELECT name FROM sqlite_master WHERE type='table' AND name = ?;"

	var name string
	err := s.runner().QueryRowContext(ctx, stmt, s.rawTableName(entity)).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
