package query

import "github.com/asaidimu/go-querydsl/core/schema"

// Row holds one value per projected expression. Scalar expressions yield
// their normalized value; entity expressions yield a schema.Document keyed by
// field name, or nil when an outer join produced no entity.
type Row []any

// LayoutColumn is one result column.
type LayoutColumn struct {
	Alias  string
	Column string
	Field  string
	Type   schema.FieldType
}

// FetchGroup holds the columns a fetch join appends after its owner.
type FetchGroup struct {
	Field      string
	Identifier string
	Columns    []LayoutColumn
}

// ResultGroup describes the columns produced by one projection.
type ResultGroup struct {
	Expression Expression
	Columns    []LayoutColumn
	Fetched    []FetchGroup
}

// IsEntity reports whether the group folds into a document.
func (g ResultGroup) IsEntity() bool {
	return g.Expression.Type() == schema.FieldTypeEntity
}

// ResultLayout maps the flat column list of a select statement back to the
// projections of the query. Entities expand to their fields in declaration
// order, followed by the columns of each fetch join they own.
type ResultLayout struct {
	Groups []ResultGroup
}

// NewResultLayout computes the layout of a built query.
func NewResultLayout(q Query) *ResultLayout {
	layout := &ResultLayout{Groups: make([]ResultGroup, 0, len(q.Projections))}
	claimed := make(map[int]bool)

	for _, p := range q.Projections {
		e, ok := p.(EntityPath)
		if !ok {
			layout.Groups = append(layout.Groups, ResultGroup{
				Expression: p,
				Columns:    []LayoutColumn{{Field: p.String(), Type: p.Type()}},
			})
			continue
		}

		group := ResultGroup{Expression: p, Columns: entityColumns(e)}
		for i, j := range q.Joins {
			if !j.Fetch || claimed[i] || j.Relation == nil || j.Relation.Alias != e.Alias {
				continue
			}
			claimed[i] = true
			group.Fetched = append(group.Fetched, FetchGroup{
				Field:      j.Relation.Name,
				Identifier: j.Target.Definition.IdentifierName(),
				Columns:    entityColumns(j.Target),
			})
		}
		layout.Groups = append(layout.Groups, group)
	}
	return layout
}

func entityColumns(e EntityPath) []LayoutColumn {
	cols := make([]LayoutColumn, len(e.Definition.Fields))
	for i, f := range e.Definition.Fields {
		cols[i] = LayoutColumn{Alias: e.Alias, Column: f.ColumnName(), Field: f.Name, Type: f.Type}
	}
	return cols
}

// Columns returns every result column in select-list order.
func (l *ResultLayout) Columns() []LayoutColumn {
	var cols []LayoutColumn
	for _, g := range l.Groups {
		cols = append(cols, g.Columns...)
		for _, f := range g.Fetched {
			cols = append(cols, f.Columns...)
		}
	}
	return cols
}

// Types returns the semantic type of every result column in order.
func (l *ResultLayout) Types() []schema.FieldType {
	cols := l.Columns()
	types := make([]schema.FieldType, len(cols))
	for i, c := range cols {
		types[i] = c.Type
	}
	return types
}

// Fold turns a flat row of normalized column values into a Row. A fetched
// association replaces the reference value in its owner's document with the
// associated document; when the outer join found nothing it stays nil.
func (l *ResultLayout) Fold(values []any) Row {
	row := make(Row, len(l.Groups))
	pos := 0
	for i, g := range l.Groups {
		if !g.IsEntity() {
			row[i] = values[pos]
			pos++
			continue
		}

		doc, present := foldDocument(g.Columns, values[pos:])
		pos += len(g.Columns)
		for _, f := range g.Fetched {
			fetched, _ := foldDocument(f.Columns, values[pos:])
			pos += len(f.Columns)
			if doc == nil {
				continue
			}
			if fetched == nil || fetched[f.Identifier] == nil {
				doc[f.Field] = nil
			} else {
				doc[f.Field] = fetched
			}
		}
		if present {
			row[i] = doc
		}
	}
	return row
}

func foldDocument(cols []LayoutColumn, values []any) (schema.Document, bool) {
	doc := make(schema.Document, len(cols))
	present := false
	for i, c := range cols {
		doc[c.Field] = values[i]
		if values[i] != nil {
			present = true
		}
	}
	if !present {
		return nil, false
	}
	return doc, true
}
