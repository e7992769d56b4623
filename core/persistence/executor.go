package persistence

import (
	"context"
	"errors"

	"github.com/asaidimu/go-querydsl/core/query"
	"github.com/asaidimu/go-querydsl/core/schema"
	"github.com/asaidimu/go-events"
	"go.uber.org/zap"
)

// Executor runs frozen statements through a DatabaseInteractor, publishing
// start, success and failure events for each of them.
type Executor struct {
	interactor DatabaseInteractor
	bus        *events.TypedEventBus[PersistenceEvent]
	logger     *zap.Logger
	txID       *string
}

// NewExecutor creates an executor. A nil bus disables events.
func NewExecutor(interactor DatabaseInteractor, bus *events.TypedEventBus[PersistenceEvent], logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{interactor: interactor, bus: bus, logger: logger}
}

func sourceName(q query.Query) string {
	if len(q.Sources) == 0 || q.Sources[0].Definition == nil {
		return ""
	}
	return q.Sources[0].Definition.Name
}

// trackedRows counts rows as they are read and reports the outcome of the
// query when closed.
type trackedRows struct {
	Rows
	op     *operation
	count  int64
	closed bool
}

func (t *trackedRows) Next() bool {
	if t.Rows.Next() {
		t.count++
		return true
	}
	return false
}

func (t *trackedRows) Close() error {
	err := t.Rows.Close()
	if !t.closed {
		t.closed = true
		count := t.count
		t.op.finish(&count, nil, errors.Join(t.Rows.Err(), err))
	}
	return err
}

// Select opens the rows of q. The query's success event is published when
// the rows are closed.
func (e *Executor) Select(ctx context.Context, q query.Query) (Rows, error) {
	op := startOperation(e.bus, queryEvents, "select", sourceName(q), q.String(), e.txID)
	rows, err := e.interactor.SelectRows(ctx, q)
	if err != nil {
		e.logger.Error("Select failed", zap.String("query", q.String()), zap.Error(err))
		op.finish(nil, nil, err)
		return nil, err
	}
	return &trackedRows{Rows: rows, op: op}, nil
}

// Count returns the number of rows q produces without its window.
func (e *Executor) Count(ctx context.Context, q query.Query) (int64, error) {
	op := startOperation(e.bus, queryEvents, "count", sourceName(q), q.String(), e.txID)
	count, err := e.interactor.CountRows(ctx, q)
	if err != nil {
		e.logger.Error("Count failed", zap.String("query", q.String()), zap.Error(err))
	}
	op.finish(&count, nil, err)
	return count, err
}

// Update performs a bulk update.
func (e *Executor) Update(ctx context.Context, u query.UpdateStatement) (int64, error) {
	op := startOperation(e.bus, updateEvents, "update", u.Entity.Definition.Name, "", e.txID)
	affected, err := e.interactor.UpdateRows(ctx, u)
	if err != nil {
		e.logger.Error("Bulk update failed", zap.String("entity", u.Entity.Definition.Name), zap.Error(err))
	}
	op.finish(&affected, nil, err)
	return affected, err
}

// Delete performs a bulk delete.
func (e *Executor) Delete(ctx context.Context, d query.DeleteStatement) (int64, error) {
	op := startOperation(e.bus, deleteEvents, "delete", d.Entity.Definition.Name, "", e.txID)
	affected, err := e.interactor.DeleteRows(ctx, d)
	if err != nil {
		e.logger.Error("Bulk delete failed", zap.String("entity", d.Entity.Definition.Name), zap.Error(err))
	}
	op.finish(&affected, nil, err)
	return affected, err
}

// Insert validates record against the entity and stores it, returning the
// stored row.
func (e *Executor) Insert(ctx context.Context, entity *schema.EntityDefinition, record schema.Document) (schema.Document, error) {
	op := startOperation(e.bus, insertEvents, "insert", entity.Name, "", e.txID)
	validated, err := schema.NewValidator(entity).Validate(record, false)
	if err != nil {
		op.finish(nil, nil, err)
		return nil, err
	}
	stored, err := e.interactor.InsertDocument(ctx, entity, validated)
	if err != nil {
		e.logger.Error("Insert failed", zap.String("entity", entity.Name), zap.Error(err))
		op.finish(nil, nil, err)
		return nil, err
	}
	one := int64(1)
	op.finish(&one, stored, nil)
	return stored, nil
}
