// Package persistence executes queries built with the query package against a
// DatabaseInteractor and maps their rows back into typed values.
package persistence

import (
	"context"
	"fmt"
	"sync"

	"github.com/asaidimu/go-querydsl/core/query"
	"github.com/asaidimu/go-querydsl/core/schema"
	"github.com/asaidimu/go-events"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type subscriptions struct {
	mu   sync.RWMutex
	subs map[string]*SubscriptionInfo
}

// QueryFactory is the entry point for executing queries. It owns the event
// bus, the optional persistence context and the executor bound to its
// interactor. A QueryFactory is safe for concurrent use as far as its
// interactor is.
type QueryFactory struct {
	interactor  DatabaseInteractor
	executor    *Executor
	bus         *events.TypedEventBus[PersistenceEvent]
	logger      *zap.Logger
	pctx        *PersistenceContext
	contextSize int
	subs        *subscriptions
}

// Option configures a QueryFactory.
type Option func(*QueryFactory)

// WithLogger sets the logger used by the factory and its executor.
func WithLogger(logger *zap.Logger) Option {
	return func(f *QueryFactory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithPersistenceContext enables an identity cache holding at most size
// entities.
func WithPersistenceContext(size int) Option {
	return func(f *QueryFactory) {
		f.contextSize = size
	}
}

// NewQueryFactory creates a factory executing through interactor.
func NewQueryFactory(interactor DatabaseInteractor, opts ...Option) (*QueryFactory, error) {
	if interactor == nil {
		return nil, fmt.Errorf("query factory requires an interactor")
	}
	bus, err := events.NewTypedEventBus[PersistenceEvent](events.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("could not initialize event bus: %w", err)
	}

	f := &QueryFactory{
		interactor: interactor,
		bus:        bus,
		logger:     zap.NewNop(),
		subs:       &subscriptions{subs: make(map[string]*SubscriptionInfo)},
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.contextSize > 0 {
		if f.pctx, err = NewPersistenceContext(f.contextSize, bus); err != nil {
			return nil, err
		}
	}
	f.executor = NewExecutor(interactor, bus, f.logger)
	return f, nil
}

// withInteractor returns a factory sharing the bus and subscriptions of f
// but executing through interactor, with a fresh persistence context.
func (f *QueryFactory) withInteractor(interactor DatabaseInteractor, txID *string) (*QueryFactory, error) {
	child := &QueryFactory{
		interactor:  interactor,
		bus:         f.bus,
		logger:      f.logger,
		contextSize: f.contextSize,
		subs:        f.subs,
	}
	if f.contextSize > 0 {
		pctx, err := NewPersistenceContext(f.contextSize, f.bus)
		if err != nil {
			return nil, err
		}
		child.pctx = pctx
	}
	child.executor = NewExecutor(interactor, f.bus, f.logger)
	child.executor.txID = txID
	return child, nil
}

// Context returns the persistence context, or nil when it is disabled.
func (f *QueryFactory) Context() *PersistenceContext {
	return f.pctx
}

// CreateSchema creates the storage for every entity in the registry.
func (f *QueryFactory) CreateSchema(ctx context.Context, registry *schema.Registry) error {
	if err := registry.CheckReferences(); err != nil {
		return err
	}
	if err := f.interactor.CreateEntities(ctx, registry); err != nil {
		f.logger.Error("Failed to create schema", zap.Error(err))
		return fmt.Errorf("failed to create schema: %w", err)
	}
	f.logger.Info("Schema created", zap.Int("entities", len(registry.Entities())))
	return nil
}

// Insert validates and stores a single record, returning the stored row.
func (f *QueryFactory) Insert(ctx context.Context, entity *schema.EntityDefinition, record schema.Document) (schema.Document, error) {
	if entity == nil {
		return nil, fmt.Errorf("insert requires an entity")
	}
	return f.executor.Insert(ctx, entity, record)
}

// Persist stores record as an instance of the projected entity and returns
// it mapped through the projection. The instance is placed in the
// persistence context.
func Persist[T any](ctx context.Context, f *QueryFactory, p query.EntityProjection[T], record schema.Document) (T, error) {
	var zero T
	if err := p.Err(); err != nil {
		return zero, err
	}
	stored, err := f.Insert(ctx, p.Path().Definition, record)
	if err != nil {
		return zero, err
	}
	row := query.Row{stored}
	value, err := p.Map(row)
	if err != nil {
		return zero, err
	}
	if entity, id, ok := p.EntityKey(row); ok {
		f.pctx.Store(entity, id, value)
	}
	return value, nil
}

// UpdateClause is a bulk update bound to a factory.
type UpdateClause struct {
	f      *QueryFactory
	clause query.UpdateClause
}

// Update starts a bulk update of an entity. Bulk statements bypass the
// persistence context.
func (f *QueryFactory) Update(entity query.Source) UpdateClause {
	return UpdateClause{f: f, clause: query.Update(entity)}
}

func (u UpdateClause) Set(path query.Expression, value any) UpdateClause {
	u.clause = u.clause.Set(path, value)
	return u
}

func (u UpdateClause) SetNull(path query.Expression) UpdateClause {
	u.clause = u.clause.SetNull(path)
	return u
}

func (u UpdateClause) Where(preds ...query.Predicate) UpdateClause {
	u.clause = u.clause.Where(preds...)
	return u
}

// Execute runs the update and returns the number of affected rows.
func (u UpdateClause) Execute(ctx context.Context) (int64, error) {
	stmt, err := u.clause.Build()
	if err != nil {
		return 0, err
	}
	return u.f.executor.Update(ctx, stmt)
}

// DeleteClause is a bulk delete bound to a factory.
type DeleteClause struct {
	f      *QueryFactory
	clause query.DeleteClause
}

// Delete starts a bulk delete of an entity.
func (f *QueryFactory) Delete(entity query.Source) DeleteClause {
	return DeleteClause{f: f, clause: query.Delete(entity)}
}

func (d DeleteClause) Where(preds ...query.Predicate) DeleteClause {
	d.clause = d.clause.Where(preds...)
	return d
}

// Unfiltered allows the delete to run without a predicate.
func (d DeleteClause) Unfiltered() DeleteClause {
	d.clause = d.clause.Unfiltered()
	return d
}

// Execute runs the delete and returns the number of affected rows.
func (d DeleteClause) Execute(ctx context.Context) (int64, error) {
	stmt, err := d.clause.Build()
	if err != nil {
		return 0, err
	}
	return d.f.executor.Delete(ctx, stmt)
}

// RegisterSubscription registers a callback for a specific persistence event. It returns
// a unique ID that can be used to unregister the subscription later.
func (f *QueryFactory) RegisterSubscription(options RegisterSubscriptionOptions) string {
	f.subs.mu.Lock()
	defer f.subs.mu.Unlock()

	unsubscribe := f.bus.Subscribe(string(options.Event), options.Callback)
	id := uuid.New().String()

	f.subs.subs[id] = &SubscriptionInfo{
		Id:          &id,
		Event:       options.Event,
		Unsubscribe: unsubscribe,
		Label:       options.Label,
		Description: options.Description,
	}
	return id
}

// UnregisterSubscription removes a subscription by its ID.
func (f *QueryFactory) UnregisterSubscription(id string) {
	f.subs.mu.Lock()
	defer f.subs.mu.Unlock()

	if info, ok := f.subs.subs[id]; ok {
		info.Unsubscribe()
		delete(f.subs.subs, id)
	}
}

// Subscriptions returns a list of all currently active subscriptions.
func (f *QueryFactory) Subscriptions() []SubscriptionInfo {
	f.subs.mu.RLock()
	defer f.subs.mu.RUnlock()

	out := make([]SubscriptionInfo, 0, len(f.subs.subs))
	for _, sub := range f.subs.subs {
		out = append(out, *sub)
	}
	return out
}
