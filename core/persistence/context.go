package persistence

import (
	"fmt"

	"github.com/asaidimu/go-events"
	lru "github.com/hashicorp/golang-lru/v2"
)

type contextKey struct {
	entity string
	id     any
}

// PersistenceContext is an identity cache of materialized entities keyed by
// entity name and identifier. While an entity is cached, entity projections
// return the cached instance instead of the freshly read row, so bulk
// statements leave it stale until it is invalidated or the context cleared.
//
// A nil *PersistenceContext is valid and caches nothing.
type PersistenceContext struct {
	cache *lru.Cache[contextKey, any]
	bus   *events.TypedEventBus[PersistenceEvent]
}

// NewPersistenceContext creates a context holding at most size entities.
func NewPersistenceContext(size int, bus *events.TypedEventBus[PersistenceEvent]) (*PersistenceContext, error) {
	cache, err := lru.New[contextKey, any](size)
	if err != nil {
		return nil, fmt.Errorf("could not create persistence context: %w", err)
	}
	return &PersistenceContext{cache: cache, bus: bus}, nil
}

// Lookup returns the cached instance of an entity.
func (c *PersistenceContext) Lookup(entity string, id any) (any, bool) {
	if c == nil || id == nil {
		return nil, false
	}
	return c.cache.Get(contextKey{entity, id})
}

// Store caches an instance, replacing any previous one.
func (c *PersistenceContext) Store(entity string, id any, value any) {
	if c == nil || id == nil {
		return
	}
	c.cache.Add(contextKey{entity, id}, value)
}

// Invalidate drops a single cached instance.
func (c *PersistenceContext) Invalidate(entity string, id any) {
	if c == nil {
		return
	}
	c.cache.Remove(contextKey{entity, id})
}

// InvalidateEntity drops every cached instance of an entity.
func (c *PersistenceContext) InvalidateEntity(entity string) {
	if c == nil {
		return
	}
	for _, key := range c.cache.Keys() {
		if key.entity == entity {
			c.cache.Remove(key)
		}
	}
}

// Clear empties the context.
func (c *PersistenceContext) Clear() {
	if c == nil {
		return
	}
	c.cache.Purge()
	emit(c.bus, createEvent(&operation{name: "clear"}, ContextClear))
}

// Len returns the number of cached instances.
func (c *PersistenceContext) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}
