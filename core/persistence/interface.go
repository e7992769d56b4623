package persistence

import (
	"context"
	"time"

	"github.com/asaidimu/go-querydsl/core/schema"
)

// PersistenceEventType names the events published on a factory's event bus.
type PersistenceEventType string

const (
	QueryStart          PersistenceEventType = "query:start"
	QuerySuccess        PersistenceEventType = "query:success"
	QueryFailed         PersistenceEventType = "query:failed"
	BulkUpdateStart     PersistenceEventType = "bulk:update:start"
	BulkUpdateSuccess   PersistenceEventType = "bulk:update:success"
	BulkUpdateFailed    PersistenceEventType = "bulk:update:failed"
	BulkDeleteStart     PersistenceEventType = "bulk:delete:start"
	BulkDeleteSuccess   PersistenceEventType = "bulk:delete:success"
	BulkDeleteFailed    PersistenceEventType = "bulk:delete:failed"
	EntityInsertStart   PersistenceEventType = "entity:insert:start"
	EntityInsertSuccess PersistenceEventType = "entity:insert:success"
	EntityInsertFailed  PersistenceEventType = "entity:insert:failed"
	TransactionStart    PersistenceEventType = "transaction:start"
	TransactionSuccess  PersistenceEventType = "transaction:success"
	TransactionFailed   PersistenceEventType = "transaction:failed"
	ContextClear        PersistenceEventType = "context:clear"
)

// PersistenceEvent represents events emitted during persistence operations.
type PersistenceEvent struct {
	Type          PersistenceEventType `json:"type"`                    // The type of event (e.g., 'query:start').
	ID            string               `json:"id"`                      // Correlates the start and end events of one operation.
	Timestamp     int64                `json:"timestamp"`               // Timestamp when the event occurred (Unix milliseconds).
	Operation     string               `json:"operation"`               // The operation being performed (e.g., 'select', 'update').
	Entity        *string              `json:"entity,omitempty"`        // Name of the entity affected (if applicable).
	Query         string               `json:"query,omitempty"`         // Readable rendering of the statement.
	Output        any                  `json:"output,omitempty"`        // Data returned by the operation (if applicable).
	RowCount      *int64               `json:"rowCount,omitempty"`      // Rows read or affected.
	Error         *string              `json:"error,omitempty"`         // Error message if the operation failed.
	Issues        []schema.Issue       `json:"issues,omitempty"`        // Validation issues that caused the operation to fail.
	TransactionID *string              `json:"transactionId,omitempty"` // Identifier for the transaction (if part of one).
	Duration      *time.Duration       `json:"duration,omitempty"`      // Time since the operation started.
}

// EventCallbackFunction handles a published event.
type EventCallbackFunction func(ctx context.Context, event PersistenceEvent) error

// SubscriptionInfo describes a registered subscription.
type SubscriptionInfo struct {
	Id          *string              `json:"id,omitempty"`
	Event       PersistenceEventType `json:"event"`                 // The event subscribed to.
	Label       *string              `json:"label,omitempty"`       // Optional short identifier.
	Description *string              `json:"description,omitempty"` // Optional description.
	Unsubscribe func()               `json:"-"`
}

// RegisterSubscriptionOptions configures a subscription.
type RegisterSubscriptionOptions struct {
	Event       PersistenceEventType `json:"event"`
	Label       *string              `json:"label,omitempty"`
	Description *string              `json:"description,omitempty"`
	Callback    EventCallbackFunction
}
