package persistence

import (
	"errors"
	"time"

	"github.com/asaidimu/go-querydsl/core/schema"
	"github.com/asaidimu/go-events"
	"github.com/google/uuid"
)

type eventSet struct {
	start, success, failed PersistenceEventType
}

var (
	queryEvents  = eventSet{QueryStart, QuerySuccess, QueryFailed}
	updateEvents = eventSet{BulkUpdateStart, BulkUpdateSuccess, BulkUpdateFailed}
	deleteEvents = eventSet{BulkDeleteStart, BulkDeleteSuccess, BulkDeleteFailed}
	insertEvents = eventSet{EntityInsertStart, EntityInsertSuccess, EntityInsertFailed}
	txEvents     = eventSet{TransactionStart, TransactionSuccess, TransactionFailed}
)

// operation tracks one emitting operation from its start event to its
// success or failure event.
type operation struct {
	bus       *events.TypedEventBus[PersistenceEvent]
	set       eventSet
	id        string
	name      string
	entity    *string
	query     string
	txID      *string
	startTime time.Time
}

func createEvent(op *operation, eventType PersistenceEventType) PersistenceEvent {
	var duration *time.Duration
	if !op.startTime.IsZero() {
		d := time.Since(op.startTime)
		duration = &d
	}
	return PersistenceEvent{
		Type:          eventType,
		ID:            op.id,
		Timestamp:     time.Now().UnixMilli(),
		Operation:     op.name,
		Entity:        op.entity,
		Query:         op.query,
		TransactionID: op.txID,
		Duration:      duration,
	}
}

// startOperation emits the start event of an operation.
func startOperation(bus *events.TypedEventBus[PersistenceEvent], set eventSet, name, entity, query string, txID *string) *operation {
	op := &operation{
		bus:       bus,
		set:       set,
		id:        uuid.New().String(),
		name:      name,
		query:     query,
		txID:      txID,
		startTime: time.Now(),
	}
	if entity != "" {
		op.entity = &entity
	}
	emit(bus, createEvent(op, set.start))
	return op
}

// finish emits the success or failure event. A nil count is omitted.
func (op *operation) finish(count *int64, output any, err error) {
	if err != nil {
		event := createEvent(op, op.set.failed)
		msg := err.Error()
		event.Error = &msg
		var ve *schema.ValidationError
		if errors.As(err, &ve) {
			event.Issues = ve.Issues
		}
		emit(op.bus, event)
		return
	}
	event := createEvent(op, op.set.success)
	event.RowCount = count
	event.Output = output
	emit(op.bus, event)
}

func emit(bus *events.TypedEventBus[PersistenceEvent], event PersistenceEvent) {
	if bus != nil {
		bus.Emit(string(event.Type), event)
	}
}
