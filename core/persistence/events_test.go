package persistence_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/asaidimu/go-querydsl/core/persistence"
	"github.com/asaidimu/go-querydsl/core/query"
	"github.com/asaidimu/go-querydsl/core/schema"
	"github.com/asaidimu/go-querydsl/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recorder struct {
	mu     sync.Mutex
	events []persistence.PersistenceEvent
}

func (r *recorder) callback(_ context.Context, e persistence.PersistenceEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) snapshot() []persistence.PersistenceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]persistence.PersistenceEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) subscribe(f *persistence.QueryFactory, events ...persistence.PersistenceEventType) {
	for _, e := range events {
		f.RegisterSubscription(persistence.RegisterSubscriptionOptions{Event: e, Callback: r.callback})
	}
}

func TestEvents_Query(t *testing.T) {
	ctx := context.Background()
	f := newFactory(t)
	seed(t, f)
	m := model.NewQMember("member")

	rec := &recorder{}
	rec.subscribe(f, persistence.QueryStart, persistence.QuerySuccess)

	_, err := persistence.SelectFrom(f, m.Entity()).FetchAll(ctx)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, time.Second, 10*time.Millisecond)
	var success persistence.PersistenceEvent
	for _, e := range rec.snapshot() {
		if e.Type == persistence.QuerySuccess {
			success = e
		}
	}
	require.NotNil(t, success.RowCount)
	assert.Equal(t, int64(4), *success.RowCount)
	assert.Equal(t, "select", success.Operation)
	require.NotNil(t, success.Entity)
	assert.Equal(t, "Member", *success.Entity)
	assert.Contains(t, success.Query, "from Member member")
	assert.NotEmpty(t, success.ID)
	require.NotNil(t, success.Duration)
	assert.Positive(t, int64(*success.Duration), "durations keep sub-millisecond precision")
}

func TestEvents_InsertFailure(t *testing.T) {
	ctx := context.Background()
	f := newFactory(t)

	rec := &recorder{}
	rec.subscribe(f, persistence.EntityInsertFailed)

	_, err := f.Insert(ctx, model.MemberEntity, schema.Document{"age": "old", "nickname": "x"})
	var ve *schema.ValidationError
	require.ErrorAs(t, err, &ve)

	assert.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
	event := rec.snapshot()[0]
	require.NotNil(t, event.Error)
	assert.Len(t, event.Issues, 2)
}

func TestEvents_Subscriptions(t *testing.T) {
	f := newFactory(t)
	label := "audit"
	id := f.RegisterSubscription(persistence.RegisterSubscriptionOptions{
		Event:    persistence.BulkDeleteSuccess,
		Label:    &label,
		Callback: func(context.Context, persistence.PersistenceEvent) error { return nil },
	})

	subs := f.Subscriptions()
	require.Len(t, subs, 1)
	assert.Equal(t, id, *subs[0].Id)
	assert.Equal(t, "audit", *subs[0].Label)

	f.UnregisterSubscription(id)
	assert.Empty(t, f.Subscriptions())
	f.UnregisterSubscription(id)
}

func counterValue(reg *prometheus.Registry, operation, outcome string) float64 {
	families, err := reg.Gather()
	if err != nil {
		return -1
	}
	for _, mf := range families {
		if mf.GetName() != "querydsl_operations_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			labels := map[string]string{}
			for _, l := range metric.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["operation"] == operation && labels["outcome"] == outcome {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func durationSum(reg *prometheus.Registry, operation string) float64 {
	families, err := reg.Gather()
	if err != nil {
		return -1
	}
	for _, mf := range families {
		if mf.GetName() != "querydsl_operation_duration_seconds" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, l := range metric.GetLabel() {
				if l.GetName() == "operation" && l.GetValue() == operation {
					return metric.GetHistogram().GetSampleSum()
				}
			}
		}
	}
	return 0
}

func TestMetricsObserver(t *testing.T) {
	ctx := context.Background()
	f := newFactory(t)
	seed(t, f)
	m := model.NewQMember("member")

	reg := prometheus.NewRegistry()
	observer := persistence.NewMetricsObserver(f, reg, zaptest.NewLogger(t))

	_, err := persistence.SelectFrom(f, m.Entity()).FetchAll(ctx)
	require.NoError(t, err)
	_, err = persistence.SelectFrom(f, m.Entity()).FetchCount(ctx)
	require.NoError(t, err)
	_, err = persistence.SelectFrom(f, m.Entity()).Where(m.Age.Eq(query.Sub(query.Select(m.Age.Max()).From(m)))).FetchAll(ctx)
	require.Error(t, err, "invalid queries fail before execution and are not observed")
	_, err = f.Update(m).Set(m.Age, 1).Where(m.Age.Gt(30)).Execute(ctx)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return counterValue(reg, "select", "success") == 1 &&
			counterValue(reg, "count", "success") == 1 &&
			counterValue(reg, "update", "success") == 1
	}, time.Second, 10*time.Millisecond)

	count, err := testutil.GatherAndCount(reg, "querydsl_operation_duration_seconds")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 3)
	assert.Positive(t, durationSum(reg, "select"), "fast queries are not rounded down to zero")

	observer.Close()
	assert.Empty(t, f.Subscriptions())
}
