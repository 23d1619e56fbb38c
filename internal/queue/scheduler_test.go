package queue_test

import (
	"context"
	"testing"
	"time"

	"empires-server/internal/base"
	"empires-server/internal/catalog"
	"empires-server/internal/queue"
)

func insertQueuedItem(t *testing.T, env *testEnv, empireID int, coord string, key catalog.Key, targetLevel int, cost int64) *queue.Item {
	t.Helper()

	spec, ok := env.catalog.Get(key)
	if !ok {
		t.Fatalf("unknown catalog key %s", key)
	}

	item := &queue.Item{
		ID:             "item-" + string(key) + "-" + time.Now().Format("150405.000000000"),
		EmpireID:       empireID,
		BaseCoord:      coord,
		Key:            key,
		Kind:           spec.Kind,
		QueueType:      spec.Queue,
		TargetLevel:    targetLevel,
		Status:         queue.StatusQueued,
		Cost:           cost,
		IdempotencyKey: queue.IdempotencyKeyFor(empireID, coord, key, targetLevel),
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	if err := env.store.InsertItem(context.Background(), item); err != nil {
		t.Fatalf("insert item: %v", err)
	}
	return item
}

func TestScheduleDebitsAndComputesETA(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	e := env.createEmpire(t, "u1", 500)
	env.createBase(t, "01:01:01", e.ID, base.Base{Area: 50, Fertility: 40})

	item := insertQueuedItem(t, env, e.ID, "01:01:01", catalog.KeyUrbanStructures, 1, 10)

	if err := env.engine.Schedule(ctx, "01:01:01", catalog.QueueConstruction); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	got, err := env.store.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.Status != queue.StatusScheduled {
		t.Fatalf("status = %s, want scheduled", got.Status)
	}

	// cost 10 at the 15/hour baseline is 40 minutes
	if d := got.CompletionAt.Sub(*got.StartAt); d != 40*time.Minute {
		t.Errorf("duration = %v, want 40m", d)
	}
	if balance := env.credits(t, e.ID); balance != 490 {
		t.Errorf("credits = %d, want 490", balance)
	}
}

func TestScheduleMinimumOneMinute(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	e := env.createEmpire(t, "u1", 500)
	env.createBase(t, "01:01:01", e.ID, base.Base{Area: 50, Fertility: 40, Metal: 5})
	env.createStructure(t, "01:01:01", e.ID, catalog.KeyMetalRefineries, 10)

	// throughput 15 + 2*10*5 = 115/hour; cost 1 rounds up to the 1-minute floor
	item := insertQueuedItem(t, env, e.ID, "01:01:01", catalog.KeyUrbanStructures, 1, 1)

	if err := env.engine.Schedule(ctx, "01:01:01", catalog.QueueConstruction); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	got, err := env.store.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if d := got.CompletionAt.Sub(*got.StartAt); d != time.Minute {
		t.Errorf("duration = %v, want 1m floor", d)
	}
}

func TestScheduleIsIdempotentWhileInProgress(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	e := env.createEmpire(t, "u1", 500)
	env.createBase(t, "01:01:01", e.ID, base.Base{Area: 50, Fertility: 40})

	insertQueuedItem(t, env, e.ID, "01:01:01", catalog.KeyUrbanStructures, 1, 10)

	if err := env.engine.Schedule(ctx, "01:01:01", catalog.QueueConstruction); err != nil {
		t.Fatalf("first schedule: %v", err)
	}
	balance := env.credits(t, e.ID)

	// A redundant kick must not debit again or touch anything.
	if err := env.engine.Schedule(ctx, "01:01:01", catalog.QueueConstruction); err != nil {
		t.Fatalf("second schedule: %v", err)
	}
	if got := env.credits(t, e.ID); got != balance {
		t.Errorf("credits changed on redundant schedule: %d -> %d", balance, got)
	}
}

func TestScheduleLeavesItemPendingWhenBroke(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	e := env.createEmpire(t, "u1", 5)
	env.createBase(t, "01:01:01", e.ID, base.Base{Area: 50, Fertility: 40})

	item := insertQueuedItem(t, env, e.ID, "01:01:01", catalog.KeyUrbanStructures, 1, 10)

	if err := env.engine.Schedule(ctx, "01:01:01", catalog.QueueConstruction); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	got, err := env.store.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.Status != queue.StatusQueued {
		t.Errorf("status = %s, want still queued", got.Status)
	}
	if balance := env.credits(t, e.ID); balance != 5 {
		t.Errorf("credits = %d, want untouched 5", balance)
	}

	// Once funds arrive, the next trigger promotes it.
	if _, err := env.store.CreditCredits(ctx, e.ID, 100); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := env.engine.Schedule(ctx, "01:01:01", catalog.QueueConstruction); err != nil {
		t.Fatalf("schedule after funding: %v", err)
	}
	got, _ = env.store.GetItem(ctx, item.ID)
	if got.Status != queue.StatusScheduled {
		t.Errorf("status after funding = %s, want scheduled", got.Status)
	}
}

func TestScheduleFIFOWithinLine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	e := env.createEmpire(t, "u1", 500)
	env.createBase(t, "01:01:01", e.ID, base.Base{Area: 50, Fertility: 40})

	first := insertQueuedItem(t, env, e.ID, "01:01:01", catalog.KeyUrbanStructures, 1, 10)
	time.Sleep(2 * time.Millisecond)
	second := insertQueuedItem(t, env, e.ID, "01:01:01", catalog.KeySolarPlants, 1, 10)

	if err := env.engine.Schedule(ctx, "01:01:01", catalog.QueueConstruction); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	a, _ := env.store.GetItem(ctx, first.ID)
	b, _ := env.store.GetItem(ctx, second.ID)
	if a.Status != queue.StatusScheduled {
		t.Errorf("oldest item status = %s, want scheduled", a.Status)
	}
	if b.Status != queue.StatusQueued {
		t.Errorf("newer item status = %s, want queued", b.Status)
	}
}

func TestScheduleChainsAfterStaleCompletion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	e := env.createEmpire(t, "u1", 500)
	env.createBase(t, "01:01:01", e.ID, base.Base{Area: 50, Fertility: 40})

	// A finished-but-unswept item no longer blocks the line.
	done := insertQueuedItem(t, env, e.ID, "01:01:01", catalog.KeyUrbanStructures, 1, 10)
	past := time.Now().UTC().Add(-10 * time.Minute)
	if err := env.store.MarkScheduled(ctx, done.ID, past.Add(-40*time.Minute), past); err != nil {
		t.Fatalf("mark scheduled: %v", err)
	}

	next := insertQueuedItem(t, env, e.ID, "01:01:01", catalog.KeySolarPlants, 1, 10)

	if err := env.engine.Schedule(ctx, "01:01:01", catalog.QueueConstruction); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	got, _ := env.store.GetItem(ctx, next.ID)
	if got.Status != queue.StatusScheduled {
		t.Errorf("next item status = %s, want scheduled", got.Status)
	}
	if got.StartAt.Before(past) {
		t.Errorf("start %v precedes the previous completion %v", got.StartAt, past)
	}
}
