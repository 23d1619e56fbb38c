package queue_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"empires-server/internal/base"
	"empires-server/internal/catalog"
	"empires-server/internal/empire"
	"empires-server/internal/ledger"
	"empires-server/internal/notify"
	"empires-server/internal/queue"
	"empires-server/internal/store/memory"
)

func TestSweepCompletesFirstBuild(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	e := env.createEmpire(t, "u1", 500)
	env.createBase(t, "01:01:01", e.ID, base.Base{Area: 50, Fertility: 40})

	item, err := env.engine.Enqueue(ctx, e.ID, "u1", "01:01:01", catalog.KeyUrbanStructures)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	env.engine.Sweep(ctx, item.CompletionAt.Add(time.Second))

	st, err := env.store.GetStructure(ctx, "01:01:01", catalog.KeyUrbanStructures)
	if err != nil || st == nil {
		t.Fatalf("get structure: %v", err)
	}
	if st.Level != 1 || !st.Active {
		t.Errorf("structure level=%d active=%v, want 1/true", st.Level, st.Active)
	}
	if st.PendingUpgrade {
		t.Error("no further step is queued; pending-upgrade should be clear")
	}

	got, _ := env.store.GetItem(ctx, item.ID)
	if got.Status != queue.StatusCompleted {
		t.Errorf("item status = %s, want completed", got.Status)
	}
}

func TestSweepUpgradeKeepsPendingWhileMoreStepsQueued(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	e := env.createEmpire(t, "u1", 500)
	env.createBase(t, "01:01:01", e.ID, base.Base{Area: 50, Fertility: 40})
	env.createStructure(t, "01:01:01", e.ID, catalog.KeyUrbanStructures, 1)

	first, err := env.engine.Enqueue(ctx, e.ID, "u1", "01:01:01", catalog.KeyUrbanStructures)
	if err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if _, err := env.engine.Enqueue(ctx, e.ID, "u1", "01:01:01", catalog.KeyUrbanStructures); err != nil {
		t.Fatalf("second enqueue: %v", err)
	}

	env.engine.Sweep(ctx, first.CompletionAt.Add(time.Second))

	st, _ := env.store.GetStructure(ctx, "01:01:01", catalog.KeyUrbanStructures)
	if st.Level != 2 {
		t.Errorf("level = %d, want 2", st.Level)
	}
	if !st.PendingUpgrade {
		t.Error("a further step remains queued; pending-upgrade should stay set")
	}

	// The sweep's scheduler kick promotes the next step.
	open, _ := env.store.ListOpenByBase(ctx, "01:01:01")
	if len(open) != 1 || open[0].Status != queue.StatusScheduled {
		t.Fatalf("open items after sweep = %+v, want one scheduled", open)
	}

	env.engine.Sweep(ctx, open[0].CompletionAt.Add(time.Second))
	st, _ = env.store.GetStructure(ctx, "01:01:01", catalog.KeyUrbanStructures)
	if st.Level != 3 || st.PendingUpgrade {
		t.Errorf("level=%d pending=%v after final sweep, want 3/false", st.Level, st.PendingUpgrade)
	}
}

func TestSweepRaisesTechLevel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	e := env.createEmpire(t, "u1", 500)
	env.createBase(t, "01:01:01", e.ID, base.Base{Area: 50, Fertility: 40})
	env.createStructure(t, "01:01:01", e.ID, catalog.KeyResearchLabs, 1)

	item, err := env.engine.Enqueue(ctx, e.ID, "u1", "01:01:01", catalog.KeyEnergyTech)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	env.engine.Sweep(ctx, item.CompletionAt.Add(time.Second))

	emp, _ := env.store.GetEmpire(ctx, e.ID)
	if got := emp.TechLevel(catalog.KeyEnergyTech); got != 1 {
		t.Errorf("energy tech = %d, want 1", got)
	}
}

func TestSweepProducesUnitIntoFleet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	e := env.createEmpire(t, "u1", 500)
	env.createBase(t, "01:01:01", e.ID, base.Base{Area: 50, Fertility: 40})
	env.createStructure(t, "01:01:01", e.ID, catalog.KeyShipyards, 1)

	item, err := env.engine.Enqueue(ctx, e.ID, "u1", "01:01:01", catalog.KeyFighter)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	env.engine.Sweep(ctx, item.CompletionAt.Add(time.Second))

	f, err := env.store.GetFleetByBase(ctx, "01:01:01")
	if err != nil {
		t.Fatalf("get fleet: %v", err)
	}
	if f == nil {
		t.Fatal("a fleet should have been formed at the base")
	}
	if f.Name != "Fleet 1" {
		t.Errorf("fleet name = %q, want Fleet 1", f.Name)
	}
	if f.Units[catalog.KeyFighter] != 1 {
		t.Errorf("fighters = %d, want 1", f.Units[catalog.KeyFighter])
	}
	if f.TotalValue != 5 {
		t.Errorf("total value = %d, want 5", f.TotalValue)
	}
}

func TestSweepTalliesDefenses(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	e := env.createEmpire(t, "u1", 500)
	env.createBase(t, "01:01:01", e.ID, base.Base{Area: 50, Fertility: 40})

	first, err := env.engine.Enqueue(ctx, e.ID, "u1", "01:01:01", catalog.KeyBarracks)
	if err != nil {
		t.Fatalf("first barracks: %v", err)
	}
	if _, err := env.engine.Enqueue(ctx, e.ID, "u1", "01:01:01", catalog.KeyBarracks); err != nil {
		t.Fatalf("second barracks: %v", err)
	}

	env.engine.Sweep(ctx, first.CompletionAt.Add(time.Second))

	counts, err := env.engine.DefenseCounts(ctx, "01:01:01")
	if err != nil {
		t.Fatalf("defense counts: %v", err)
	}
	if counts[catalog.KeyBarracks] != 1 {
		t.Errorf("barracks tally = %d, want 1", counts[catalog.KeyBarracks])
	}

	open, _ := env.store.ListOpenByBase(ctx, "01:01:01")
	if len(open) != 1 || open[0].Status != queue.StatusScheduled {
		t.Fatalf("second barracks should be promoted after the sweep")
	}

	env.engine.Sweep(ctx, open[0].CompletionAt.Add(time.Second))
	counts, _ = env.engine.DefenseCounts(ctx, "01:01:01")
	if counts[catalog.KeyBarracks] != 2 {
		t.Errorf("barracks tally = %d, want 2", counts[catalog.KeyBarracks])
	}
}

func TestSweepCancelsOrphanedItems(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	e := env.createEmpire(t, "u1", 500)
	env.createBase(t, "01:01:01", e.ID, base.Base{Area: 50, Fertility: 40})

	// The item references an empire that no longer exists.
	item := insertQueuedItem(t, env, e.ID+1000, "01:01:01", catalog.KeyUrbanStructures, 1, 10)
	past := time.Now().UTC().Add(-time.Hour)
	if err := env.store.MarkScheduled(ctx, item.ID, past.Add(-time.Minute), past); err != nil {
		t.Fatalf("mark scheduled: %v", err)
	}

	env.engine.Sweep(ctx, time.Now().UTC())

	got, _ := env.store.GetItem(ctx, item.ID)
	if got.Status != queue.StatusCancelled {
		t.Errorf("orphaned item status = %s, want cancelled", got.Status)
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	e := env.createEmpire(t, "u1", 500)
	env.createBase(t, "01:01:01", e.ID, base.Base{Area: 50, Fertility: 40})

	item, err := env.engine.Enqueue(ctx, e.ID, "u1", "01:01:01", catalog.KeyUrbanStructures)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	after := item.CompletionAt.Add(time.Second)
	env.engine.Sweep(ctx, after)
	env.engine.Sweep(ctx, after)

	st, _ := env.store.GetStructure(ctx, "01:01:01", catalog.KeyUrbanStructures)
	if st.Level != 1 {
		t.Errorf("level = %d after double sweep, want 1", st.Level)
	}
}

// flakyFinalizeStore fails the first MarkCompleted call with a transient
// error, forcing the sweeper to retry the item on the next pass.
type flakyFinalizeStore struct {
	*memory.Store
	failures int
}

func (s *flakyFinalizeStore) MarkCompleted(ctx context.Context, id string) error {
	if s.failures > 0 {
		s.failures--
		return fmt.Errorf("transient store failure")
	}
	return s.Store.MarkCompleted(ctx, id)
}

func TestSweepRetryNeverDuplicatesUnits(t *testing.T) {
	ctx := context.Background()
	logger := testLogger()

	cat, err := catalog.NewProvider(logger)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	store := memory.NewStore()
	flaky := &flakyFinalizeStore{Store: store, failures: 1}
	ledgerService := ledger.NewService(store, logger)
	engine := queue.NewEngine(store, store, flaky, store, ledgerService, cat, notify.NewLogSink(logger), logger)

	e := &empire.Empire{UserID: "u1", Name: "Producer", Credits: 500}
	if err := store.CreateEmpire(ctx, e); err != nil {
		t.Fatalf("create empire: %v", err)
	}
	coord := "01:01:01"
	b := base.Base{Coord: coord, EmpireID: &e.ID, Area: 50, Fertility: 40}
	if err := store.CreateBase(ctx, &b); err != nil {
		t.Fatalf("create base: %v", err)
	}
	st := &base.Structure{EmpireID: e.ID, BaseCoord: coord, Key: catalog.KeyShipyards, Level: 1, Active: true}
	if err := store.CreateStructure(ctx, st); err != nil {
		t.Fatalf("create structure: %v", err)
	}

	item, err := engine.Enqueue(ctx, e.ID, "u1", coord, catalog.KeyFighter)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// The first sweep hits the transient failure; the second one retries.
	after := item.CompletionAt.Add(time.Second)
	engine.Sweep(ctx, after)
	engine.Sweep(ctx, after)

	got, err := store.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.Status != queue.StatusCompleted {
		t.Errorf("status = %s, want completed after retry", got.Status)
	}

	f, err := store.GetFleetByBase(ctx, coord)
	if err != nil {
		t.Fatalf("get fleet: %v", err)
	}
	if f == nil {
		t.Fatal("a fleet should have been formed at the base")
	}
	if f.Units[catalog.KeyFighter] != 1 {
		t.Errorf("fighters = %d, want exactly 1 across retries", f.Units[catalog.KeyFighter])
	}
}
