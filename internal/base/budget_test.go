package base

import (
	"testing"
	"time"

	"empires-server/internal/catalog"
)

func TestComputeBudgetsStructures(t *testing.T) {
	b := &Base{Coord: "01:02:03", Area: 100, Fertility: 40}
	structures := []Structure{
		{Key: catalog.KeyUrbanStructures, Level: 3, Active: true},
		{Key: catalog.KeySolarPlants, Level: 2, Active: true},
		{Key: catalog.KeyMetalRefineries, Level: 1, Active: true},
	}

	budgets := ComputeBudgets(b, structures, nil, testCatalog(t), testLogger())

	if budgets.Area.Total != 100 {
		t.Errorf("area total = %d, want 100", budgets.Area.Total)
	}
	if budgets.Area.Used != 6 {
		t.Errorf("area used = %d, want 6", budgets.Area.Used)
	}
	if budgets.Energy.Produced != 6 || budgets.Energy.Consumed != 1 {
		t.Errorf("energy = %d produced / %d consumed, want 6/1", budgets.Energy.Produced, budgets.Energy.Consumed)
	}
	if budgets.Energy.Balance != 5 {
		t.Errorf("energy balance = %d, want 5", budgets.Energy.Balance)
	}
	if budgets.Population.Capacity != 40+3*8 {
		t.Errorf("population capacity = %d, want 64", budgets.Population.Capacity)
	}
	if budgets.Population.Used != 1 {
		t.Errorf("population used = %d, want 1", budgets.Population.Used)
	}
	// 10 base income + 2/level urban + 1/level refineries
	if budgets.Income != 10+6+1 {
		t.Errorf("income = %d, want 17", budgets.Income)
	}
}

func TestComputeBudgetsReservations(t *testing.T) {
	b := &Base{Coord: "01:02:03", Area: 10}
	entries := []QueueEntry{
		{Key: catalog.KeyMetalRefineries, TargetLevel: 1},
		{Key: catalog.KeySolarPlants, TargetLevel: 1},
	}

	budgets := ComputeBudgets(b, nil, entries, testCatalog(t), testLogger())

	if budgets.Area.Reserved != 2 {
		t.Errorf("area reserved = %d, want 2", budgets.Area.Reserved)
	}
	// only the refinery consumes energy; the solar plant is a pending producer
	if budgets.Energy.Reserved != 1 {
		t.Errorf("energy reserved = %d, want 1", budgets.Energy.Reserved)
	}
	if budgets.Population.Reserved != 1 {
		t.Errorf("population reserved = %d, want 1", budgets.Population.Reserved)
	}
	if got := budgets.ProjectedEnergy(); got != -1 {
		t.Errorf("projected energy = %d, want -1", got)
	}
}

func TestProjectQueueSafe(t *testing.T) {
	b := &Base{Coord: "01:02:03", Area: 3}
	entries := []QueueEntry{
		{Key: catalog.KeySolarPlants, CreatedAt: time.Unix(1, 0)},
		{Key: catalog.KeySolarPlants, CreatedAt: time.Unix(2, 0)},
		{Key: catalog.KeySolarPlants, CreatedAt: time.Unix(3, 0)},
	}

	budgets := ComputeBudgets(b, nil, entries, testCatalog(t), testLogger())
	projection := ProjectQueue(budgets, entries, testCatalog(t), testLogger())

	if !projection.Safe {
		t.Fatal("three 1-area entries on a 3-area base should be safe")
	}
	if projection.FreeArea != 0 {
		t.Errorf("free area past queue = %d, want 0", projection.FreeArea)
	}
}

func TestProjectQueueOvercommit(t *testing.T) {
	b := &Base{Coord: "01:02:03", Area: 2}
	entries := []QueueEntry{
		{Key: catalog.KeySolarPlants, CreatedAt: time.Unix(1, 0)},
		{Key: catalog.KeySolarPlants, CreatedAt: time.Unix(2, 0)},
		{Key: catalog.KeySolarPlants, CreatedAt: time.Unix(3, 0)},
	}

	budgets := ComputeBudgets(b, nil, entries, testCatalog(t), testLogger())
	projection := ProjectQueue(budgets, entries, testCatalog(t), testLogger())

	if projection.Safe {
		t.Error("three 1-area entries on a 2-area base should not be safe")
	}
}

func TestProjectQueueCapacityGainAppliesFirst(t *testing.T) {
	// An orbital base adds 5 area when it lands; later entries may spend it.
	b := &Base{Coord: "01:02:03", Area: 1}
	completion := time.Now().Add(time.Minute)
	entries := []QueueEntry{
		{Key: catalog.KeyOrbitalBase, Scheduled: true, CompletionAt: &completion, CreatedAt: time.Unix(1, 0)},
		{Key: catalog.KeySolarPlants, CreatedAt: time.Unix(2, 0)},
		{Key: catalog.KeySolarPlants, CreatedAt: time.Unix(3, 0)},
	}

	budgets := ComputeBudgets(b, nil, entries, testCatalog(t), testLogger())
	projection := ProjectQueue(budgets, entries, testCatalog(t), testLogger())

	if !projection.Safe {
		t.Fatal("orbital base's area gain should cover the plants behind it")
	}
	if projection.FreeArea != 1+5-2 {
		t.Errorf("free area past queue = %d, want 4", projection.FreeArea)
	}
}
