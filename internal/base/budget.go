package base

import (
	"log/slog"
	"sort"

	"empires-server/internal/catalog"
)

const baseIncomeRate = 10 // passive credits/hour every owned base pays out

// AreaBudget tracks buildable surface. Reserved covers the single next step
// of every in-flight or queued item.
type AreaBudget struct {
	Total    int `json:"total"`
	Used     int `json:"used"`
	Reserved int `json:"reserved"`
	Free     int `json:"free"`
}

// EnergyBudget tracks power. Only pending consumers reserve; pending producers
// never block evaluation.
type EnergyBudget struct {
	Produced int `json:"produced"`
	Consumed int `json:"consumed"`
	Reserved int `json:"reserved"`
	Balance  int `json:"balance"`
}

// PopulationBudget tracks workers against housing capacity.
type PopulationBudget struct {
	Capacity int `json:"capacity"`
	Used     int `json:"used"`
	Reserved int `json:"reserved"`
	Free     int `json:"free"`
}

// Budgets is the full budget picture for one base. The same figures back both
// the player dashboard and admission checks.
type Budgets struct {
	Area       AreaBudget       `json:"area"`
	Energy     EnergyBudget     `json:"energy"`
	Population PopulationBudget `json:"population"`
	Income     int64            `json:"income"` // owner passive credits/hour
}

// ProjectedEnergy is the balance once pending consumers land.
func (b *Budgets) ProjectedEnergy() int {
	return b.Energy.Balance - b.Energy.Reserved
}

// ComputeBudgets evaluates area, energy, population and passive income for a
// base. Used figures sum level × requirement over active-or-pending
// structures; reserved figures sum the single next step of each open queue
// entry. Unknown catalog keys are skipped with a diagnostic.
func ComputeBudgets(b *Base, structures []Structure, entries []QueueEntry, cat *catalog.Provider, logger *slog.Logger) Budgets {
	budgets := Budgets{
		Area:       AreaBudget{Total: b.Area},
		Population: PopulationBudget{Capacity: b.Fertility},
		Income:     baseIncomeRate,
	}

	for _, s := range structures {
		if !s.counts() {
			continue
		}

		spec, ok := cat.Get(s.Key)
		if !ok {
			logger.Warn("Skipping structure with unknown catalog key",
				"component", "budget_evaluator", "base", b.Coord, "key", s.Key)
			continue
		}

		budgets.Area.Total += spec.AreaCapacity * s.Level
		budgets.Area.Used += spec.Area * s.Level
		budgets.Population.Capacity += spec.PopulationCapacity * s.Level
		budgets.Population.Used += spec.Population * s.Level
		budgets.Income += spec.Economy * int64(s.Level)

		if spec.EnergyDelta >= 0 {
			budgets.Energy.Produced += spec.EnergyDelta * s.Level
		} else {
			budgets.Energy.Consumed += -spec.EnergyDelta * s.Level
		}
	}

	for _, entry := range entries {
		spec, ok := cat.Get(entry.Key)
		if !ok {
			logger.Warn("Skipping queue entry with unknown catalog key",
				"component", "budget_evaluator", "base", b.Coord, "key", entry.Key)
			continue
		}

		budgets.Area.Reserved += spec.Area
		budgets.Population.Reserved += spec.Population
		if spec.EnergyDelta < 0 {
			budgets.Energy.Reserved += -spec.EnergyDelta
		}
	}

	budgets.Energy.Balance = budgets.Energy.Produced - budgets.Energy.Consumed
	budgets.Area.Free = budgets.Area.Total - budgets.Area.Used - budgets.Area.Reserved
	budgets.Population.Free = budgets.Population.Capacity - budgets.Population.Used - budgets.Population.Reserved

	return budgets
}

// Projection is the running free-budget tally after walking the pending queue
// in order. Safe is false when the tally went negative at any step, meaning
// downstream admission cannot be trusted.
type Projection struct {
	FreeArea       int
	FreePopulation int
	Safe           bool
}

// ProjectQueue simulates the pending queue against the base's current free
// budgets: already-scheduled items first, ordered by completion time, then
// unscheduled items by enqueue time. Each entry applies its capacity gain
// before consuming its own footprint.
func ProjectQueue(budgets Budgets, entries []QueueEntry, cat *catalog.Provider, logger *slog.Logger) Projection {
	ordered := make([]QueueEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Scheduled != b.Scheduled {
			return a.Scheduled
		}
		if a.Scheduled && a.CompletionAt != nil && b.CompletionAt != nil && !a.CompletionAt.Equal(*b.CompletionAt) {
			return a.CompletionAt.Before(*b.CompletionAt)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	projection := Projection{
		FreeArea:       budgets.Area.Total - budgets.Area.Used,
		FreePopulation: budgets.Population.Capacity - budgets.Population.Used,
		Safe:           true,
	}

	for _, entry := range ordered {
		spec, ok := cat.Get(entry.Key)
		if !ok {
			logger.Warn("Skipping queue entry with unknown catalog key",
				"component", "budget_evaluator", "key", entry.Key)
			continue
		}

		projection.FreeArea += spec.AreaCapacity
		projection.FreePopulation += spec.PopulationCapacity

		projection.FreeArea -= spec.Area
		projection.FreePopulation -= spec.Population

		if projection.FreeArea < 0 || projection.FreePopulation < 0 {
			projection.Safe = false
			break
		}
	}

	return projection
}
