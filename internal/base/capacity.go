package base

import (
	"log/slog"

	"empires-server/internal/catalog"
)

// Baseline throughput every base has before any structure contributes.
const (
	baseConstructionRate = 15.0 // credits/hour
	baseProductionRate   = 0.0
	baseResearchRate     = 0.0
	citizenFertilityRate = 0.02 // citizens/hour per point of fertility
)

// Contribution is one named line of a capacity breakdown, for UI transparency.
type Contribution struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// Capacity is a throughput rate plus the contributions that add up to it.
type Capacity struct {
	Rate      float64        `json:"rate"`
	Breakdown []Contribution `json:"breakdown"`
}

func (c *Capacity) add(name string, amount float64) {
	if amount == 0 {
		return
	}
	c.Rate += amount
	c.Breakdown = append(c.Breakdown, Contribution{Name: name, Amount: amount})
}

// Capacities holds the four per-base throughputs: credits/hour for the three
// queue lines, units/hour for citizens.
type Capacities struct {
	Construction Capacity `json:"construction"`
	Production   Capacity `json:"production"`
	Research     Capacity `json:"research"`
	Citizen      Capacity `json:"citizen"`
}

// Rate returns the throughput for a queue type.
func (c *Capacities) Rate(queue catalog.QueueType) float64 {
	switch queue {
	case catalog.QueueConstruction:
		return c.Construction.Rate
	case catalog.QueueProduction:
		return c.Production.Rate
	case catalog.QueueResearch:
		return c.Research.Rate
	default:
		return 0
	}
}

// ComputeCapacities derives the base's throughputs from its active structure
// levels and planet constants. A structure counts while active or while its
// next level is under construction. Unknown catalog keys are skipped with a
// diagnostic.
func ComputeCapacities(b *Base, structures []Structure, cat *catalog.Provider, logger *slog.Logger) Capacities {
	var caps Capacities

	caps.Construction.add("base", baseConstructionRate)
	if baseProductionRate > 0 {
		caps.Production.add("base", baseProductionRate)
	}
	if baseResearchRate > 0 {
		caps.Research.add("base", baseResearchRate)
	}
	caps.Citizen.add("fertility", float64(b.Fertility)*citizenFertilityRate)

	for _, s := range structures {
		if !s.counts() {
			continue
		}

		spec, ok := cat.Get(s.Key)
		if !ok {
			logger.Warn("Skipping structure with unknown catalog key",
				"component", "capacity_calculator", "base", b.Coord, "key", s.Key)
			continue
		}

		level := float64(s.Level)
		scale := 1.0
		if spec.MetalScaled {
			scale = float64(b.Metal)
		}

		caps.Construction.add(spec.Name, spec.Construction*level*scale)
		caps.Production.add(spec.Name, spec.Production*level*scale)
		caps.Research.add(spec.Name, spec.Research*level)
		caps.Citizen.add(spec.Name, spec.Citizen*level)
	}

	return caps
}
