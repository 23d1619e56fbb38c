package catalog

// Key identifies an entry in the static game catalog. The set of keys is
// closed: every key used at runtime must appear in the startup table, which
// Provider.Check verifies.
type Key string

const (
	// Structures
	KeyUrbanStructures Key = "urban_structures"
	KeySolarPlants     Key = "solar_plants"
	KeyGasPlants       Key = "gas_plants"
	KeyMetalRefineries Key = "metal_refineries"
	KeyRoboticFactory  Key = "robotic_factories"
	KeyResearchLabs    Key = "research_labs"
	KeyShipyards       Key = "shipyards"
	KeyOrbitalBase     Key = "orbital_base"
	KeyTerraform       Key = "terraform"

	// Technologies
	KeyEnergyTech   Key = "energy_tech"
	KeyComputerTech Key = "computer_tech"
	KeyArmourTech   Key = "armour_tech"
	KeyLaserTech    Key = "laser_tech"
	KeyStellarDrive Key = "stellar_drive"

	// Units
	KeyFighter  Key = "fighter"
	KeyCorvette Key = "corvette"
	KeyScout    Key = "scout"

	// Defenses
	KeyBarracks         Key = "barracks"
	KeyLaserTurrets     Key = "laser_turrets"
	KeyMissileBatteries Key = "missile_batteries"
)

// Kind distinguishes what a catalog entry produces when its queue item completes.
type Kind string

const (
	KindStructure Kind = "structure"
	KindTech      Kind = "tech"
	KindUnit      Kind = "unit"
	KindDefense   Kind = "defense"
)

// QueueType identifies which per-base production line an entry is built on.
type QueueType string

const (
	QueueConstruction QueueType = "construction"
	QueueProduction   QueueType = "production"
	QueueResearch     QueueType = "research"
)

// Requirement is a technology or structure prerequisite: the empire (for tech
// keys) or base (for structure keys) must have the key at the given level.
type Requirement struct {
	Key   Key `json:"key"`
	Level int `json:"level"`
}

// Spec describes one catalog entry. Costs are credits; rates are per hour;
// footprints are per level.
type Spec struct {
	Key   Key       `json:"key"`
	Name  string    `json:"name"`
	Kind  Kind      `json:"kind"`
	Queue QueueType `json:"queue"`

	// Cost is the flat credit cost, used for units/defenses and as the level-1
	// fallback when CostTable is absent. CostTable, when present, is indexed by
	// level (CostTable[0] is level 1).
	Cost      int64   `json:"cost"`
	CostTable []int64 `json:"cost_table,omitempty"`

	// Per-level footprint at the hosting base.
	Area        int `json:"area"`
	Population  int `json:"population"`
	EnergyDelta int `json:"energy_delta"` // negative consumes, positive produces

	// Per-level gains.
	Economy            int64 `json:"economy"`             // passive credits/hour
	PopulationCapacity int   `json:"population_capacity"` // extra population room
	AreaCapacity       int   `json:"area_capacity"`       // extra buildable area

	// Per-level capacity contributions, credits/hour except Citizen (units/hour).
	Construction float64 `json:"construction"`
	Production   float64 `json:"production"`
	Research     float64 `json:"research"`
	Citizen      float64 `json:"citizen"`

	// MetalScaled multiplies the construction/production contributions by the
	// base's metal yield instead of counting them flat.
	MetalScaled bool `json:"metal_scaled"`

	// Stackable allows several queued copies of the same key at one base,
	// distinguished by a sequence suffix on the idempotency key.
	Stackable bool `json:"stackable"`

	// UnitValue is the fleet value one finished unit contributes.
	UnitValue int64 `json:"unit_value"`

	Prerequisites []Requirement `json:"prerequisites,omitempty"`
}

// StepCost returns the credit cost of building the given target level.
// When no per-level cost table exists, the flat cost serves level 1 only;
// anything else is undefined.
func (s *Spec) StepCost(level int) (int64, bool) {
	if level < 1 {
		return 0, false
	}
	if len(s.CostTable) > 0 {
		if level > len(s.CostTable) {
			return 0, false
		}
		return s.CostTable[level-1], true
	}
	if s.Cost > 0 && level == 1 {
		return s.Cost, true
	}
	return 0, false
}
