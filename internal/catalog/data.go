package catalog

// doubling builds a cost table where each level costs twice the previous one.
func doubling(base int64, levels int) []int64 {
	table := make([]int64, levels)
	cost := base
	for i := 0; i < levels; i++ {
		table[i] = cost
		cost *= 2
	}
	return table
}

// defaultSpecs is the full game catalog. Provider.Check validates it at startup.
var defaultSpecs = map[Key]*Spec{
	KeyUrbanStructures: {
		Key:                KeyUrbanStructures,
		Name:               "Urban Structures",
		Kind:               KindStructure,
		Queue:              QueueConstruction,
		CostTable:          doubling(1, 20),
		Area:               1,
		Economy:            2,
		PopulationCapacity: 8,
		Citizen:            0.5,
	},
	KeySolarPlants: {
		Key:         KeySolarPlants,
		Name:        "Solar Plants",
		Kind:        KindStructure,
		Queue:       QueueConstruction,
		CostTable:   doubling(2, 20),
		Area:        1,
		EnergyDelta: 3,
	},
	KeyGasPlants: {
		Key:         KeyGasPlants,
		Name:        "Gas Plants",
		Kind:        KindStructure,
		Queue:       QueueConstruction,
		CostTable:   doubling(4, 18),
		Area:        1,
		EnergyDelta: 5,
		Prerequisites: []Requirement{
			{Key: KeyEnergyTech, Level: 1},
		},
	},
	KeyMetalRefineries: {
		Key:          KeyMetalRefineries,
		Name:         "Metal Refineries",
		Kind:         KindStructure,
		Queue:        QueueConstruction,
		CostTable:    doubling(4, 18),
		Area:         1,
		Population:   1,
		EnergyDelta:  -1,
		Economy:      1,
		Construction: 2,
		Production:   1,
		MetalScaled:  true,
	},
	KeyRoboticFactory: {
		Key:          KeyRoboticFactory,
		Name:         "Robotic Factories",
		Kind:         KindStructure,
		Queue:        QueueConstruction,
		CostTable:    doubling(5, 16),
		Area:         1,
		EnergyDelta:  -1,
		Construction: 8,
		Production:   4,
		Prerequisites: []Requirement{
			{Key: KeyComputerTech, Level: 2},
		},
	},
	KeyResearchLabs: {
		Key:         KeyResearchLabs,
		Name:        "Research Labs",
		Kind:        KindStructure,
		Queue:       QueueConstruction,
		CostTable:   doubling(2, 20),
		Area:        1,
		Population:  1,
		EnergyDelta: -1,
		Research:    8,
	},
	KeyShipyards: {
		Key:         KeyShipyards,
		Name:        "Shipyards",
		Kind:        KindStructure,
		Queue:       QueueConstruction,
		CostTable:   doubling(5, 16),
		Area:        1,
		Population:  1,
		EnergyDelta: -1,
		Production:  2,
	},
	KeyOrbitalBase: {
		Key:          KeyOrbitalBase,
		Name:         "Orbital Base",
		Kind:         KindStructure,
		Queue:        QueueConstruction,
		CostTable:    doubling(10, 12),
		AreaCapacity: 5,
		Prerequisites: []Requirement{
			{Key: KeyStellarDrive, Level: 1},
		},
	},
	KeyTerraform: {
		Key:          KeyTerraform,
		Name:         "Terraform",
		Kind:         KindStructure,
		Queue:        QueueConstruction,
		CostTable:    doubling(8, 14),
		AreaCapacity: 5,
		Prerequisites: []Requirement{
			{Key: KeyComputerTech, Level: 4},
			{Key: KeyEnergyTech, Level: 6},
		},
	},

	KeyEnergyTech: {
		Key:       KeyEnergyTech,
		Name:      "Energy Technology",
		Kind:      KindTech,
		Queue:     QueueResearch,
		CostTable: doubling(2, 20),
	},
	KeyComputerTech: {
		Key:       KeyComputerTech,
		Name:      "Computer Technology",
		Kind:      KindTech,
		Queue:     QueueResearch,
		CostTable: doubling(2, 20),
	},
	KeyArmourTech: {
		Key:       KeyArmourTech,
		Name:      "Armour Technology",
		Kind:      KindTech,
		Queue:     QueueResearch,
		CostTable: doubling(4, 18),
	},
	KeyLaserTech: {
		Key:       KeyLaserTech,
		Name:      "Laser Technology",
		Kind:      KindTech,
		Queue:     QueueResearch,
		CostTable: doubling(4, 18),
		Prerequisites: []Requirement{
			{Key: KeyEnergyTech, Level: 2},
		},
	},
	KeyStellarDrive: {
		Key:       KeyStellarDrive,
		Name:      "Stellar Drive",
		Kind:      KindTech,
		Queue:     QueueResearch,
		CostTable: doubling(6, 16),
		Prerequisites: []Requirement{
			{Key: KeyEnergyTech, Level: 3},
		},
	},

	KeyFighter: {
		Key:       KeyFighter,
		Name:      "Fighter",
		Kind:      KindUnit,
		Queue:     QueueProduction,
		Cost:      5,
		UnitValue: 5,
		Prerequisites: []Requirement{
			{Key: KeyShipyards, Level: 1},
		},
	},
	KeyCorvette: {
		Key:       KeyCorvette,
		Name:      "Corvette",
		Kind:      KindUnit,
		Queue:     QueueProduction,
		Cost:      20,
		UnitValue: 20,
		Prerequisites: []Requirement{
			{Key: KeyShipyards, Level: 2},
			{Key: KeyLaserTech, Level: 1},
		},
	},
	KeyScout: {
		Key:       KeyScout,
		Name:      "Scout",
		Kind:      KindUnit,
		Queue:     QueueProduction,
		Cost:      10,
		UnitValue: 10,
		Prerequisites: []Requirement{
			{Key: KeyShipyards, Level: 1},
			{Key: KeyStellarDrive, Level: 1},
		},
	},

	KeyBarracks: {
		Key:       KeyBarracks,
		Name:      "Barracks",
		Kind:      KindDefense,
		Queue:     QueueConstruction,
		Cost:      5,
		Stackable: true,
	},
	KeyLaserTurrets: {
		Key:       KeyLaserTurrets,
		Name:      "Laser Turrets",
		Kind:      KindDefense,
		Queue:     QueueConstruction,
		Cost:      10,
		Stackable: true,
		Prerequisites: []Requirement{
			{Key: KeyLaserTech, Level: 1},
		},
	},
	KeyMissileBatteries: {
		Key:       KeyMissileBatteries,
		Name:      "Missile Batteries",
		Kind:      KindDefense,
		Queue:     QueueConstruction,
		Cost:      20,
		Stackable: true,
		Prerequisites: []Requirement{
			{Key: KeyArmourTech, Level: 2},
		},
	},
}
