package catalog

import (
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewProviderValidates(t *testing.T) {
	p, err := NewProvider(testLogger())
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	if len(p.Keys()) != len(defaultSpecs) {
		t.Errorf("Keys() returned %d entries, want %d", len(p.Keys()), len(defaultSpecs))
	}
}

func TestProviderGet(t *testing.T) {
	p, err := NewProvider(testLogger())
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}

	spec, ok := p.Get(KeyUrbanStructures)
	if !ok {
		t.Fatal("expected urban_structures to exist")
	}
	if spec.Kind != KindStructure || spec.Queue != QueueConstruction {
		t.Errorf("urban_structures kind=%s queue=%s, want structure/construction", spec.Kind, spec.Queue)
	}

	if _, ok := p.Get("warp_gate"); ok {
		t.Error("expected unknown key to be absent")
	}
}

func TestStepCost(t *testing.T) {
	tests := []struct {
		name  string
		spec  *Spec
		level int
		cost  int64
		ok    bool
	}{
		{"table level 1", defaultSpecs[KeyUrbanStructures], 1, 1, true},
		{"table doubles", defaultSpecs[KeyUrbanStructures], 5, 16, true},
		{"table exhausted", defaultSpecs[KeyUrbanStructures], 21, 0, false},
		{"flat cost level 1", defaultSpecs[KeyFighter], 1, 5, true},
		{"flat cost has no level 2", defaultSpecs[KeyFighter], 2, 0, false},
		{"level zero undefined", defaultSpecs[KeyUrbanStructures], 0, 0, false},
		{"negative level undefined", defaultSpecs[KeyUrbanStructures], -3, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cost, ok := tt.spec.StepCost(tt.level)
			if ok != tt.ok || cost != tt.cost {
				t.Errorf("StepCost(%d) = (%d, %v), want (%d, %v)", tt.level, cost, ok, tt.cost, tt.ok)
			}
		})
	}
}

func TestPrerequisitesResolve(t *testing.T) {
	for key, spec := range defaultSpecs {
		for _, req := range spec.Prerequisites {
			if _, ok := defaultSpecs[req.Key]; !ok {
				t.Errorf("%s requires unknown key %s", key, req.Key)
			}
			if req.Level < 1 {
				t.Errorf("%s has non-positive requirement level for %s", key, req.Key)
			}
		}
	}
}
