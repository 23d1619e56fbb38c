package catalog

import (
	"fmt"
	"log/slog"
	"sort"
)

// Provider resolves catalog keys to specs. The table is read-only after
// construction, so lookups are safe for concurrent use.
type Provider struct {
	specs  map[Key]*Spec
	logger *slog.Logger
}

// NewProvider builds a provider over the default game catalog and validates
// it. An invalid table is a programming error and fails startup.
func NewProvider(logger *slog.Logger) (*Provider, error) {
	p := &Provider{
		specs:  defaultSpecs,
		logger: logger,
	}

	if err := p.Check(); err != nil {
		return nil, fmt.Errorf("catalog validation failed: %w", err)
	}

	logger.Info("Catalog loaded", "component", "catalog", "entries", len(p.specs))
	return p, nil
}

// Get returns the spec for a key, or false if the key is unknown.
func (p *Provider) Get(key Key) (*Spec, bool) {
	spec, ok := p.specs[key]
	return spec, ok
}

// Keys returns all catalog keys in a stable order.
func (p *Provider) Keys() []Key {
	keys := make([]Key, 0, len(p.specs))
	for key := range p.specs {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Check verifies the completeness of the catalog table: every spec carries a
// key matching its map entry, a valid kind and queue, a defined level-1 cost,
// and prerequisites that resolve to known keys.
func (p *Provider) Check() error {
	for key, spec := range p.specs {
		if spec.Key != key {
			return fmt.Errorf("catalog entry %q declares mismatched key %q", key, spec.Key)
		}

		switch spec.Kind {
		case KindStructure, KindTech, KindUnit, KindDefense:
		default:
			return fmt.Errorf("catalog entry %q has unknown kind %q", key, spec.Kind)
		}

		switch spec.Queue {
		case QueueConstruction, QueueProduction, QueueResearch:
		default:
			return fmt.Errorf("catalog entry %q has unknown queue %q", key, spec.Queue)
		}

		if _, ok := spec.StepCost(1); !ok {
			return fmt.Errorf("catalog entry %q has no defined level-1 cost", key)
		}

		for _, req := range spec.Prerequisites {
			reqSpec, ok := p.specs[req.Key]
			if !ok {
				return fmt.Errorf("catalog entry %q requires unknown key %q", key, req.Key)
			}
			if req.Level < 1 {
				return fmt.Errorf("catalog entry %q requires %q at invalid level %d", key, req.Key, req.Level)
			}
			if reqSpec.Kind != KindTech && reqSpec.Kind != KindStructure {
				return fmt.Errorf("catalog entry %q requires %q which is neither tech nor structure", key, req.Key)
			}
		}
	}
	return nil
}
