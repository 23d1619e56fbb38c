package base

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math/rand"

	"empires-server/internal/catalog"
	"empires-server/internal/shared/errors"
)

// Universe generation bounds per base.
const (
	minUnclaimedBases = 50

	minArea      = 80
	maxArea      = 220
	minFertility = 40
	maxFertility = 120
	minYield     = 1
	maxYield     = 6
)

// QueueView is the slice of the queue the dashboard needs: the open entries
// feeding the budget evaluator and the tally of finished defenses.
type QueueView interface {
	OpenEntries(ctx context.Context, coord string) ([]QueueEntry, error)
	DefenseCounts(ctx context.Context, coord string) (map[catalog.Key]int, error)
}

// Service serves per-base reads: the dashboard and the fleet view. It also
// seeds the universe with unclaimed bases for new empires to colonize.
type Service struct {
	store   Store
	queue   QueueView
	catalog *catalog.Provider
	logger  *slog.Logger
}

func NewService(store Store, queue QueueView, cat *catalog.Provider, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		queue:   queue,
		catalog: cat,
		logger:  logger,
	}
}

// EnsureUniverse tops the pool of unclaimed bases back up to the minimum.
// Coordinates are sector:system:position; yields are rolled per base.
func (s *Service) EnsureUniverse(ctx context.Context) error {
	logger := s.logger.With("component", "base_service", "operation", "ensure_universe")

	unclaimed, err := s.store.CountUnclaimedBases(ctx)
	if err != nil {
		return fmt.Errorf("failed to count unclaimed bases: %w", err)
	}
	if unclaimed >= minUnclaimedBases {
		logger.Debug("Universe already seeded", "unclaimed", unclaimed)
		return nil
	}

	created := 0
	for created < minUnclaimedBases-unclaimed {
		coord := fmt.Sprintf("%02d:%02d:%02d", rand.Intn(100), rand.Intn(100), rand.Intn(100))
		if existing, err := s.store.GetBase(ctx, coord); err == nil && existing != nil {
			continue
		} else if err != nil && !stderrors.Is(err, ErrNotFound) {
			return fmt.Errorf("failed to check coordinate %s: %w", coord, err)
		}

		b := &Base{
			Coord:     coord,
			Area:      minArea + rand.Intn(maxArea-minArea+1),
			Fertility: minFertility + rand.Intn(maxFertility-minFertility+1),
			Solar:     minYield + rand.Intn(maxYield-minYield+1),
			Gas:       minYield + rand.Intn(maxYield-minYield+1),
			Metal:     minYield + rand.Intn(maxYield-minYield+1),
		}
		if err := s.store.CreateBase(ctx, b); err != nil {
			return fmt.Errorf("failed to create base %s: %w", coord, err)
		}
		created++
	}

	logger.Info("Universe seeded", "created", created, "unclaimed_before", unclaimed)
	return nil
}

// Dashboard is the full per-base picture served to its owner: environment,
// structures, throughput, budgets, the open queue and the defense tally.
type Dashboard struct {
	Base       *Base               `json:"base"`
	Structures []Structure         `json:"structures"`
	Capacities Capacities          `json:"capacities"`
	Budgets    Budgets             `json:"budgets"`
	Queue      []QueueEntry        `json:"queue"`
	Defenses   map[catalog.Key]int `json:"defenses"`
	Projection Projection          `json:"projection"`
}

// GetDashboard assembles the dashboard for a base the empire owns.
func (s *Service) GetDashboard(ctx context.Context, empireID int, coord string) (*Dashboard, error) {
	b, err := s.ownedBase(ctx, empireID, coord)
	if err != nil {
		return nil, err
	}

	structures, err := s.store.GetStructures(ctx, coord)
	if err != nil {
		return nil, errors.WrapInternal("failed to load structures", err)
	}

	entries, err := s.queue.OpenEntries(ctx, coord)
	if err != nil {
		return nil, errors.WrapInternal("failed to load queue entries", err)
	}

	defenses, err := s.queue.DefenseCounts(ctx, coord)
	if err != nil {
		return nil, errors.WrapInternal("failed to load defense tally", err)
	}

	budgets := ComputeBudgets(b, structures, entries, s.catalog, s.logger)

	return &Dashboard{
		Base:       b,
		Structures: structures,
		Capacities: ComputeCapacities(b, structures, s.catalog, s.logger),
		Budgets:    budgets,
		Queue:      entries,
		Defenses:   defenses,
		Projection: ProjectQueue(budgets, entries, s.catalog, s.logger),
	}, nil
}

// ownedBase loads a base and verifies ownership.
func (s *Service) ownedBase(ctx context.Context, empireID int, coord string) (*Base, error) {
	b, err := s.store.GetBase(ctx, coord)
	if err != nil {
		if stderrors.Is(err, ErrNotFound) {
			return nil, errors.NotFoundf("base %s not found", coord)
		}
		return nil, errors.WrapInternal("failed to load base", err)
	}
	if b.EmpireID == nil || *b.EmpireID != empireID {
		return nil, errors.New(errors.ErrorTypeNotOwner, "base belongs to another empire")
	}
	return b, nil
}
