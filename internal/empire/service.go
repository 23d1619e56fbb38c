package empire

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"empires-server/internal/base"
	"empires-server/internal/ledger"
	"empires-server/internal/shared/errors"
)

const maxNameLength = 64

// Service handles empire lifecycle: registration with the starting grant and
// homeworld claim, plus read access for the API layer.
type Service struct {
	store           Store
	bases           base.Store
	ledger          *ledger.Service
	startingCredits int64
	startingBases   int
	logger          *slog.Logger
}

func NewService(store Store, bases base.Store, ledgerSvc *ledger.Service, startingCredits int64, startingBases int, logger *slog.Logger) *Service {
	return &Service{
		store:           store,
		bases:           bases,
		ledger:          ledgerSvc,
		startingCredits: startingCredits,
		startingBases:   startingBases,
		logger:          logger,
	}
}

// Register creates an empire for the user, grants the starting credits and
// claims its starting bases. One empire per user: a second registration for
// the same user id conflicts.
func (s *Service) Register(ctx context.Context, userID, name string) (*Empire, error) {
	logger := s.logger.With("component", "empire_service", "operation", "register", "user_id", userID)

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.Validation("empire name is required")
	}
	if len(name) > maxNameLength {
		return nil, errors.Validationf("empire name must be at most %d characters", maxNameLength)
	}

	e := &Empire{
		UserID:  userID,
		Name:    name,
		Credits: s.startingCredits,
	}
	if err := s.store.CreateEmpire(ctx, e); err != nil {
		if stderrors.Is(err, ErrAlreadyExists) {
			return nil, errors.Conflictf("user already has an empire")
		}
		return nil, errors.WrapInternal("failed to create empire", err)
	}

	s.ledger.Record(ctx, e.ID, s.startingCredits, ledger.TypeRegistration,
		fmt.Sprintf("founded empire %s", name), e.Credits)

	for i := 0; i < s.startingBases; i++ {
		baseName := name
		if s.startingBases > 1 {
			baseName = fmt.Sprintf("%s %d", name, i+1)
		}
		b, err := s.bases.ClaimFreeBase(ctx, e.ID, baseName)
		if err != nil {
			if stderrors.Is(err, base.ErrNoFreeBase) {
				logger.Error("No free base available for new empire", "empire_id", e.ID)
				return nil, errors.Conflictf("no unclaimed base is available")
			}
			return nil, errors.WrapInternal("failed to claim starting base", err)
		}
		logger.Info("Starting base claimed", "empire_id", e.ID, "coord", b.Coord)
	}

	logger.Info("Empire registered", "empire_id", e.ID, "name", name)
	return e, nil
}

// Get loads an empire by id.
func (s *Service) Get(ctx context.Context, id int) (*Empire, error) {
	e, err := s.store.GetEmpire(ctx, id)
	if err != nil {
		if stderrors.Is(err, ErrNotFound) {
			return nil, errors.NotFoundf("empire %d not found", id)
		}
		return nil, errors.WrapInternal("failed to load empire", err)
	}
	return e, nil
}

// GetByUserID loads the empire belonging to a user.
func (s *Service) GetByUserID(ctx context.Context, userID string) (*Empire, error) {
	e, err := s.store.GetEmpireByUserID(ctx, userID)
	if err != nil {
		if stderrors.Is(err, ErrNotFound) {
			return nil, errors.NotFoundf("no empire for this user")
		}
		return nil, errors.WrapInternal("failed to load empire", err)
	}
	return e, nil
}

// Overview is the empire summary served to its owner.
type Overview struct {
	Empire *Empire     `json:"empire"`
	Bases  []base.Base `json:"bases"`
}

// GetOverview assembles the empire with its owned bases.
func (s *Service) GetOverview(ctx context.Context, id int) (*Overview, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	bases, err := s.bases.ListBasesByEmpire(ctx, id)
	if err != nil {
		return nil, errors.WrapInternal("failed to load bases", err)
	}

	return &Overview{Empire: e, Bases: bases}, nil
}

// Transactions returns the empire's most recent credit transactions.
func (s *Service) Transactions(ctx context.Context, id int, limit int) ([]ledger.Transaction, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	txs, err := s.ledger.ListByEmpire(ctx, id, limit)
	if err != nil {
		return nil, errors.WrapInternal("failed to load transactions", err)
	}
	return txs, nil
}
