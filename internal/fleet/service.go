package fleet

import (
	"context"
	stderrors "errors"
	"log/slog"

	"empires-server/internal/base"
	"empires-server/internal/catalog"
	"empires-server/internal/shared/errors"
)

// Service serves the fleet stationed at a base.
type Service struct {
	store  Store
	bases  base.Store
	logger *slog.Logger
}

func NewService(store Store, bases base.Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		bases:  bases,
		logger: logger,
	}
}

// GetByBase returns the fleet at a base the empire owns. A base without
// finished units yet has no fleet; that is served as an empty one.
func (s *Service) GetByBase(ctx context.Context, empireID int, coord string) (*Fleet, error) {
	b, err := s.bases.GetBase(ctx, coord)
	if err != nil {
		if stderrors.Is(err, base.ErrNotFound) {
			return nil, errors.NotFoundf("base %s not found", coord)
		}
		return nil, errors.WrapInternal("failed to load base", err)
	}
	if b.EmpireID == nil || *b.EmpireID != empireID {
		return nil, errors.New(errors.ErrorTypeNotOwner, "base belongs to another empire")
	}

	f, err := s.store.GetFleetByBase(ctx, coord)
	if err != nil {
		return nil, errors.WrapInternal("failed to load fleet", err)
	}
	if f == nil {
		return &Fleet{EmpireID: empireID, BaseCoord: coord, Units: map[catalog.Key]int{}}, nil
	}
	return f, nil
}
