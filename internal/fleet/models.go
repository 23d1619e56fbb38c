package fleet

import (
	"context"
	"errors"
	"time"

	"empires-server/internal/catalog"
)

var ErrNotFound = errors.New("fleet not found")

// Fleet groups the finished units stationed at a base. TotalValue is the sum
// of the unit values produced into it.
type Fleet struct {
	ID         int                 `json:"id"`
	EmpireID   int                 `json:"empire_id"`
	BaseCoord  string              `json:"base_coord"`
	Name       string              `json:"name"`
	Units      map[catalog.Key]int `json:"units"`
	TotalValue int64               `json:"total_value"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// Store is the persistence port for fleets. GetFleetByBase returns (nil, nil)
// when no fleet is stationed at the base.
type Store interface {
	GetFleetByBase(ctx context.Context, coord string) (*Fleet, error)
	CreateFleet(ctx context.Context, f *Fleet) error
	AddUnit(ctx context.Context, fleetID int, key catalog.Key, value int64) error
}
