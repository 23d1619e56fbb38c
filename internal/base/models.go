package base

import (
	"context"
	"errors"
	"time"

	"empires-server/internal/catalog"
)

var (
	ErrNotFound          = errors.New("base not found")
	ErrStructureNotFound = errors.New("structure not found")
	ErrNoFreeBase        = errors.New("no unowned base available")
)

// Base is a colonizable location. Area, fertility and the yield constants are
// environment facts fixed at creation; citizens and the accrual bookkeeping
// are mutated only by the accrual ticker.
type Base struct {
	Coord     string `json:"coord"`
	Name      string `json:"name"`
	EmpireID  *int   `json:"empire_id"`
	Area      int    `json:"area"`
	Fertility int    `json:"fertility"`
	Solar     int    `json:"solar"`
	Gas       int    `json:"gas"`
	Metal     int    `json:"metal"`

	Citizens         int64     `json:"citizens"`
	CitizenRemainder int       `json:"citizen_remainder"`
	LastAccrualAt    time.Time `json:"last_accrual_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Structure is one catalog entry built at a base. The current level keeps
// counting toward capacity while the next level is under construction
// (PendingUpgrade set).
type Structure struct {
	ID             int         `json:"id"`
	EmpireID       int         `json:"empire_id"`
	BaseCoord      string      `json:"base_coord"`
	Key            catalog.Key `json:"key"`
	Level          int         `json:"level"`
	Active         bool        `json:"active"`
	PendingUpgrade bool        `json:"pending_upgrade"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// counts reports whether the structure contributes to capacities and budgets.
func (s *Structure) counts() bool {
	return (s.Active || s.PendingUpgrade) && s.Level > 0
}

// QueueEntry is the slice of a queue item the budget evaluator needs: enough
// to reserve the single next step and to order the projection walk.
type QueueEntry struct {
	Key          catalog.Key
	TargetLevel  int
	Scheduled    bool
	CompletionAt *time.Time
	CreatedAt    time.Time
}

// Store is the persistence port for bases and their structures.
// GetStructure returns (nil, nil) when no row exists for the key.
type Store interface {
	GetBase(ctx context.Context, coord string) (*Base, error)
	ListBasesByEmpire(ctx context.Context, empireID int) ([]Base, error)
	ListOwnedBases(ctx context.Context) ([]Base, error)
	ClaimFreeBase(ctx context.Context, empireID int, name string) (*Base, error)
	CreateBase(ctx context.Context, b *Base) error
	CountUnclaimedBases(ctx context.Context) (int, error)

	GetStructures(ctx context.Context, coord string) ([]Structure, error)
	GetStructure(ctx context.Context, coord string, key catalog.Key) (*Structure, error)
	CreateStructure(ctx context.Context, s *Structure) error
	UpdateStructure(ctx context.Context, s *Structure) error

	ApplyCitizenAccrual(ctx context.Context, coord string, citizens int64, remainder int, boundary time.Time) error
}
