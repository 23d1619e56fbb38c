package empire

import (
	"context"
	"errors"
	"time"

	"empires-server/internal/catalog"
)

var (
	ErrNotFound            = errors.New("empire not found")
	ErrAlreadyExists       = errors.New("empire already exists")
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// Empire is a player's state: the credit balance with its sub-credit
// remainder (thousandths, carried by the accrual ticker), researched tech
// levels, and the counter used to name newly formed fleets.
type Empire struct {
	ID              int                 `json:"id"`
	UserID          string              `json:"user_id"`
	Name            string              `json:"name"`
	Credits         int64               `json:"credits"`
	CreditRemainder int                 `json:"credit_remainder"`
	TechLevels      map[catalog.Key]int `json:"tech_levels"`
	NextFleetNumber int                 `json:"next_fleet_number"`
	LastAccrualAt   time.Time           `json:"last_accrual_at"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// TechLevel returns the researched level for a key, zero when unresearched.
func (e *Empire) TechLevel(key catalog.Key) int {
	if e.TechLevels == nil {
		return 0
	}
	return e.TechLevels[key]
}

// Store is the persistence port for empires. DebitCredits must be a
// conditional decrement: it fails with ErrInsufficientCredits instead of
// driving the balance negative, even under concurrent writers.
type Store interface {
	CreateEmpire(ctx context.Context, e *Empire) error
	GetEmpire(ctx context.Context, id int) (*Empire, error)
	GetEmpireByUserID(ctx context.Context, userID string) (*Empire, error)
	ListEmpires(ctx context.Context) ([]Empire, error)

	DebitCredits(ctx context.Context, id int, amount int64) (int64, error)
	CreditCredits(ctx context.Context, id int, amount int64) (int64, error)

	SetTechLevel(ctx context.Context, id int, key catalog.Key, level int) error
	NextFleetNumber(ctx context.Context, id int) (int, error)

	ApplyCreditAccrual(ctx context.Context, id int, credits int64, remainder int, boundary time.Time) (int64, error)
}
