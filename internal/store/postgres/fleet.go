package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"empires-server/internal/catalog"
	"empires-server/internal/fleet"
	"empires-server/internal/shared/database"
)

// FleetStore is the Postgres implementation of fleet.Store. Unit counts live
// in a JSONB column keyed by catalog key.
type FleetStore struct {
	db     *database.DB
	logger *slog.Logger
}

func NewFleetStore(db *database.DB, logger *slog.Logger) *FleetStore {
	logger.Debug("Initializing fleet store")

	return &FleetStore{
		db:     db,
		logger: logger,
	}
}

func (s *FleetStore) GetFleetByBase(ctx context.Context, coord string) (*fleet.Fleet, error) {
	query := `
		SELECT id, empire_id, base_coord, name, units, total_value, created_at, updated_at
		FROM fleets
		WHERE base_coord = $1
	`

	var f fleet.Fleet
	var unitsJSON []byte
	err := s.db.QueryRowContext(ctx, query, coord).Scan(
		&f.ID, &f.EmpireID, &f.BaseCoord, &f.Name, &unitsJSON, &f.TotalValue, &f.CreatedAt, &f.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan fleet: %w", err)
	}

	f.Units = make(map[catalog.Key]int)
	if len(unitsJSON) > 0 {
		if err := json.Unmarshal(unitsJSON, &f.Units); err != nil {
			return nil, fmt.Errorf("failed to unmarshal fleet units: %w", err)
		}
	}
	return &f, nil
}

func (s *FleetStore) CreateFleet(ctx context.Context, f *fleet.Fleet) error {
	logger := s.logger.With("component", "fleet_store", "operation", "create_fleet", "base", f.BaseCoord)
	logger.Debug("Creating fleet")

	if f.Units == nil {
		f.Units = make(map[catalog.Key]int)
	}
	unitsJSON, err := json.Marshal(f.Units)
	if err != nil {
		return fmt.Errorf("failed to marshal fleet units: %w", err)
	}

	query := `
		INSERT INTO fleets (empire_id, base_coord, name, units, total_value)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err = s.db.QueryRowContext(ctx, query,
		f.EmpireID, f.BaseCoord, f.Name, unitsJSON, f.TotalValue,
	).Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		logger.Error("Failed to create fleet", "error", err)
		return fmt.Errorf("failed to create fleet: %w", err)
	}
	return nil
}

func (s *FleetStore) AddUnit(ctx context.Context, fleetID int, key catalog.Key, value int64) error {
	// jsonb_set with a COALESCE default handles both the first unit of a kind
	// and subsequent increments in one statement.
	query := `
		UPDATE fleets
		SET units = jsonb_set(units, ARRAY[$2::text],
				to_jsonb(COALESCE((units ->> $2)::int, 0) + 1)),
			total_value = total_value + $3,
			updated_at = NOW()
		WHERE id = $1
	`

	result, err := s.db.ExecContext(ctx, query, fleetID, string(key), value)
	if err != nil {
		return fmt.Errorf("failed to add unit: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check unit update: %w", err)
	}
	if affected == 0 {
		return fleet.ErrNotFound
	}
	return nil
}
