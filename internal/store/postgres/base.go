package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"empires-server/internal/base"
	"empires-server/internal/catalog"
	"empires-server/internal/shared/database"
)

// BaseStore is the Postgres implementation of base.Store.
type BaseStore struct {
	db     *database.DB
	logger *slog.Logger
}

func NewBaseStore(db *database.DB, logger *slog.Logger) *BaseStore {
	logger.Debug("Initializing base store")

	return &BaseStore{
		db:     db,
		logger: logger,
	}
}

const baseColumns = `coord, name, empire_id, area, fertility, solar, gas, metal,
	citizens, citizen_remainder, last_accrual_at, created_at, updated_at`

func (s *BaseStore) GetBase(ctx context.Context, coord string) (*base.Base, error) {
	query := fmt.Sprintf(`SELECT %s FROM bases WHERE coord = $1`, baseColumns)

	b, err := scanBase(s.db.QueryRowContext(ctx, query, coord))
	if err == sql.ErrNoRows {
		return nil, base.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan base: %w", err)
	}
	return b, nil
}

func (s *BaseStore) ListBasesByEmpire(ctx context.Context, empireID int) ([]base.Base, error) {
	query := fmt.Sprintf(`SELECT %s FROM bases WHERE empire_id = $1 ORDER BY coord`, baseColumns)
	return s.queryBases(ctx, query, empireID)
}

func (s *BaseStore) ListOwnedBases(ctx context.Context) ([]base.Base, error) {
	query := fmt.Sprintf(`SELECT %s FROM bases WHERE empire_id IS NOT NULL ORDER BY coord`, baseColumns)
	return s.queryBases(ctx, query)
}

func (s *BaseStore) queryBases(ctx context.Context, query string, args ...interface{}) ([]base.Base, error) {
	logger := s.logger.With("component", "base_store", "operation", "query_bases")

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.Error("Failed to query bases", "error", err)
		return nil, fmt.Errorf("failed to query bases: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var bases []base.Base
	for rows.Next() {
		b, err := scanBase(rows)
		if err != nil {
			logger.Error("Failed to scan base row", "error", err)
			return nil, fmt.Errorf("failed to scan base: %w", err)
		}
		bases = append(bases, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bases: %w", err)
	}
	return bases, nil
}

func (s *BaseStore) ClaimFreeBase(ctx context.Context, empireID int, name string) (*base.Base, error) {
	logger := s.logger.With("component", "base_store", "operation", "claim_free_base", "empire_id", empireID)
	logger.Debug("Claiming free base")

	// SKIP LOCKED keeps two concurrent registrations off the same base.
	query := fmt.Sprintf(`
		UPDATE bases
		SET empire_id = $1, name = $2, last_accrual_at = NOW(), updated_at = NOW()
		WHERE coord = (
			SELECT coord FROM bases WHERE empire_id IS NULL ORDER BY coord LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING %s`, baseColumns)

	b, err := scanBase(s.db.QueryRowContext(ctx, query, empireID, name))
	if err == sql.ErrNoRows {
		return nil, base.ErrNoFreeBase
	}
	if err != nil {
		logger.Error("Failed to claim base", "error", err)
		return nil, fmt.Errorf("failed to claim base: %w", err)
	}

	logger.Info("Base claimed", "coord", b.Coord)
	return b, nil
}

func (s *BaseStore) CreateBase(ctx context.Context, b *base.Base) error {
	query := `
		INSERT INTO bases (coord, name, empire_id, area, fertility, solar, gas, metal)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at, last_accrual_at
	`

	err := s.db.QueryRowContext(ctx, query,
		b.Coord, b.Name, b.EmpireID, b.Area, b.Fertility, b.Solar, b.Gas, b.Metal,
	).Scan(&b.CreatedAt, &b.UpdatedAt, &b.LastAccrualAt)
	if err != nil {
		return fmt.Errorf("failed to create base: %w", err)
	}
	return nil
}

func (s *BaseStore) CountUnclaimedBases(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bases WHERE empire_id IS NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unclaimed bases: %w", err)
	}
	return count, nil
}

func (s *BaseStore) GetStructures(ctx context.Context, coord string) ([]base.Structure, error) {
	logger := s.logger.With("component", "base_store", "operation", "get_structures", "base", coord)

	query := `
		SELECT id, empire_id, base_coord, key, level, active, pending_upgrade, updated_at
		FROM structures
		WHERE base_coord = $1
		ORDER BY key
	`

	rows, err := s.db.QueryContext(ctx, query, coord)
	if err != nil {
		logger.Error("Failed to query structures", "error", err)
		return nil, fmt.Errorf("failed to query structures: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var structures []base.Structure
	for rows.Next() {
		var st base.Structure
		err := rows.Scan(&st.ID, &st.EmpireID, &st.BaseCoord, &st.Key, &st.Level, &st.Active, &st.PendingUpgrade, &st.UpdatedAt)
		if err != nil {
			logger.Error("Failed to scan structure row", "error", err)
			return nil, fmt.Errorf("failed to scan structure: %w", err)
		}
		structures = append(structures, st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating structures: %w", err)
	}
	return structures, nil
}

func (s *BaseStore) GetStructure(ctx context.Context, coord string, key catalog.Key) (*base.Structure, error) {
	query := `
		SELECT id, empire_id, base_coord, key, level, active, pending_upgrade, updated_at
		FROM structures
		WHERE base_coord = $1 AND key = $2
	`

	var st base.Structure
	err := s.db.QueryRowContext(ctx, query, coord, key).Scan(
		&st.ID, &st.EmpireID, &st.BaseCoord, &st.Key, &st.Level, &st.Active, &st.PendingUpgrade, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan structure: %w", err)
	}
	return &st, nil
}

func (s *BaseStore) CreateStructure(ctx context.Context, st *base.Structure) error {
	query := `
		INSERT INTO structures (empire_id, base_coord, key, level, active, pending_upgrade)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		st.EmpireID, st.BaseCoord, st.Key, st.Level, st.Active, st.PendingUpgrade,
	).Scan(&st.ID, &st.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create structure: %w", err)
	}
	return nil
}

func (s *BaseStore) UpdateStructure(ctx context.Context, st *base.Structure) error {
	query := `
		UPDATE structures
		SET level = $2, active = $3, pending_upgrade = $4, updated_at = NOW()
		WHERE id = $1
	`

	result, err := s.db.ExecContext(ctx, query, st.ID, st.Level, st.Active, st.PendingUpgrade)
	if err != nil {
		return fmt.Errorf("failed to update structure: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check structure update: %w", err)
	}
	if affected == 0 {
		return base.ErrStructureNotFound
	}
	return nil
}

func (s *BaseStore) ApplyCitizenAccrual(ctx context.Context, coord string, citizens int64, remainder int, boundary time.Time) error {
	query := `
		UPDATE bases
		SET citizens = citizens + $2, citizen_remainder = $3, last_accrual_at = $4, updated_at = NOW()
		WHERE coord = $1
	`

	result, err := s.db.ExecContext(ctx, query, coord, citizens, remainder, boundary)
	if err != nil {
		return fmt.Errorf("failed to apply citizen accrual: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check citizen accrual: %w", err)
	}
	if affected == 0 {
		return base.ErrNotFound
	}
	return nil
}

func scanBase(row rowScanner) (*base.Base, error) {
	var b base.Base
	err := row.Scan(
		&b.Coord,
		&b.Name,
		&b.EmpireID,
		&b.Area,
		&b.Fertility,
		&b.Solar,
		&b.Gas,
		&b.Metal,
		&b.Citizens,
		&b.CitizenRemainder,
		&b.LastAccrualAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
