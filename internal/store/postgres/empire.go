package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"empires-server/internal/catalog"
	"empires-server/internal/empire"
	"empires-server/internal/shared/database"
)

// EmpireStore is the Postgres implementation of empire.Store.
type EmpireStore struct {
	db     *database.DB
	logger *slog.Logger
}

func NewEmpireStore(db *database.DB, logger *slog.Logger) *EmpireStore {
	logger.Debug("Initializing empire store")

	return &EmpireStore{
		db:     db,
		logger: logger,
	}
}

const empireColumns = `id, user_id, name, credits, credit_remainder, tech_levels,
	next_fleet_number, last_accrual_at, created_at, updated_at`

func (s *EmpireStore) CreateEmpire(ctx context.Context, e *empire.Empire) error {
	logger := s.logger.With("component", "empire_store", "operation", "create_empire", "user_id", e.UserID)
	logger.Debug("Creating empire")

	if e.TechLevels == nil {
		e.TechLevels = make(map[catalog.Key]int)
	}
	techJSON, err := json.Marshal(e.TechLevels)
	if err != nil {
		return fmt.Errorf("failed to marshal tech levels: %w", err)
	}

	query := `
		INSERT INTO empires (user_id, name, credits, credit_remainder, tech_levels, next_fleet_number, last_accrual_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (user_id) DO NOTHING
		RETURNING id, created_at, updated_at, last_accrual_at
	`

	err = s.db.QueryRowContext(ctx, query,
		e.UserID, e.Name, e.Credits, e.CreditRemainder, techJSON, e.NextFleetNumber,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt, &e.LastAccrualAt)
	if err == sql.ErrNoRows {
		return empire.ErrAlreadyExists
	}
	if err != nil {
		logger.Error("Failed to create empire", "error", err)
		return fmt.Errorf("failed to create empire: %w", err)
	}

	logger.Debug("Empire created", "empire_id", e.ID)
	return nil
}

func (s *EmpireStore) GetEmpire(ctx context.Context, id int) (*empire.Empire, error) {
	query := fmt.Sprintf(`SELECT %s FROM empires WHERE id = $1`, empireColumns)
	return s.scanEmpire(s.db.QueryRowContext(ctx, query, id))
}

func (s *EmpireStore) GetEmpireByUserID(ctx context.Context, userID string) (*empire.Empire, error) {
	query := fmt.Sprintf(`SELECT %s FROM empires WHERE user_id = $1`, empireColumns)
	return s.scanEmpire(s.db.QueryRowContext(ctx, query, userID))
}

func (s *EmpireStore) ListEmpires(ctx context.Context) ([]empire.Empire, error) {
	logger := s.logger.With("component", "empire_store", "operation", "list_empires")

	query := fmt.Sprintf(`SELECT %s FROM empires ORDER BY id`, empireColumns)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		logger.Error("Failed to query empires", "error", err)
		return nil, fmt.Errorf("failed to query empires: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var empires []empire.Empire
	for rows.Next() {
		e, err := s.scanEmpireRow(rows)
		if err != nil {
			logger.Error("Failed to scan empire row", "error", err)
			return nil, fmt.Errorf("failed to scan empire: %w", err)
		}
		empires = append(empires, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating empires: %w", err)
	}
	return empires, nil
}

func (s *EmpireStore) DebitCredits(ctx context.Context, id int, amount int64) (int64, error) {
	// Conditional decrement: the balance can never go negative, even under
	// concurrent writers.
	query := `
		UPDATE empires
		SET credits = credits - $2, updated_at = NOW()
		WHERE id = $1 AND credits >= $2
		RETURNING credits
	`

	var balance int64
	err := s.db.QueryRowContext(ctx, query, id, amount).Scan(&balance)
	if err == sql.ErrNoRows {
		var current int64
		if err := s.db.QueryRowContext(ctx, `SELECT credits FROM empires WHERE id = $1`, id).Scan(&current); err != nil {
			if err == sql.ErrNoRows {
				return 0, empire.ErrNotFound
			}
			return 0, fmt.Errorf("failed to check balance: %w", err)
		}
		return current, empire.ErrInsufficientCredits
	}
	if err != nil {
		return 0, fmt.Errorf("failed to debit credits: %w", err)
	}
	return balance, nil
}

func (s *EmpireStore) CreditCredits(ctx context.Context, id int, amount int64) (int64, error) {
	query := `
		UPDATE empires
		SET credits = credits + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING credits
	`

	var balance int64
	err := s.db.QueryRowContext(ctx, query, id, amount).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, empire.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to credit credits: %w", err)
	}
	return balance, nil
}

func (s *EmpireStore) SetTechLevel(ctx context.Context, id int, key catalog.Key, level int) error {
	query := `
		UPDATE empires
		SET tech_levels = jsonb_set(tech_levels, ARRAY[$2::text], to_jsonb($3::int)), updated_at = NOW()
		WHERE id = $1
	`

	result, err := s.db.ExecContext(ctx, query, id, string(key), level)
	if err != nil {
		return fmt.Errorf("failed to set tech level: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check tech level update: %w", err)
	}
	if affected == 0 {
		return empire.ErrNotFound
	}
	return nil
}

func (s *EmpireStore) NextFleetNumber(ctx context.Context, id int) (int, error) {
	query := `
		UPDATE empires
		SET next_fleet_number = next_fleet_number + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING next_fleet_number
	`

	var number int
	err := s.db.QueryRowContext(ctx, query, id).Scan(&number)
	if err == sql.ErrNoRows {
		return 0, empire.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to allocate fleet number: %w", err)
	}
	return number, nil
}

func (s *EmpireStore) ApplyCreditAccrual(ctx context.Context, id int, credits int64, remainder int, boundary time.Time) (int64, error) {
	query := `
		UPDATE empires
		SET credits = credits + $2, credit_remainder = $3, last_accrual_at = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING credits
	`

	var balance int64
	err := s.db.QueryRowContext(ctx, query, id, credits, remainder, boundary).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, empire.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to apply credit accrual: %w", err)
	}
	return balance, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *EmpireStore) scanEmpire(row *sql.Row) (*empire.Empire, error) {
	e, err := s.scanEmpireRow(row)
	if err == sql.ErrNoRows {
		return nil, empire.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan empire: %w", err)
	}
	return e, nil
}

func (s *EmpireStore) scanEmpireRow(row rowScanner) (*empire.Empire, error) {
	var e empire.Empire
	var techJSON []byte

	err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.Name,
		&e.Credits,
		&e.CreditRemainder,
		&techJSON,
		&e.NextFleetNumber,
		&e.LastAccrualAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.TechLevels = make(map[catalog.Key]int)
	if len(techJSON) > 0 {
		if err := json.Unmarshal(techJSON, &e.TechLevels); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tech levels: %w", err)
		}
	}
	return &e, nil
}
