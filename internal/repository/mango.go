package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mangos/mangos/internal/model"
)

// Common errors for mango repository operations.
var (
	ErrMangoNotFound = errors.New("mango not found")
	ErrOwnerNotFound = errors.New("mango owner does not exist")
)

const mangoColumns = `id, name, ripe, color, owner_id, created_at, updated_at`

// CreateMango inserts a mango and fills in the store-assigned ID and timestamps.
func (r *Repository) CreateMango(ctx context.Context, m *model.Mango) error {
	query := `
		INSERT INTO mangos (name, ripe, color, owner_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		m.Name,
		m.Ripe,
		m.Color,
		m.OwnerID,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)

	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrOwnerNotFound
		}
		return fmt.Errorf("failed to create mango: %w", err)
	}

	return nil
}

// GetMangoByID retrieves a mango by its ID.
func (r *Repository) GetMangoByID(ctx context.Context, id int64) (*model.Mango, error) {
	query := `SELECT ` + mangoColumns + ` FROM mangos WHERE id = $1`

	m, err := scanMango(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMangoNotFound
		}
		return nil, fmt.Errorf("failed to get mango by ID: %w", err)
	}

	return m, nil
}

// ListMangosByOwner returns every mango owned by ownerID, oldest first.
func (r *Repository) ListMangosByOwner(ctx context.Context, ownerID string) ([]*model.Mango, error) {
	query := `SELECT ` + mangoColumns + ` FROM mangos WHERE owner_id = $1 ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mangos: %w", err)
	}
	defer rows.Close()

	mangos := make([]*model.Mango, 0)
	for rows.Next() {
		m, err := scanMango(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mango: %w", err)
		}
		mangos = append(mangos, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mangos: %w", err)
	}

	return mangos, nil
}

// UpdateMango writes the mutable fields and owner of m, refreshing UpdatedAt.
func (r *Repository) UpdateMango(ctx context.Context, m *model.Mango) error {
	query := `
		UPDATE mangos
		SET name = $2, ripe = $3, color = $4, owner_id = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		m.ID,
		m.Name,
		m.Ripe,
		m.Color,
		m.OwnerID,
	).Scan(&m.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrMangoNotFound
		}
		if isForeignKeyViolation(err) {
			return ErrOwnerNotFound
		}
		return fmt.Errorf("failed to update mango: %w", err)
	}

	return nil
}

// DeleteMango removes a mango permanently.
func (r *Repository) DeleteMango(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM mangos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete mango: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrMangoNotFound
	}

	return nil
}

// scanMango scans a single row into a Mango. pgx.Rows satisfies pgx.Row.
func scanMango(row pgx.Row) (*model.Mango, error) {
	var m model.Mango
	err := row.Scan(
		&m.ID,
		&m.Name,
		&m.Ripe,
		&m.Color,
		&m.OwnerID,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	return &m, err
}
