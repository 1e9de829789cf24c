package repository

import (
	"context"
	"fmt"

	"casino/database"
	"casino/models"
	"casino/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ProfileRepository implements the ProfileRepository interface
type ProfileRepository struct {
	q queryable
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *database.DB) *ProfileRepository {
	return &ProfileRepository{q: db.Pool}
}

// newProfileRepositoryWithTx creates a new profile repository with a transaction
func newProfileRepositoryWithTx(tx queryable) *ProfileRepository {
	return &ProfileRepository{q: tx}
}

const profileColumns = `id, email, username, balance, demo_balance, is_demo, is_suspended, role, created_at, updated_at`

func scanProfile(row pgx.Row) (*models.Profile, error) {
	var p models.Profile
	err := row.Scan(
		&p.ID,
		&p.Email,
		&p.Username,
		&p.Balance,
		&p.DemoBalance,
		&p.IsDemo,
		&p.IsSuspended,
		&p.Role,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByID retrieves a profile by its ID
func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

	profile, err := scanProfile(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile %s: %w", id, err)
	}

	return profile, nil
}

// GetByEmail retrieves a profile by email
func (r *ProfileRepository) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE email = $1`

	profile, err := scanProfile(r.q.QueryRow(ctx, query, email))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile by email %s: %w", email, err)
	}

	return profile, nil
}

// Create creates a new profile with the given initial demo balance
func (r *ProfileRepository) Create(ctx context.Context, email, username string, demoBalance int64) (*models.Profile, error) {
	query := `
		INSERT INTO profiles (email, username, demo_balance)
		VALUES ($1, $2, $3)
		RETURNING ` + profileColumns

	profile, err := scanProfile(r.q.QueryRow(ctx, query, email, username, demoBalance))
	if err != nil {
		return nil, fmt.Errorf("failed to create profile for %s: %w", email, err)
	}

	return profile, nil
}

// CreditBalance adds to a profile's real or demo balance atomically
func (r *ProfileRepository) CreditBalance(ctx context.Context, id uuid.UUID, amount int64, isDemo bool) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}

	column := "balance"
	if isDemo {
		column = "demo_balance"
	}
	query := fmt.Sprintf(`
		UPDATE profiles
		SET %s = %s + $1, updated_at = NOW()
		WHERE id = $2
	`, column, column)

	result, err := r.q.Exec(ctx, query, amount, id)
	if err != nil {
		return fmt.Errorf("failed to credit balance for profile %s: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("profile %s not found", id)
	}

	return nil
}

// DebitBalance deducts from a profile's real or demo balance atomically,
// failing if the deduction would take the balance below zero
func (r *ProfileRepository) DebitBalance(ctx context.Context, id uuid.UUID, amount int64, isDemo bool) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}

	column := "balance"
	if isDemo {
		column = "demo_balance"
	}
	query := fmt.Sprintf(`
		UPDATE profiles
		SET %s = %s - $1, updated_at = NOW()
		WHERE id = $2 AND %s >= $1
	`, column, column, column)

	result, err := r.q.Exec(ctx, query, amount, id)
	if err != nil {
		return fmt.Errorf("failed to debit balance for profile %s: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		profile, err := r.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to check profile: %w", err)
		}
		if profile == nil {
			return fmt.Errorf("profile %s not found", id)
		}
		have := profile.Balance
		if isDemo {
			have = profile.DemoBalance
		}
		return fmt.Errorf("%w: have %d, need %d", service.ErrInsufficientFunds, have, amount)
	}

	return nil
}

// SetDemoBalance sets the demo balance to an absolute value (demo refill)
func (r *ProfileRepository) SetDemoBalance(ctx context.Context, id uuid.UUID, amount int64) error {
	query := `
		UPDATE profiles
		SET demo_balance = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.q.Exec(ctx, query, amount, id)
	if err != nil {
		return fmt.Errorf("failed to set demo balance for profile %s: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("profile %s not found", id)
	}

	return nil
}

// SetBalance sets the real balance to an absolute value (operator action)
func (r *ProfileRepository) SetBalance(ctx context.Context, id uuid.UUID, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("amount must not be negative")
	}

	query := `
		UPDATE profiles
		SET balance = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.q.Exec(ctx, query, amount, id)
	if err != nil {
		return fmt.Errorf("failed to set balance for profile %s: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("profile %s not found", id)
	}

	return nil
}

// SetMode flips the active-balance selector for a profile
func (r *ProfileRepository) SetMode(ctx context.Context, id uuid.UUID, isDemo bool) error {
	query := `
		UPDATE profiles
		SET is_demo = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.q.Exec(ctx, query, isDemo, id)
	if err != nil {
		return fmt.Errorf("failed to set mode for profile %s: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("profile %s not found", id)
	}

	return nil
}

// SetSuspended marks a profile as suspended or active
func (r *ProfileRepository) SetSuspended(ctx context.Context, id uuid.UUID, suspended bool) error {
	query := `
		UPDATE profiles
		SET is_suspended = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.q.Exec(ctx, query, suspended, id)
	if err != nil {
		return fmt.Errorf("failed to set suspended for profile %s: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("profile %s not found", id)
	}

	return nil
}

// GetAll returns all profiles
func (r *ProfileRepository) GetAll(ctx context.Context) ([]*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles ORDER BY created_at DESC`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get all profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*models.Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profiles: %w", err)
	}

	return profiles, nil
}
