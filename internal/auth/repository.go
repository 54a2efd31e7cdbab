package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/spotlight/internal/models"
)

const userColumns = `id, email, password_hash, full_name, role, subscription, stripe_connect_id, stripe_customer_id, created_at, updated_at`

// Repository handles presenter account persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.FullName, &u.Role, &u.Subscription,
		&u.StripeConnectID, &u.StripeCustomerID, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID returns a user by ID, or nil if none exists.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetByEmail returns a user by email, or nil if none exists.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// Create inserts a new presenter account.
func (r *Repository) Create(ctx context.Context, email, passwordHash, fullName string, role models.Role) (*models.User, error) {
	const q = `INSERT INTO users (email, password_hash, full_name, role)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + userColumns
	u, err := scanUser(r.pool.QueryRow(ctx, q, email, passwordHash, fullName, string(role)))
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// SetSubscription flips the subscription flag for the user billed under customerID.
// It reports whether a user matched.
func (r *Repository) SetSubscription(ctx context.Context, customerID string, active bool) (bool, error) {
	const q = `UPDATE users SET subscription = $2, updated_at = NOW() WHERE stripe_customer_id = $1`
	tag, err := r.pool.Exec(ctx, q, customerID, active)
	if err != nil {
		return false, fmt.Errorf("set subscription: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetSubscriptionForUser flips the subscription flag of userID.
func (r *Repository) SetSubscriptionForUser(ctx context.Context, userID uuid.UUID, active bool) (bool, error) {
	const q = `UPDATE users SET subscription = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, userID, active)
	if err != nil {
		return false, fmt.Errorf("set subscription: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetStripeConnectID stores the connected payment account of a presenter.
func (r *Repository) SetStripeConnectID(ctx context.Context, userID uuid.UUID, accountID string) error {
	const q = `UPDATE users SET stripe_connect_id = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.pool.Exec(ctx, q, userID, accountID); err != nil {
		return fmt.Errorf("set stripe connect id: %w", err)
	}
	return nil
}
