// Package agents manages the AI voice agents presenters attach to BOOK_A_CALL webinars.
package agents

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/spotlight/internal/models"
)

// Repository handles ai_agents persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an agents repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const agentColumns = `id, user_id, name, prompt, first_message, model, assistant_id, created_at, updated_at`

func scanAgent(row pgx.Row) (*models.AIAgent, error) {
	var a models.AIAgent
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Prompt, &a.FirstMessage, &a.Model, &a.AssistantID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// Create inserts an agent and fills ID and timestamps.
func (r *Repository) Create(ctx context.Context, a *models.AIAgent) error {
	const q = `INSERT INTO ai_agents (user_id, name, prompt, first_message, model, assistant_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, a.UserID, a.Name, a.Prompt, a.FirstMessage, a.Model, a.AssistantID).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	return nil
}

// GetByID returns an agent or nil.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.AIAgent, error) {
	q := `SELECT ` + agentColumns + ` FROM ai_agents WHERE id = $1`
	return scanAgent(r.pool.QueryRow(ctx, q, id))
}

// OwnedBy reports whether agentID belongs to userID.
func (r *Repository) OwnedBy(ctx context.Context, agentID, userID uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM ai_agents WHERE id = $1 AND user_id = $2)`
	var ok bool
	if err := r.pool.QueryRow(ctx, q, agentID, userID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// ListByUser returns the agents of a presenter, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.AIAgent, error) {
	q := `SELECT ` + agentColumns + ` FROM ai_agents WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.AIAgent{}
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

// UpdateScript stores a new first message and prompt.
func (r *Repository) UpdateScript(ctx context.Context, id uuid.UUID, firstMessage, prompt string) error {
	const q = `UPDATE ai_agents SET first_message = $2, prompt = $3, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, firstMessage, prompt)
	return err
}
