package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/spotlight/internal/models"
	"github.com/aura-webinar/spotlight/pkg/apperrors"
	"github.com/aura-webinar/spotlight/pkg/database"
)

const attendanceColumns = `id, attendee_id, webinar_id, attended_type, joined_at, created_at, updated_at`

// Repository handles attendee and attendance persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an attendance repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanAttendance(row pgx.Row) (*models.Attendance, error) {
	var a models.Attendance
	err := row.Scan(&a.ID, &a.AttendeeID, &a.WebinarID, &a.AttendedType, &a.JoinedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpsertAttendee returns the attendee for email, creating it with name if absent.
// An existing attendee keeps its name.
func (r *Repository) UpsertAttendee(ctx context.Context, email, name string) (*models.Attendee, error) {
	const q = `INSERT INTO attendees (email, name) VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id, email, name, call_status, created_at, updated_at`
	var a models.Attendee
	err := r.pool.QueryRow(ctx, q, email, name).Scan(&a.ID, &a.Email, &a.Name, &a.CallStatus, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert attendee: %w", err)
	}
	return &a, nil
}

// GetAttendee returns an attendee by ID, or nil if none exists.
func (r *Repository) GetAttendee(ctx context.Context, id uuid.UUID) (*models.Attendee, error) {
	const q = `SELECT id, email, name, call_status, created_at, updated_at FROM attendees WHERE id = $1`
	var a models.Attendee
	err := r.pool.QueryRow(ctx, q, id).Scan(&a.ID, &a.Email, &a.Name, &a.CallStatus, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get attendee: %w", err)
	}
	return &a, nil
}

// CreateAttendance inserts a REGISTERED attendance. When the pair already exists the
// stored row is returned with created=false.
func (r *Repository) CreateAttendance(ctx context.Context, attendeeID, webinarID uuid.UUID, at time.Time) (*models.Attendance, bool, error) {
	const q = `INSERT INTO attendances (attendee_id, webinar_id, attended_type, joined_at)
		VALUES ($1, $2, 'REGISTERED', $3)
		ON CONFLICT (attendee_id, webinar_id) DO NOTHING
		RETURNING ` + attendanceColumns
	a, err := scanAttendance(r.pool.QueryRow(ctx, q, attendeeID, webinarID, at))
	if err == nil {
		return a, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("create attendance: %w", err)
	}
	existing, err := r.GetAttendance(ctx, attendeeID, webinarID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("create attendance: row for attendee %s vanished", attendeeID)
	}
	return existing, false, nil
}

// GetAttendance returns the attendance for the pair, or nil if none exists.
func (r *Repository) GetAttendance(ctx context.Context, attendeeID, webinarID uuid.UUID) (*models.Attendance, error) {
	const q = `SELECT ` + attendanceColumns + ` FROM attendances WHERE attendee_id = $1 AND webinar_id = $2`
	a, err := scanAttendance(r.pool.QueryRow(ctx, q, attendeeID, webinarID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get attendance: %w", err)
	}
	return a, nil
}

// UpsertStage sets the stage of the pair, creating the attendance if missing.
func (r *Repository) UpsertStage(ctx context.Context, attendeeID, webinarID uuid.UUID, stage models.AttendedType, at time.Time) (*models.Attendance, error) {
	const q = `INSERT INTO attendances (attendee_id, webinar_id, attended_type, joined_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (attendee_id, webinar_id) DO UPDATE
		SET attended_type = EXCLUDED.attended_type, updated_at = $4
		RETURNING ` + attendanceColumns
	a, err := scanAttendance(r.pool.QueryRow(ctx, q, attendeeID, webinarID, string(stage), at))
	if database.IsForeignKeyViolation(err) {
		return nil, apperrors.Wrap(apperrors.KindNotFound, apperrors.CodeNotFound, "attendee or webinar not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("upsert attendance stage: %w", err)
	}
	return a, nil
}

// PromoteStage moves the pair to stage only while it is still in one of from.
func (r *Repository) PromoteStage(ctx context.Context, attendeeID, webinarID uuid.UUID, from []models.AttendedType, stage models.AttendedType, at time.Time) (bool, error) {
	const q = `UPDATE attendances SET attended_type = $3, updated_at = $5
		WHERE attendee_id = $1 AND webinar_id = $2 AND attended_type = ANY($4)`
	fromStr := make([]string, len(from))
	for i, s := range from {
		fromStr[i] = string(s)
	}
	tag, err := r.pool.Exec(ctx, q, attendeeID, webinarID, string(stage), fromStr, at)
	if err != nil {
		return false, fmt.Errorf("promote attendance stage: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// CountByStage returns the number of attendances per persisted stage.
func (r *Repository) CountByStage(ctx context.Context, webinarID uuid.UUID) (map[models.AttendedType]int, error) {
	const q = `SELECT attended_type, COUNT(*) FROM attendances WHERE webinar_id = $1 GROUP BY attended_type`
	rows, err := r.pool.Query(ctx, q, webinarID)
	if err != nil {
		return nil, fmt.Errorf("count attendances: %w", err)
	}
	defer rows.Close()
	counts := make(map[models.AttendedType]int)
	for rows.Next() {
		var stage models.AttendedType
		var n int
		if err := rows.Scan(&stage, &n); err != nil {
			return nil, err
		}
		counts[stage] = n
	}
	return counts, rows.Err()
}

// UsersByStage returns up to limit attendees whose attendance is in one of stages,
// most recently joined first.
func (r *Repository) UsersByStage(ctx context.Context, webinarID uuid.UUID, stages []models.AttendedType, limit int) ([]StageUser, error) {
	const q = `SELECT a.id, a.name, a.email, t.joined_at, a.call_status, a.created_at, a.updated_at
		FROM attendances t JOIN attendees a ON a.id = t.attendee_id
		WHERE t.webinar_id = $1 AND t.attended_type = ANY($2)
		ORDER BY t.joined_at DESC
		LIMIT $3`
	stageStr := make([]string, len(stages))
	for i, s := range stages {
		stageStr[i] = string(s)
	}
	rows, err := r.pool.Query(ctx, q, webinarID, stageStr, limit)
	if err != nil {
		return nil, fmt.Errorf("list stage users: %w", err)
	}
	defer rows.Close()
	users := []StageUser{}
	for rows.Next() {
		var u StageUser
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.AttendedAt, &u.CallStatus, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SetCallStatus updates the voice call status of an attendee.
func (r *Repository) SetCallStatus(ctx context.Context, attendeeID uuid.UUID, status models.CallStatus) (bool, error) {
	const q = `UPDATE attendees SET call_status = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, attendeeID, string(status))
	if err != nil {
		return false, fmt.Errorf("set call status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// LeadsByPresenter returns every attendee of the presenter's webinars with the tags of
// those webinars.
func (r *Repository) LeadsByPresenter(ctx context.Context, presenterID uuid.UUID) ([]Lead, error) {
	const q = `SELECT a.id, a.name, a.email, a.call_status,
			COALESCE(array_agg(DISTINCT tag) FILTER (WHERE tag IS NOT NULL), '{}'),
			MAX(t.joined_at)
		FROM attendees a
		JOIN attendances t ON t.attendee_id = a.id
		JOIN webinars w ON w.id = t.webinar_id
		LEFT JOIN LATERAL unnest(w.tags) AS tag ON TRUE
		WHERE w.presenter_id = $1
		GROUP BY a.id
		ORDER BY MAX(t.joined_at) DESC`
	rows, err := r.pool.Query(ctx, q, presenterID)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()
	leads := []Lead{}
	for rows.Next() {
		var l Lead
		if err := rows.Scan(&l.ID, &l.Name, &l.Email, &l.CallStatus, &l.Tags, &l.LastJoinedAt); err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

// AttendeeEmails returns the recipients for webinar notifications.
func (r *Repository) AttendeeEmails(ctx context.Context, webinarID uuid.UUID) ([]models.Attendee, error) {
	const q = `SELECT a.id, a.email, a.name, a.call_status, a.created_at, a.updated_at
		FROM attendances t JOIN attendees a ON a.id = t.attendee_id
		WHERE t.webinar_id = $1
		ORDER BY t.joined_at`
	rows, err := r.pool.Query(ctx, q, webinarID)
	if err != nil {
		return nil, fmt.Errorf("list attendee emails: %w", err)
	}
	defer rows.Close()
	var list []models.Attendee
	for rows.Next() {
		var a models.Attendee
		if err := rows.Scan(&a.ID, &a.Email, &a.Name, &a.CallStatus, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}
