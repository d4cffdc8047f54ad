package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/callroom/broker/internal/models"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const participantColumns = `id, session_id, user_id, user_name, role, status, joined_at, left_at`

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// translate maps driver errors onto the store contract.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			if pgErr.ConstraintName == "uq_participants_active" {
				return ErrDuplicateParticipant
			}
			return fmt.Errorf("%w: %s: duplicate key %s", ErrConflict, op, pgErr.ConstraintName)
		case pgForeignKeyViolation:
			return ErrSessionNotFound
		}
	}
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

func insertParticipant(ctx context.Context, tx pgx.Tx, p *models.Participant) error {
	const q = `INSERT INTO participants (id, session_id, user_id, user_name, role, status, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := tx.Exec(ctx, q, p.ID, p.SessionID, p.UserID, p.UserName, p.Role, p.Status, p.JoinedAt)
	return err
}

// CreateSession implements Store.
func (r *PostgresStore) CreateSession(ctx context.Context, s *models.Session, host *models.Participant) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const q = `INSERT INTO sessions (id, host_id, host_name, title, provider, channel_name, status, started_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING created_at, updated_at`
		if err := tx.QueryRow(ctx, q, s.ID, s.HostID, s.HostName, s.Title, s.Provider, s.ChannelName, s.Status, s.StartedAt).
			Scan(&s.CreatedAt, &s.UpdatedAt); err != nil {
			return err
		}
		return insertParticipant(ctx, tx, host)
	})
	return translate("create session", err)
}

// GetSession implements Store.
func (r *PostgresStore) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	const q = `SELECT id, host_id, host_name, title, provider, channel_name, status, started_at, ended_at, created_at, updated_at
		FROM sessions WHERE id = $1`
	var s models.Session
	err := r.pool.QueryRow(ctx, q, id).Scan(&s.ID, &s.HostID, &s.HostName, &s.Title, &s.Provider, &s.ChannelName, &s.Status, &s.StartedAt, &s.EndedAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, translate("get session", err)
	}
	return &s, nil
}

// EndSession implements Store.
func (r *PostgresStore) EndSession(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	var ended bool
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE sessions SET status = 'ended', ended_at = $2, updated_at = NOW() WHERE id = $1 AND status = 'active'`,
			id, at)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			var exists int
			if err := tx.QueryRow(ctx, `SELECT 1 FROM sessions WHERE id = $1`, id).Scan(&exists); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return ErrSessionNotFound
				}
				return err
			}
			return nil
		}
		ended = true
		_, err = tx.Exec(ctx,
			`UPDATE participants SET status = 'left', left_at = $2, updated_at = NOW() WHERE session_id = $1 AND status = 'active'`,
			id, at)
		return err
	})
	if errors.Is(err, ErrSessionNotFound) {
		return false, err
	}
	return ended, translate("end session", err)
}

// AddParticipant implements Store.
func (r *PostgresStore) AddParticipant(ctx context.Context, p *models.Participant) error {
	const q = `INSERT INTO participants (id, session_id, user_id, user_name, role, status, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, q, p.ID, p.SessionID, p.UserID, p.UserName, p.Role, p.Status, p.JoinedAt)
	return translate("add participant", err)
}

// FindActiveParticipant implements Store.
func (r *PostgresStore) FindActiveParticipant(ctx context.Context, sessionID uuid.UUID, userID string) (*models.Participant, error) {
	q := `SELECT ` + participantColumns + ` FROM participants
		WHERE session_id = $1 AND user_id = $2 AND status = 'active'
		ORDER BY joined_at ASC LIMIT 1`
	var p models.Participant
	err := r.pool.QueryRow(ctx, q, sessionID, userID).Scan(&p.ID, &p.SessionID, &p.UserID, &p.UserName, &p.Role, &p.Status, &p.JoinedAt, &p.LeftAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, translate("find participant", err)
	}
	return &p, nil
}

// ListActiveParticipants implements Store.
func (r *PostgresStore) ListActiveParticipants(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error) {
	q := `SELECT ` + participantColumns + ` FROM participants
		WHERE session_id = $1 AND status = 'active' ORDER BY joined_at ASC, created_at ASC`
	rows, err := r.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, translate("list participants", err)
	}
	defer rows.Close()

	list := []models.Participant{}
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.ID, &p.SessionID, &p.UserID, &p.UserName, &p.Role, &p.Status, &p.JoinedAt, &p.LeftAt); err != nil {
			return nil, translate("scan participant", err)
		}
		list = append(list, p)
	}
	return list, translate("list participants", rows.Err())
}

// LeaveParticipant implements Store.
func (r *PostgresStore) LeaveParticipant(ctx context.Context, sessionID uuid.UUID, userID string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE participants SET status = 'left', left_at = $3, updated_at = NOW()
		 WHERE session_id = $1 AND user_id = $2 AND status = 'active'`,
		sessionID, userID, at)
	if err != nil {
		return false, translate("leave participant", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Ping implements Store.
func (r *PostgresStore) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
