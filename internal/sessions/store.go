package sessions

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/callroom/broker/internal/models"
)

// Store persists sessions and participants. Implementations return ErrSessionNotFound for
// missing sessions and ErrDuplicateParticipant when a second active row for the same
// (session, user) would be created.
type Store interface {
	// CreateSession writes the session and its host participant atomically.
	CreateSession(ctx context.Context, s *models.Session, host *models.Participant) error
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	// EndSession moves an active session to ended and every active participant to left, in one
	// transaction. It reports false and changes nothing when the session was already ended.
	EndSession(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	AddParticipant(ctx context.Context, p *models.Participant) error
	// FindActiveParticipant returns nil, nil when no active row exists.
	FindActiveParticipant(ctx context.Context, sessionID uuid.UUID, userID string) (*models.Participant, error)
	// ListActiveParticipants returns active rows in join order.
	ListActiveParticipants(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error)
	// LeaveParticipant moves the user's active row to left. It reports false when none existed.
	LeaveParticipant(ctx context.Context, sessionID uuid.UUID, userID string, at time.Time) (bool, error)

	Ping(ctx context.Context) error
}
