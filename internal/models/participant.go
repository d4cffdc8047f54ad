package models

import (
	"time"

	"github.com/google/uuid"
)

// ParticipantStatus is the membership state. The only transition is active -> left.
type ParticipantStatus string

const (
	ParticipantActive ParticipantStatus = "active"
	ParticipantLeft   ParticipantStatus = "left"
)

// Participant is one user's membership in a session.
type Participant struct {
	ID        uuid.UUID         `json:"id"`
	SessionID uuid.UUID         `json:"session_id"`
	UserID    string            `json:"user_id"`
	UserName  string            `json:"user_name"`
	Role      Role              `json:"role"`
	Status    ParticipantStatus `json:"status"`
	JoinedAt  time.Time         `json:"joined_at"`
	LeftAt    *time.Time        `json:"left_at,omitempty"`
}
