package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a session. The only transition is active -> ended.
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionEnded  SessionStatus = "ended"
)

// Session is a call room bound to one provider and one channel.
type Session struct {
	ID          uuid.UUID     `json:"id"`
	HostID      string        `json:"host_id"`
	HostName    string        `json:"host_name"`
	Title       *string       `json:"title"`
	Provider    string        `json:"provider"`
	ChannelName string        `json:"channel_name"`
	Status      SessionStatus `json:"status"`
	StartedAt   time.Time     `json:"started_at"`
	EndedAt     *time.Time    `json:"ended_at"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// IsActive reports whether the session still accepts joins.
func (s *Session) IsActive() bool {
	return s.Status == SessionActive
}
