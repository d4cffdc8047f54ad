package sessions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/callroom/broker/internal/models"
)

// MemoryStore is a mutex-based in-memory Store. It enforces the same constraints as the
// PostgreSQL schema: unique channel names and one active row per (session, user).
type MemoryStore struct {
	mu           sync.RWMutex
	sessions     map[uuid.UUID]*models.Session
	participants map[uuid.UUID][]*models.Participant // session ID -> rows in insertion order
	channels     map[string]uuid.UUID
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:     make(map[uuid.UUID]*models.Session),
		participants: make(map[uuid.UUID][]*models.Participant),
		channels:     make(map[string]uuid.UUID),
	}
}

// CreateSession implements Store.
func (m *MemoryStore) CreateSession(_ context.Context, s *models.Session, host *models.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[s.ID]; exists {
		return fmt.Errorf("%w: session %s already exists", ErrConflict, s.ID)
	}
	if _, exists := m.channels[s.ChannelName]; exists {
		return fmt.Errorf("%w: channel %s already exists", ErrConflict, s.ChannelName)
	}
	now := time.Now()
	s.CreatedAt, s.UpdatedAt = now, now

	sc := *s
	hc := *host
	m.sessions[s.ID] = &sc
	m.channels[s.ChannelName] = s.ID
	m.participants[s.ID] = []*models.Participant{&hc}
	return nil
}

// GetSession implements Store.
func (m *MemoryStore) GetSession(_ context.Context, id uuid.UUID) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := *s
	return &out, nil
}

// EndSession implements Store.
func (m *MemoryStore) EndSession(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return false, ErrSessionNotFound
	}
	if s.Status != models.SessionActive {
		return false, nil
	}
	endedAt := at
	s.Status = models.SessionEnded
	s.EndedAt = &endedAt
	s.UpdatedAt = time.Now()
	for _, p := range m.participants[id] {
		if p.Status == models.ParticipantActive {
			leftAt := at
			p.Status = models.ParticipantLeft
			p.LeftAt = &leftAt
		}
	}
	return true, nil
}

// AddParticipant implements Store.
func (m *MemoryStore) AddParticipant(_ context.Context, p *models.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[p.SessionID]; !ok {
		return ErrSessionNotFound
	}
	for _, existing := range m.participants[p.SessionID] {
		if existing.UserID == p.UserID && existing.Status == models.ParticipantActive {
			return ErrDuplicateParticipant
		}
	}
	pc := *p
	m.participants[p.SessionID] = append(m.participants[p.SessionID], &pc)
	return nil
}

// FindActiveParticipant implements Store.
func (m *MemoryStore) FindActiveParticipant(_ context.Context, sessionID uuid.UUID, userID string) (*models.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.participants[sessionID] {
		if p.UserID == userID && p.Status == models.ParticipantActive {
			out := *p
			return &out, nil
		}
	}
	return nil, nil
}

// ListActiveParticipants implements Store.
func (m *MemoryStore) ListActiveParticipants(_ context.Context, sessionID uuid.UUID) ([]models.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := []models.Participant{}
	for _, p := range m.participants[sessionID] {
		if p.Status == models.ParticipantActive {
			list = append(list, *p)
		}
	}
	return list, nil
}

// Participants returns every row of a session regardless of status, in insertion order.
func (m *MemoryStore) Participants(sessionID uuid.UUID) []models.Participant {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]models.Participant, 0, len(m.participants[sessionID]))
	for _, p := range m.participants[sessionID] {
		list = append(list, *p)
	}
	return list
}

// LeaveParticipant implements Store.
func (m *MemoryStore) LeaveParticipant(_ context.Context, sessionID uuid.UUID, userID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.participants[sessionID] {
		if p.UserID == userID && p.Status == models.ParticipantActive {
			leftAt := at
			p.Status = models.ParticipantLeft
			p.LeftAt = &leftAt
			return true, nil
		}
	}
	return false, nil
}

// Ping implements Store.
func (m *MemoryStore) Ping(context.Context) error { return nil }
