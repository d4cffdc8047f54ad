// Package providers issues access tokens for third-party real-time media networks.
package providers

import (
	"context"
	"errors"
	"strconv"

	"github.com/callroom/broker/internal/models"
)

// TokenTTLSeconds is the validity of every issued token (24 hours).
const TokenTTLSeconds = 3600 * 24

var (
	// ErrNotConfigured is returned when a provider lacks its credentials.
	ErrNotConfigured = errors.New("provider is not properly configured")
	// ErrNotFound is returned by the registry for unknown or unregistered names.
	ErrNotFound = errors.New("provider not found or not configured")
	// ErrNoProviderAvailable means no provider could be registered at all.
	ErrNoProviderAvailable = errors.New("no video providers are properly configured")
	// ErrSecondaryUnsupported is returned when a provider has no companion messaging token.
	ErrSecondaryUnsupported = errors.New("provider does not support messaging tokens")
)

// Subject addresses the token holder. A non-empty Account selects identity-based addressing;
// otherwise UID selects a numeric slot, with 0 meaning the provider assigns one.
type Subject struct {
	Account string
	UID     uint32
}

// AccountSubject addresses a user by textual identity.
func AccountSubject(account string) Subject {
	return Subject{Account: account}
}

// UIDSubject addresses a user by numeric slot.
func UIDSubject(uid uint32) Subject {
	return Subject{UID: uid}
}

// SubjectForUser maps a stored user id onto an addressing mode. Empty and "0" ask the
// provider to assign a slot.
func SubjectForUser(userID string) Subject {
	if userID == "" || userID == "0" {
		return UIDSubject(0)
	}
	return AccountSubject(userID)
}

// IsAccount reports whether the subject uses identity-based addressing.
func (s Subject) IsAccount() bool {
	return s.Account != ""
}

// String renders the subject for logs and echo fields.
func (s Subject) String() string {
	if s.IsAccount() {
		return s.Account
	}
	return strconv.FormatUint(uint64(s.UID), 10)
}

// TokenResult is a minted credential.
type TokenResult struct {
	Token     string      `json:"token"`
	AppID     string      `json:"app_id"`
	Subject   string      `json:"user_id"`
	Role      models.Role `json:"role,omitempty"`
	Provider  string      `json:"provider"`
	ExpiresIn int         `json:"expires_in"`
}

// Metadata describes a provider's capabilities.
type Metadata struct {
	Name               string   `json:"name"`
	Configured         bool     `json:"configured"`
	Features           []string `json:"features"`
	MaxParticipants    int      `json:"max_participants"`
	SupportedPlatforms []string `json:"supported_platforms"`
}

// Provider issues media tokens for one back-end service.
type Provider interface {
	Name() string
	IsConfigured() bool
	// GenerateToken mints a media token for channel. Host and participant can publish;
	// audience is subscribe-only.
	GenerateToken(ctx context.Context, channel string, subject Subject, role models.Role) (*TokenResult, error)
	Metadata() Metadata
}

// MessagingProvider is implemented by providers with a companion messaging channel.
type MessagingProvider interface {
	GenerateSecondaryToken(ctx context.Context, subject Subject) (*TokenResult, error)
}

// GenerateSecondaryToken returns p's messaging token, or ErrSecondaryUnsupported.
func GenerateSecondaryToken(ctx context.Context, p Provider, subject Subject) (*TokenResult, error) {
	mp, ok := p.(MessagingProvider)
	if !ok {
		return nil, ErrSecondaryUnsupported
	}
	return mp.GenerateSecondaryToken(ctx, subject)
}

// normalizeRole treats unknown roles as participant.
func normalizeRole(role models.Role) models.Role {
	if !role.Valid() {
		return models.RoleParticipant
	}
	return role
}
