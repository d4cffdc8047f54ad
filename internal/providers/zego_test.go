package providers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/callroom/broker/config"
	"github.com/callroom/broker/internal/models"
)

const testZegoSecret = "fa94dd0f974cf2e293728a526b028271"

func newTestZego(t *testing.T, appID, secret string) Provider {
	t.Helper()
	p, err := NewZego(config.ProviderConfig{
		Name:    config.ProviderZego,
		Enabled: true,
		Options: map[string]string{"app_id": appID, "server_secret": secret},
	}, nil)
	require.NoError(t, err)
	return p
}

func TestNewZegoRejectsBadAppID(t *testing.T) {
	_, err := NewZego(config.ProviderConfig{Options: map[string]string{"app_id": "not-a-number"}}, nil)
	require.Error(t, err)
}

func TestZegoIsConfigured(t *testing.T) {
	require.True(t, newTestZego(t, "1234567", testZegoSecret).IsConfigured())
	require.False(t, newTestZego(t, "", testZegoSecret).IsConfigured())
	require.False(t, newTestZego(t, "1234567", "").IsConfigured())
}

func TestZegoGenerateToken(t *testing.T) {
	z := newTestZego(t, "1234567", testZegoSecret)
	res, err := z.GenerateToken(context.Background(), "session_1", AccountSubject("alice"), models.RoleParticipant)
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	require.Equal(t, "1234567", res.AppID)
	require.Equal(t, "alice", res.Subject)
	require.Equal(t, config.ProviderZego, res.Provider)

	res, err = z.GenerateToken(context.Background(), "session_1", UIDSubject(0), models.RoleAudience)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(res.Subject, "user_"))

	res, err = z.GenerateToken(context.Background(), "session_1", UIDSubject(99), models.RoleAudience)
	require.NoError(t, err)
	require.Equal(t, "99", res.Subject)
}

func TestZegoGenerateTokenNotConfigured(t *testing.T) {
	z := newTestZego(t, "", "")
	_, err := z.GenerateToken(context.Background(), "session_1", AccountSubject("alice"), models.RoleHost)
	require.True(t, errors.Is(err, ErrNotConfigured))
}

func TestGenerateRoomTokenValidatesSecret(t *testing.T) {
	_, err := GenerateRoomToken(1, "short", "room", "alice", models.RoleHost, TokenTTLSeconds)
	require.Error(t, err)

	_, err = GenerateRoomToken(0, testZegoSecret, "room", "alice", models.RoleHost, TokenTTLSeconds)
	require.Error(t, err)
}

func TestZegoSecondaryToken(t *testing.T) {
	z := newTestZego(t, "1234567", testZegoSecret)
	res, err := GenerateSecondaryToken(context.Background(), z, AccountSubject("alice"))
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)

	bad := newTestZego(t, "1234567", "too-short")
	_, err = GenerateSecondaryToken(context.Background(), bad, AccountSubject("alice"))
	require.Error(t, err)
}
