package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/callroom/broker/config"
	"github.com/callroom/broker/internal/models"
)

const (
	testLiveKitKey    = "APIkey123"
	testLiveKitSecret = "livekit-test-secret-that-is-long-enough"
)

func newTestLiveKit(t *testing.T, key, secret string) Provider {
	t.Helper()
	p, err := NewLiveKit(config.ProviderConfig{
		Name:    config.ProviderLiveKit,
		Enabled: true,
		Options: map[string]string{"api_key": key, "api_secret": secret, "ws_url": "wss://lk.example.com"},
	}, nil)
	require.NoError(t, err)
	return p
}

func parseLiveKitClaims(t *testing.T, token string) jwt.MapClaims {
	t.Helper()
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(testLiveKitSecret), nil
	})
	require.NoError(t, err)
	return claims
}

func TestLiveKitGenerateTokenGrants(t *testing.T) {
	lk := newTestLiveKit(t, testLiveKitKey, testLiveKitSecret)
	require.Equal(t, "wss://lk.example.com", lk.(*LiveKit).WsURL())

	res, err := lk.GenerateToken(context.Background(), "session_room", AccountSubject("alice"), models.RoleHost)
	require.NoError(t, err)
	require.Equal(t, testLiveKitKey, res.AppID)
	require.Equal(t, "alice", res.Subject)

	claims := parseLiveKitClaims(t, res.Token)
	require.Equal(t, "alice", claims["sub"])
	require.Equal(t, testLiveKitKey, claims["iss"])
	video, ok := claims["video"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "session_room", video["room"])
	require.Equal(t, true, video["canPublish"])

	res, err = lk.GenerateToken(context.Background(), "session_room", AccountSubject("carol"), models.RoleAudience)
	require.NoError(t, err)
	video = parseLiveKitClaims(t, res.Token)["video"].(map[string]interface{})
	require.Equal(t, false, video["canPublish"])
	require.Equal(t, true, video["canSubscribe"])
}

func TestLiveKitNumericSubject(t *testing.T) {
	lk := newTestLiveKit(t, testLiveKitKey, testLiveKitSecret)
	res, err := lk.GenerateToken(context.Background(), "room", UIDSubject(12), models.RoleParticipant)
	require.NoError(t, err)
	require.Equal(t, "12", res.Subject)

	res, err = lk.GenerateToken(context.Background(), "room", UIDSubject(0), models.RoleParticipant)
	require.NoError(t, err)
	require.NotEmpty(t, res.Subject)
	require.NotEqual(t, "0", res.Subject)
}

func TestLiveKitHasNoSecondaryToken(t *testing.T) {
	lk := newTestLiveKit(t, testLiveKitKey, testLiveKitSecret)
	_, err := GenerateSecondaryToken(context.Background(), lk, AccountSubject("alice"))
	require.True(t, errors.Is(err, ErrSecondaryUnsupported))
}

func TestLiveKitNotConfigured(t *testing.T) {
	lk := newTestLiveKit(t, "", testLiveKitSecret)
	require.False(t, lk.IsConfigured())
	_, err := lk.GenerateToken(context.Background(), "room", AccountSubject("alice"), models.RoleHost)
	require.True(t, errors.Is(err, ErrNotConfigured))
}
