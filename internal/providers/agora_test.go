package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/callroom/broker/config"
	"github.com/callroom/broker/internal/models"
)

const (
	testAgoraAppID = "970ca35de60c44645bbae8a215061b33"
	testAgoraCert  = "5cfd2fd1755d40ecb72977518be15d3b"
)

func newTestAgora(t *testing.T, appID, cert string) *Agora {
	t.Helper()
	p, err := NewAgora(config.ProviderConfig{
		Name:    config.ProviderAgora,
		Enabled: true,
		Options: map[string]string{"app_id": appID, "app_certificate": cert},
	}, nil)
	require.NoError(t, err)
	return p.(*Agora)
}

func TestAgoraIsConfigured(t *testing.T) {
	require.True(t, newTestAgora(t, testAgoraAppID, testAgoraCert).IsConfigured())
	require.False(t, newTestAgora(t, testAgoraAppID, "").IsConfigured())
	require.False(t, newTestAgora(t, "", testAgoraCert).IsConfigured())
}

func TestAgoraGenerateTokenNotConfigured(t *testing.T) {
	a := newTestAgora(t, "", "")
	_, err := a.GenerateToken(context.Background(), "session_x", AccountSubject("u1"), models.RoleHost)
	require.True(t, errors.Is(err, ErrNotConfigured))

	_, err = a.GenerateSecondaryToken(context.Background(), AccountSubject("u1"))
	require.True(t, errors.Is(err, ErrNotConfigured))
}

func TestAgoraGenerateTokenAccountAndUID(t *testing.T) {
	a := newTestAgora(t, testAgoraAppID, testAgoraCert)
	ctx := context.Background()

	res, err := a.GenerateToken(ctx, "session_abc", AccountSubject("alice"), models.RoleHost)
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	require.Equal(t, "007", res.Token[:3])
	require.Equal(t, testAgoraAppID, res.AppID)
	require.Equal(t, "alice", res.Subject)
	require.Equal(t, models.RoleHost, res.Role)
	require.Equal(t, config.ProviderAgora, res.Provider)
	require.Equal(t, 86400, res.ExpiresIn)

	res, err = a.GenerateToken(ctx, "session_abc", UIDSubject(0), models.RoleAudience)
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	require.Equal(t, "0", res.Subject)
	require.Equal(t, models.RoleAudience, res.Role)
}

func TestAgoraGenerateTokenUnknownRoleFallsBackToParticipant(t *testing.T) {
	a := newTestAgora(t, testAgoraAppID, testAgoraCert)
	res, err := a.GenerateToken(context.Background(), "session_abc", AccountSubject("bob"), models.Role("moderator"))
	require.NoError(t, err)
	require.Equal(t, models.RoleParticipant, res.Role)
}

func TestAgoraRoleMapping(t *testing.T) {
	require.Equal(t, agoraRole(models.RoleHost), agoraRole(models.RoleParticipant))
	require.NotEqual(t, agoraRole(models.RoleHost), agoraRole(models.RoleAudience))
}

func TestAgoraSecondaryToken(t *testing.T) {
	a := newTestAgora(t, testAgoraAppID, testAgoraCert)
	res, err := GenerateSecondaryToken(context.Background(), a, AccountSubject("alice"))
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	require.Equal(t, "alice", res.Subject)
	require.Equal(t, TokenTTLSeconds, res.ExpiresIn)
}

func TestAgoraMetadata(t *testing.T) {
	md := newTestAgora(t, testAgoraAppID, testAgoraCert).Metadata()
	require.Equal(t, "agora", md.Name)
	require.True(t, md.Configured)
	require.Contains(t, md.Features, "real-time-messaging")
	require.Equal(t, 17, md.MaxParticipants)
	require.ElementsMatch(t, []string{"web", "mobile", "desktop"}, md.SupportedPlatforms)
}

func TestSubjectForUser(t *testing.T) {
	require.Equal(t, UIDSubject(0), SubjectForUser(""))
	require.Equal(t, UIDSubject(0), SubjectForUser("0"))
	s := SubjectForUser("42")
	require.True(t, s.IsAccount())
	require.Equal(t, "42", s.String())
	require.Equal(t, "7", UIDSubject(7).String())
}
