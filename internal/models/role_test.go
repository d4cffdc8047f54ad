package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoleCapabilities(t *testing.T) {
	require.True(t, RoleHost.CanPublish())
	require.True(t, RoleParticipant.CanPublish())
	require.False(t, RoleAudience.CanPublish())

	require.True(t, RoleAudience.Valid())
	require.False(t, Role("admin").Valid())
	require.False(t, Role("").Valid())
}

func TestSessionIsActive(t *testing.T) {
	s := Session{Status: SessionActive}
	require.True(t, s.IsActive())
	s.Status = SessionEnded
	require.False(t, s.IsActive())
}
