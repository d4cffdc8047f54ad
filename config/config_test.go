package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("PROVIDERS", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("AGORA_APP_ID", "app")
	t.Setenv("AGORA_APP_CERTIFICATE", "cert")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, StoreDriverPostgres, cfg.Store.Driver)
	require.False(t, cfg.Redis.Enabled())

	require.Len(t, cfg.Providers, 3)
	require.Equal(t, ProviderAgora, cfg.Providers[0].Name)
	require.True(t, cfg.Providers[0].Enabled)
	require.Equal(t, "app", cfg.Providers[0].Option("app_id"))
	require.Equal(t, "cert", cfg.Providers[0].Option("app_certificate"))
	require.Equal(t, ProviderZego, cfg.Providers[1].Name)
	require.False(t, cfg.Providers[1].Enabled)
	require.Equal(t, ProviderLiveKit, cfg.Providers[2].Name)
}

func TestLoadProviderOrder(t *testing.T) {
	t.Setenv("PROVIDERS", " LiveKit , agora,unknown")
	t.Setenv("LIVEKIT_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.Providers, 3)
	require.Equal(t, ProviderLiveKit, cfg.Providers[0].Name)
	require.True(t, cfg.Providers[0].Enabled)
	require.Equal(t, ProviderAgora, cfg.Providers[1].Name)
	require.Equal(t, "unknown", cfg.Providers[2].Name)
}

func TestLoadRejectsUnknownStoreDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")

	_, err := Load()
	require.Error(t, err)
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "sessions", SSLMode: "disable"}
	require.Equal(t, "postgres://u:p@db:5432/sessions?sslmode=disable", c.DSN())

	c.URL = "postgres://elsewhere/x"
	require.Equal(t, "postgres://elsewhere/x", c.DSN())
}
