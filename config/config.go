package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Provider names known to the registry.
const (
	ProviderAgora   = "agora"
	ProviderZego    = "zego"
	ProviderLiveKit = "livekit"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Providers []ProviderConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// StoreConfig selects the session store backend.
type StoreConfig struct {
	Driver string // postgres | memory
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	PoolMax  int
	PoolMin  int
}

// RedisConfig holds Redis connection settings. An empty Addr disables the broadcast relay.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address is configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// AuthConfig holds the optional bearer token settings. An empty Secret disables auth.
type AuthConfig struct {
	JWTSecret string
}

// ProviderConfig is one video provider entry, in declared order.
type ProviderConfig struct {
	Name    string
	Enabled bool
	Options map[string]string
}

// Option returns the named option or "".
func (p ProviderConfig) Option(key string) string {
	return p.Options[key]
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	driver := strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres))
	if driver != StoreDriverPostgres && driver != StoreDriverMemory {
		return nil, fmt.Errorf("invalid STORE_DRIVER %q: valid options are %q or %q", driver, StoreDriverPostgres, StoreDriverMemory)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "3001"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:8080"),
		},
		Store: StoreConfig{
			Driver: driver,
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "sessions"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			PoolMax:  getEnvInt("DB_POOL_MAX", 5),
			PoolMin:  getEnvInt("DB_POOL_MIN", 0),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		},
	}
	cfg.Providers = loadProviders(splitTrim(getEnv("PROVIDERS", "agora,zego,livekit"), ","))
	return cfg, nil
}

// loadProviders builds provider entries in the declared order. Unknown names are kept so the
// registry can warn about them.
func loadProviders(order []string) []ProviderConfig {
	out := make([]ProviderConfig, 0, len(order))
	for _, name := range order {
		name = strings.ToLower(name)
		var entry ProviderConfig
		switch name {
		case ProviderAgora:
			entry = ProviderConfig{
				Name:    name,
				Enabled: getEnvBool("AGORA_ENABLED", true),
				Options: map[string]string{
					"app_id":          getEnv("AGORA_APP_ID", ""),
					"app_certificate": getEnv("AGORA_APP_CERTIFICATE", ""),
				},
			}
		case ProviderZego:
			entry = ProviderConfig{
				Name:    name,
				Enabled: getEnvBool("ZEGO_ENABLED", false),
				Options: map[string]string{
					"app_id":        getEnv("ZEGO_APP_ID", ""),
					"server_secret": getEnv("ZEGO_SERVER_SECRET", ""),
				},
			}
		case ProviderLiveKit:
			entry = ProviderConfig{
				Name:    name,
				Enabled: getEnvBool("LIVEKIT_ENABLED", false),
				Options: map[string]string{
					"api_key":    getEnv("LIVEKIT_API_KEY", ""),
					"api_secret": getEnv("LIVEKIT_API_SECRET", ""),
					"ws_url":     getEnv("LIVEKIT_WS_URL", ""),
				},
			}
		default:
			entry = ProviderConfig{Name: name, Enabled: true}
		}
		out = append(out, entry)
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
