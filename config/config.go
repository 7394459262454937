package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// DefaultAdminEmail is the administrative account for the platform.
const DefaultAdminEmail = "admin@maba.org"

// Config holds the application configuration
type Config struct {
	KratosURL      string        // Kratos internal URL (Frontend API - port 4433)
	KratosAdminURL string        // Kratos Admin API URL (port 4434)
	Port           string        // Service port
	CacheTTL       time.Duration // Session cache TTL

	RedisAddr string // Redis address for the profile store
	RedisDB   int    // Redis logical database

	CSRFSecret       string // CSRF secret for token generation
	AuthSharedSecret string // Shared secret for internal endpoints

	BackendTokenSecret   string        // Secret for signing backend JWT tokens
	BackendTokenIssuer   string        // JWT issuer claim
	BackendTokenAudience string        // JWT audience claim
	BackendTokenTTL      time.Duration // JWT token TTL

	OIDCIssuerURL    string // Federated provider discovery issuer
	OIDCClientID     string // Federated provider client ID
	OIDCClientSecret string // Federated provider client secret
	OIDCRedirectURL  string // Loopback redirect for the consent flow

	AdminEmail string // Address granted admin regardless of claims
}

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	config := &Config{
		KratosURL:            getEnv("KRATOS_URL", "http://kratos:4433"),
		KratosAdminURL:       getEnv("KRATOS_ADMIN_URL", "http://kratos:4434"),
		Port:                 getEnv("PORT", "8888"),
		CacheTTL:             5 * time.Minute, // Default 5 minutes
		RedisAddr:            getEnv("REDIS_ADDR", "redis:6379"),
		CSRFSecret:           getEnv("CSRF_SECRET", ""),
		AuthSharedSecret:     getEnv("AUTH_SHARED_SECRET", ""),
		BackendTokenSecret:   getEnv("BACKEND_TOKEN_SECRET", ""),
		BackendTokenIssuer:   getEnv("BACKEND_TOKEN_ISSUER", "maba-auth"),
		BackendTokenAudience: getEnv("BACKEND_TOKEN_AUDIENCE", "maba-backend"),
		BackendTokenTTL:      5 * time.Minute, // Default 5 minutes
		OIDCIssuerURL:        getEnv("OIDC_ISSUER_URL", ""),
		OIDCClientID:         getEnv("OIDC_CLIENT_ID", ""),
		OIDCClientSecret:     getEnv("OIDC_CLIENT_SECRET", ""),
		OIDCRedirectURL:      getEnv("OIDC_REDIRECT_URL", "http://127.0.0.1:8910/callback"),
		AdminEmail:           getEnv("ADMIN_EMAIL", DefaultAdminEmail),
	}

	// Parse CACHE_TTL if provided
	if cacheTTLStr := os.Getenv("CACHE_TTL"); cacheTTLStr != "" {
		duration, err := time.ParseDuration(cacheTTLStr)
		if err != nil {
			return nil, fmt.Errorf("invalid CACHE_TTL format: %w", err)
		}
		config.CacheTTL = duration
	}

	// Parse BACKEND_TOKEN_TTL if provided
	if ttlStr := os.Getenv("BACKEND_TOKEN_TTL"); ttlStr != "" {
		duration, err := time.ParseDuration(ttlStr)
		if err != nil {
			return nil, fmt.Errorf("invalid BACKEND_TOKEN_TTL format: %w", err)
		}
		config.BackendTokenTTL = duration
	}

	// Parse REDIS_DB if provided
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		var db int
		if _, err := fmt.Sscanf(dbStr, "%d", &db); err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB format: %w", err)
		}
		config.RedisDB = db
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.KratosURL == "" {
		return fmt.Errorf("KRATOS_URL cannot be empty")
	}

	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}

	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR cannot be empty")
	}

	if c.AdminEmail == "" {
		return fmt.Errorf("ADMIN_EMAIL cannot be empty")
	}

	return nil
}

// getEnv retrieves an environment variable or returns a fallback value
func getEnv(key, fallback string) string {
	// Check for _FILE suffix
	if fileValue := os.Getenv(key + "_FILE"); fileValue != "" {
		content, err := os.ReadFile(fileValue)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}

	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
