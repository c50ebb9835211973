// Package config loads process configuration from environment variables.
//
// Everything security-sensitive (encryption key, OAuth client credentials,
// JWT secret) is validated at startup: a process with a bad key must refuse
// to start rather than degrade at first use.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"time"
)

// Config holds all runtime configuration for the jobpilot server.
type Config struct {
	Port        string // HTTP listen port
	DatabaseDSN string // PostgreSQL DSN

	EncryptionKey      string // base64-encoded 32-byte AES key for token blobs
	GoogleClientID     string // OAuth client id
	GoogleClientSecret string // OAuth client secret
	JWTSecret          string // HS256 key for inbound session tokens

	OptimizerURL     string        // AI optimization service endpoint
	OptimizerTimeout time.Duration // bound on one optimization call, retries included

	StorageDir    string        // root directory for stored CV files
	PublicBaseURL string        // external base URL used in signed links
	SignSecret    string        // HMAC key for signed URLs (defaults to JWTSecret)
	SignedURLTTL  time.Duration // lifetime of signed CV links

	ProviderTimeout time.Duration // bound on OAuth provider calls
}

// Load reads configuration from the environment. Call Validate before use.
func Load() *Config {
	cfg := &Config{
		Port:               getenv("PORT", "8080"),
		DatabaseDSN:        os.Getenv("DATABASE_DSN"),
		EncryptionKey:      os.Getenv("ENCRYPTION_KEY"),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		OptimizerURL:       os.Getenv("OPTIMIZER_URL"),
		OptimizerTimeout:   getdur("OPTIMIZER_TIMEOUT", time.Minute),
		StorageDir:         getenv("STORAGE_DIR", "./data/cvs"),
		SignSecret:         os.Getenv("STORAGE_SIGN_SECRET"),
		SignedURLTTL:       getdur("SIGNED_URL_TTL", 15*time.Minute),
		ProviderTimeout:    getdur("PROVIDER_TIMEOUT", 10*time.Second),
	}
	cfg.PublicBaseURL = getenv("PUBLIC_BASE_URL", "http://localhost:"+cfg.Port)
	if cfg.SignSecret == "" {
		cfg.SignSecret = cfg.JWTSecret
	}
	return cfg
}

// Validate reports the first configuration problem found. Any error here is
// fatal at startup.
func (c *Config) Validate() error {
	if c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN is required")
	}
	if c.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	key, err := base64.StdEncoding.DecodeString(c.EncryptionKey)
	if err != nil {
		return fmt.Errorf("ENCRYPTION_KEY is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
	}
	if c.GoogleClientID == "" || c.GoogleClientSecret == "" {
		return fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET is required and must be at least 32 characters")
	}
	if c.OptimizerURL == "" {
		return fmt.Errorf("OPTIMIZER_URL is required")
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getdur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
