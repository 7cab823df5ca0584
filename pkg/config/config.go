// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// AppConfig holds the non-database application settings.
type AppConfig struct {
	// HTTPPort is the listen port of the HTTP server.
	HTTPPort string

	// UsersHomeDir is the parent directory of all per-user home directories.
	UsersHomeDir string

	// ResourceDir holds binary response artifacts, keyed by action and chunk.
	ResourceDir string

	// PrivateKeyPath and PublicKeyPath locate the PEM-encoded RSA key pair
	// used to sign and verify access tokens.
	PrivateKeyPath string
	PublicKeyPath  string

	// TokenExpiration is the lifetime of issued access tokens.
	TokenExpiration time.Duration

	// WorkerCount and QueueSize shape the action worker pool.
	WorkerCount int
	QueueSize   int
}

// LoadFromEnv reads AppConfig from environment variables, applying defaults.
func LoadFromEnv() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		UsersHomeDir:   getEnv("USERS_HOME_DIR", "./data/users"),
		ResourceDir:    getEnv("RESOURCE_DIR", "./data/resources"),
		PrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./keys/private.pem"),
		PublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./keys/public.pem"),
	}

	var err error
	if cfg.WorkerCount, err = getEnvInt("WORKER_COUNT", 8); err != nil {
		return nil, err
	}
	if cfg.QueueSize, err = getEnvInt("QUEUE_SIZE", 256); err != nil {
		return nil, err
	}
	if cfg.TokenExpiration, err = getEnvDuration("TOKEN_EXPIRATION", 24*time.Hour); err != nil {
		return nil, err
	}

	if cfg.WorkerCount <= 0 {
		return nil, fmt.Errorf("WORKER_COUNT must be positive, got %d", cfg.WorkerCount)
	}
	if cfg.QueueSize <= 0 {
		return nil, fmt.Errorf("QUEUE_SIZE must be positive, got %d", cfg.QueueSize)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
