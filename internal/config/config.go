package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	ServerAddress string    `json:"serverAddress"`
	DatabasePath  string    `json:"databasePath"`
	DatabaseURL   string    `json:"databaseUrl"`
	LocalStoreDir string    `json:"localStoreDir"`
	Inference     Inference `json:"inference"`
	OAuth         OAuth     `json:"oauth"`
}

// Inference configuration for the remote contamination model
type Inference struct {
	BaseURL        string `json:"baseUrl"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

// OAuth configuration for provider sign-in. Empty clientId disables it.
type OAuth struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	RedirectURL  string `json:"redirectUrl"`
}

// UsePostgres returns true if PostgreSQL should be used
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// Default configuration
func defaultConfig() *Config {
	return &Config{
		ServerAddress: ":5000",
		DatabasePath:  "shroomify.db",
		LocalStoreDir: "./localstore",
		Inference: Inference{
			BaseURL:        "http://localhost:8500",
			TimeoutSeconds: 60,
		},
	}
}

// Load loads configuration from file or environment
func Load() (*Config, error) {
	cfg := defaultConfig()

	// Try to load from config file
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	// Override from environment variables
	if addr := os.Getenv("SERVER_ADDRESS"); addr != "" {
		cfg.ServerAddress = addr
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if dir := os.Getenv("LOCAL_STORE_DIR"); dir != "" {
		cfg.LocalStoreDir = dir
	}
	if baseURL := os.Getenv("INFERENCE_BASE_URL"); baseURL != "" {
		cfg.Inference.BaseURL = baseURL
	}
	if timeout := os.Getenv("INFERENCE_TIMEOUT_SECONDS"); timeout != "" {
		if seconds, err := strconv.Atoi(timeout); err == nil && seconds > 0 {
			cfg.Inference.TimeoutSeconds = seconds
		}
	}
	if clientID := os.Getenv("OAUTH_CLIENT_ID"); clientID != "" {
		cfg.OAuth.ClientID = clientID
	}
	if clientSecret := os.Getenv("OAUTH_CLIENT_SECRET"); clientSecret != "" {
		cfg.OAuth.ClientSecret = clientSecret
	}
	if redirectURL := os.Getenv("OAUTH_REDIRECT_URL"); redirectURL != "" {
		cfg.OAuth.RedirectURL = redirectURL
	}

	// Ensure the local store directory exists
	if err := os.MkdirAll(cfg.LocalStoreDir, 0755); err != nil {
		return nil, err
	}

	// Make the local store path absolute
	absPath, err := filepath.Abs(cfg.LocalStoreDir)
	if err != nil {
		return nil, err
	}
	cfg.LocalStoreDir = absPath

	return cfg, nil
}
