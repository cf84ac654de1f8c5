package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ServerConfig holds runtime server configuration
type ServerConfig struct {
	HTTPPort            int
	JWTSecret           string
	MaxConnectionsPerIP int
	RateLimitMessages   int
	RateLimitWindow     time.Duration
	PurgeInterval       time.Duration
	MaxMessageLength    int
	HistoryLimit        int
}

// DefaultConfig returns default server configuration
func DefaultConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:            5000,
		JWTSecret:           "your-secret-key",
		MaxConnectionsPerIP: 10,
		RateLimitMessages:   5,                // per window
		RateLimitWindow:     60 * time.Second, // window size
		PurgeInterval:       60 * time.Second, // stale window reclamation
		MaxMessageLength:    1000,             // characters, post-sanitization
		HistoryLimit:        50,               // messages per history replay
	}
}

// TOMLConfig represents the structure of the server config file
type TOMLConfig struct {
	Server ServerSection `toml:"server"`
	Limits LimitsSection `toml:"limits"`
}

type ServerSection struct {
	HTTPPort     int    `toml:"http_port"`
	DatabasePath string `toml:"database_path"`
	JWTSecret    string `toml:"jwt_secret"`
}

type LimitsSection struct {
	MaxConnectionsPerIP    int `toml:"max_connections_per_ip"`
	RateLimitMessages      int `toml:"rate_limit_messages"`
	RateLimitWindowSeconds int `toml:"rate_limit_window_seconds"`
	PurgeIntervalSeconds   int `toml:"purge_interval_seconds"`
	MaxMessageLength       int `toml:"max_message_length"`
	HistoryLimit           int `toml:"history_limit"`
}

// DefaultTOMLConfig returns the default TOML configuration
func DefaultTOMLConfig() TOMLConfig {
	return TOMLConfig{
		Server: ServerSection{
			HTTPPort:     5000,
			DatabasePath: "~/.sakeva/chat.db",
			JWTSecret:    "your-secret-key",
		},
		Limits: LimitsSection{
			MaxConnectionsPerIP:    10,
			RateLimitMessages:      5,
			RateLimitWindowSeconds: 60,
			PurgeIntervalSeconds:   60,
			MaxMessageLength:       1000,
			HistoryLimit:           50,
		},
	}
}

// LoadConfig loads configuration from a TOML file, creates default if not found
func LoadConfig(path string) (TOMLConfig, error) {
	path, err := expandHome(path)
	if err != nil {
		return TOMLConfig{}, err
	}

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// File doesn't exist, create default config
		config := DefaultTOMLConfig()
		if err := writeDefaultConfig(path, config); err != nil {
			// If we can't write, just return defaults without error
			// (might be a permissions issue, but we can still run)
			return config, nil
		}
		return config, nil
	}

	// Load from file
	var config TOMLConfig
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return TOMLConfig{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// writeDefaultConfig writes the default config to a file
func writeDefaultConfig(path string, config TOMLConfig) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	header := `# SakevaNEWS chat relay configuration
# This file was auto-generated with default values
# Edit as needed and restart the server for changes to take effect

`
	if _, err := f.WriteString(header); err != nil {
		return err
	}

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// ToServerConfig converts TOMLConfig to ServerConfig, falling back to
// defaults for unset values
func (c *TOMLConfig) ToServerConfig() ServerConfig {
	cfg := DefaultConfig()

	if c.Server.HTTPPort != 0 {
		cfg.HTTPPort = c.Server.HTTPPort
	}

	if strings.TrimSpace(c.Server.JWTSecret) != "" {
		cfg.JWTSecret = c.Server.JWTSecret
	}

	if c.Limits.MaxConnectionsPerIP != 0 {
		cfg.MaxConnectionsPerIP = c.Limits.MaxConnectionsPerIP
	}

	if c.Limits.RateLimitMessages != 0 {
		cfg.RateLimitMessages = c.Limits.RateLimitMessages
	}

	if c.Limits.RateLimitWindowSeconds != 0 {
		cfg.RateLimitWindow = time.Duration(c.Limits.RateLimitWindowSeconds) * time.Second
	}

	if c.Limits.PurgeIntervalSeconds != 0 {
		cfg.PurgeInterval = time.Duration(c.Limits.PurgeIntervalSeconds) * time.Second
	}

	if c.Limits.MaxMessageLength != 0 {
		cfg.MaxMessageLength = c.Limits.MaxMessageLength
	}

	if c.Limits.HistoryLimit != 0 {
		cfg.HistoryLimit = c.Limits.HistoryLimit
	}

	return cfg
}

// GetDatabasePath returns the database path with ~ expanded
func (c *TOMLConfig) GetDatabasePath() (string, error) {
	return expandHome(c.Server.DatabasePath)
}

// expandHome expands a leading ~/ in a path
func expandHome(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}
	return path, nil
}
