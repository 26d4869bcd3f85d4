// Package config holds the server settings, read from an optional YAML file
// on top of built-in defaults.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration.
type Config struct {
	Addr         string        `yaml:"addr"`
	DB           string        `yaml:"db"`
	AdminUser    string        `yaml:"admin_user"`
	Log          string        `yaml:"log"`
	SignupPoints int64         `yaml:"signup_points"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
	CORS         CORS          `yaml:"cors"`
	Uploads      Uploads       `yaml:"uploads"`
}

// CORS lists the browser origins allowed to call the API.
type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Uploads bounds image uploads.
type Uploads struct {
	MaxFiles     int   `yaml:"max_files"`
	MaxFileMB    int64 `yaml:"max_file_mb"`
	MaxDimension int   `yaml:"max_dimension"`
}

// MaxFileBytes returns the per-file limit in bytes.
func (u Uploads) MaxFileBytes() int64 { return u.MaxFileMB << 20 }

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:         ":8080",
		DB:           "rewear.sqlite3",
		AdminUser:    "Admin",
		SignupPoints: 100,
		TokenTTL:     7 * 24 * time.Hour,
		Uploads: Uploads{
			MaxFiles:     5,
			MaxFileMB:    5,
			MaxDimension: 800,
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path. Keys missing
// from the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration can be served.
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr must be set")
	}
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return fmt.Errorf("invalid addr %q: %w", c.Addr, err)
	}
	if c.DB == "" {
		return errors.New("db must be set")
	}
	if c.AdminUser == "" {
		return errors.New("admin_user must be set")
	}
	if c.SignupPoints < 0 {
		return errors.New("signup_points must not be negative")
	}
	if c.TokenTTL < time.Minute {
		return fmt.Errorf("token_ttl must be at least 1m, got %s", c.TokenTTL)
	}
	if c.Uploads.MaxFiles < 1 {
		return errors.New("uploads.max_files must be at least 1")
	}
	if c.Uploads.MaxFileMB < 1 {
		return errors.New("uploads.max_file_mb must be at least 1")
	}
	if c.Uploads.MaxDimension < 16 {
		return errors.New("uploads.max_dimension must be at least 16")
	}
	for _, o := range c.CORS.AllowedOrigins {
		if o == "" {
			return errors.New("cors.allowed_origins must not contain empty entries")
		}
	}
	return nil
}
