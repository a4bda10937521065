// Package config provides configuration loading and validation for the
// server and CLI.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Config holds every runtime setting. Values come from the environment
// (after .env is loaded) and may be overlaid by a JSON file.
type Config struct {
	// Server
	Port               int      `envconfig:"PORT" default:"8000" json:"port,omitempty"`
	APIPrefix          string   `envconfig:"API_PREFIX" default:"/api" json:"api_prefix,omitempty"`
	ProjectName        string   `envconfig:"PROJECT_NAME" default:"Story Manager API" json:"project_name,omitempty"`
	Version            string   `envconfig:"VERSION" default:"1.0.0" json:"version,omitempty"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:5173" json:"cors_allowed_origins,omitempty"`

	// Logging
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" json:"log_level,omitempty"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json" json:"log_encoding,omitempty"`

	// Database. DatabaseURL wins over the POSTGRES_* parts when set.
	DatabaseURL      string `envconfig:"DATABASE_URL" json:"database_url,omitempty"`
	PostgresServer   string `envconfig:"POSTGRES_SERVER" default:"localhost" json:"postgres_server,omitempty"`
	PostgresUser     string `envconfig:"POSTGRES_USER" default:"postgres" json:"postgres_user,omitempty"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD" default:"postgres" json:"postgres_password,omitempty"`
	PostgresDB       string `envconfig:"POSTGRES_DB" default:"storydb" json:"postgres_db,omitempty"`
	DBMaxConns       int32  `envconfig:"DB_MAX_CONNS" default:"10" json:"db_max_conns,omitempty"`
	AutoMigrate      bool   `envconfig:"AUTO_MIGRATE" default:"true" json:"auto_migrate,omitempty"`

	// Media
	MediaDir       string `envconfig:"MEDIA_DIR" default:"./media" json:"media_dir,omitempty"`
	MaxUploadBytes int64  `envconfig:"MAX_UPLOAD_BYTES" default:"10485760" json:"max_upload_bytes,omitempty"`
}

// Load reads the configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return &cfg, nil
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values. Zero values are
// accepted since they are filled by MergeWithDefaults.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 1 and 65535")
	}
	if c.APIPrefix != "" {
		if !strings.HasPrefix(c.APIPrefix, "/") {
			return fmt.Errorf("config error: 'api_prefix' must start with '/'")
		}
		if len(c.APIPrefix) > 1 && strings.HasSuffix(c.APIPrefix, "/") {
			return fmt.Errorf("config error: 'api_prefix' must not end with '/'")
		}
	}
	switch strings.ToLower(c.LogEncoding) {
	case "", "json", "console":
	default:
		return fmt.Errorf("config error: 'log_encoding' must be json or console")
	}
	if c.DBMaxConns < 0 {
		return fmt.Errorf("config error: 'db_max_conns' must be non-negative")
	}
	if c.MaxUploadBytes < 0 {
		return fmt.Errorf("config error: 'max_upload_bytes' must be non-negative")
	}
	if c.DatabaseURL != "" {
		if _, err := url.Parse(c.DatabaseURL); err != nil {
			return fmt.Errorf("config error: invalid 'database_url': %w", err)
		}
	}
	return nil
}

// MergeWithDefaults returns a new Config with zero fields filled from defaults.
// This is used to apply environment values beneath a config file.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.APIPrefix == "" {
		result.APIPrefix = defaults.APIPrefix
	}
	if result.ProjectName == "" {
		result.ProjectName = defaults.ProjectName
	}
	if result.Version == "" {
		result.Version = defaults.Version
	}
	if result.LogLevel == "" {
		result.LogLevel = defaults.LogLevel
	}
	if result.LogEncoding == "" {
		result.LogEncoding = defaults.LogEncoding
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.PostgresServer == "" {
		result.PostgresServer = defaults.PostgresServer
	}
	if result.PostgresUser == "" {
		result.PostgresUser = defaults.PostgresUser
	}
	if result.PostgresPassword == "" {
		result.PostgresPassword = defaults.PostgresPassword
	}
	if result.PostgresDB == "" {
		result.PostgresDB = defaults.PostgresDB
	}
	if result.MediaDir == "" {
		result.MediaDir = defaults.MediaDir
	}
	if len(result.CORSAllowedOrigins) == 0 {
		result.CORSAllowedOrigins = defaults.CORSAllowedOrigins
	}

	// Numeric fields: use default if zero
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.DBMaxConns == 0 {
		result.DBMaxConns = defaults.DBMaxConns
	}
	if result.MaxUploadBytes == 0 {
		result.MaxUploadBytes = defaults.MaxUploadBytes
	}

	// Bool fields: cannot distinguish unset from false, so the environment
	// decides
	result.AutoMigrate = defaults.AutoMigrate

	return result
}

// DSN returns the PostgreSQL connection string
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:   c.PostgresServer,
		Path:   "/" + c.PostgresDB,
	}
	return u.String()
}

// Addr returns the listen address for the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
