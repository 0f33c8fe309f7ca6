// Package config loads the server configuration in one place.
// Values come from environment variables; a .env file is honoured for local
// development.
//
// One Config value is built at startup and passed down, instead of calling
// os.Getenv all over the codebase.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config carries every configuration value of the server.
// Each sub-struct covers one concern.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Upload   UploadConfig
	Storage  StorageConfig
	Admin    AdminConfig
	Email    EmailConfig
	CORS     CORSConfig
	Language string // default UI language for labels: "ko" or "en"
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds the SQLite settings.
type DatabaseConfig struct {
	Path string // SQLite file path (e.g. ./data/khakishop.db)
}

// JWTConfig holds the token settings.
type JWTConfig struct {
	Secret             string // signing key, keep it secret
	AccessTokenExpiry  int    // minutes (default 15)
	RefreshTokenExpiry int    // days (default 7)
}

// UploadConfig holds the image upload limits.
type UploadConfig struct {
	Dir      string // local storage root
	MaxSize  int64  // bytes per file (default 10MB)
	MaxFiles int    // files per batch (default 10)
}

// StorageConfig selects where image binaries live.
type StorageConfig struct {
	Driver string // "local" or "minio"

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioPublicURL string // base URL the storefront uses to fetch objects
}

// AdminConfig holds the bootstrap admin account.
// The account is created at startup only when both fields are set and the
// user does not exist yet.
type AdminConfig struct {
	Username string
	Password string
}

// EmailConfig holds the Resend settings for maintenance alerts.
type EmailConfig struct {
	ResendAPIKey string
	FromEmail    string
	AlertEmail   string
}

// Enabled reports whether alert mails can be sent.
func (c EmailConfig) Enabled() bool {
	return c.ResendAPIKey != "" && c.FromEmail != "" && c.AlertEmail != ""
}

// CORSConfig holds the allowed browser origins.
type CORSConfig struct {
	AllowedOrigins []string
}

// Load builds the server Config from the environment.
// A .env file is loaded first when present.
func Load() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}

	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	return cfg, nil
}

// LoadMaintenance builds a Config for the maintenance CLI.
// It does not require JWT_SECRET since the CLI never issues tokens.
func LoadMaintenance() (*Config, error) {
	return load()
}

func load() (*Config, error) {
	// Missing .env is fine; production uses real environment variables.
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("SERVER_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	accessExpiry, err := strconv.Atoi(getEnv("JWT_ACCESS_EXPIRY_MINUTES", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_ACCESS_EXPIRY_MINUTES: %w", err)
	}

	refreshExpiry, err := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRY_DAYS", "7"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_REFRESH_EXPIRY_DAYS: %w", err)
	}

	maxSize, err := strconv.ParseInt(getEnv("UPLOAD_MAX_SIZE", "10485760"), 10, 64) // 10MB
	if err != nil {
		return nil, fmt.Errorf("invalid UPLOAD_MAX_SIZE: %w", err)
	}

	maxFiles, err := strconv.Atoi(getEnv("UPLOAD_MAX_FILES", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid UPLOAD_MAX_FILES: %w", err)
	}
	if maxFiles < 1 {
		return nil, fmt.Errorf("UPLOAD_MAX_FILES must be at least 1")
	}

	useSSL, err := strconv.ParseBool(getEnv("MINIO_USE_SSL", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid MINIO_USE_SSL: %w", err)
	}

	driver := strings.ToLower(getEnv("STORAGE_DRIVER", "local"))
	if driver != "local" && driver != "minio" {
		return nil, fmt.Errorf("invalid STORAGE_DRIVER %q: must be local or minio", driver)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "./data/khakishop.db"),
		},
		JWT: JWTConfig{
			Secret:             getEnv("JWT_SECRET", ""),
			AccessTokenExpiry:  accessExpiry,
			RefreshTokenExpiry: refreshExpiry,
		},
		Upload: UploadConfig{
			Dir:      getEnv("UPLOAD_DIR", "./data/uploads"),
			MaxSize:  maxSize,
			MaxFiles: maxFiles,
		},
		Storage: StorageConfig{
			Driver:         driver,
			MinioEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
			MinioBucket:    getEnv("MINIO_BUCKET", "khakishop-images"),
			MinioUseSSL:    useSSL,
			MinioPublicURL: getEnv("MINIO_PUBLIC_URL", ""),
		},
		Admin: AdminConfig{
			Username: getEnv("ADMIN_USERNAME", ""),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
		Email: EmailConfig{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			FromEmail:    getEnv("RESEND_FROM", ""),
			AlertEmail:   getEnv("ALERT_EMAIL", ""),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		},
		Language: getEnv("DEFAULT_LANGUAGE", "ko"),
	}

	return cfg, nil
}

// Addr returns the address the HTTP server listens on (e.g. "0.0.0.0:8080").
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv reads an environment variable, falling back when it is unset.
func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

// splitList parses a comma separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
