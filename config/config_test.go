package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(10*1024*1024), cfg.Upload.MaxSize)
	assert.Equal(t, 10, cfg.Upload.MaxFiles)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("UPLOAD_MAX_FILES", "3")
	t.Setenv("STORAGE_DRIVER", "MINIO")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("CORS_ORIGINS", "https://khakishop.kr, ,https://admin.khakishop.kr")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Upload.MaxFiles)
	assert.Equal(t, "minio", cfg.Storage.Driver)
	assert.True(t, cfg.Storage.MinioUseSSL)
	assert.Equal(t, []string{"https://khakishop.kr", "https://admin.khakishop.kr"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"port", "SERVER_PORT", "eighty"},
		{"max size", "UPLOAD_MAX_SIZE", "big"},
		{"max files", "UPLOAD_MAX_FILES", "0"},
		{"driver", "STORAGE_DRIVER", "s3"},
		{"ssl", "MINIO_USE_SSL", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "test-secret")
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadMaintenance_NoSecretNeeded(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	cfg, err := LoadMaintenance()
	require.NoError(t, err)
	assert.Equal(t, "./data/uploads", cfg.Upload.Dir)
}

func TestEmailConfig_Enabled(t *testing.T) {
	assert.False(t, EmailConfig{ResendAPIKey: "re_x"}.Enabled())
	assert.True(t, EmailConfig{ResendAPIKey: "re_x", FromEmail: "a@b.c", AlertEmail: "ops@b.c"}.Enabled())
}
