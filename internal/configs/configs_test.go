package configs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DevelopmentDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("PORT", "")
	t.Setenv("ALLOWED_ORIGINS", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_URL", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.Port)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.NotEmpty(t, cfg.DatabaseDSN)
}

func TestLoadConfig_ProductionRequiresSecrets(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("PORT", "9000")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_URL", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")

	t.Setenv("JWT_SECRET", "prod-secret")
	_, err = LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")

	t.Setenv("DATABASE_URL", "postgres://collab:secret@db:5432/collabhub")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
}

func TestLoadConfig_Validation(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")

	t.Setenv("PORT", "not-a-number")
	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("PORT", "80")
	_, err = LoadConfig()
	assert.Error(t, err, "privileged ports are rejected")

	t.Setenv("PORT", "8081")
	t.Setenv("ALLOWED_ORIGINS", " https://app.example.com , https://admin.example.com ")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.AllowedOrigins)
}
