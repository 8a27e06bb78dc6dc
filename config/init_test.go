package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func loadFresh(t *testing.T) (*Config, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("CONFIG_FILE", "")
	return Load()
}

func TestLoad_RequiresSecretAndDSN(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_URL", "")

	_, err := loadFresh(t)
	require.Error(t, err)
	require.Contains(t, err.Error(), "jwt_secret")

	t.Setenv("JWT_SECRET", "s3cret")
	_, err = loadFresh(t)
	require.Error(t, err)
	require.Contains(t, err.Error(), "database.dsn")
}

func TestLoad_RejectsPlaceholderSecret(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "CHANGE_ME")
	t.Setenv("DATABASE_DSN", "file.db")

	_, err := loadFresh(t)
	require.Error(t, err)
}

func TestLoad_DefaultsAndAliases(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DATABASE_URL", "slidecraft.db")
	t.Setenv("PORT", "8081")
	t.Setenv("CONVERTER_TIMEOUT", "30s")

	cfg, err := loadFresh(t)
	require.NoError(t, err)

	require.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	require.Equal(t, "slidecraft.db", cfg.Database.DSN)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "8081", cfg.Server.HTTPPort)
	require.Equal(t, 30*time.Second, cfg.Converter.Timeout)
	require.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	require.Equal(t, "blank_default.pptx", cfg.Templates.Default)
	require.Equal(t, "local", cfg.Storage.Provider)
	require.Equal(t, int64(10<<20), cfg.Server.MaxBodyBytes)
}

func TestLoad_S3NeedsBucket(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DATABASE_URL", "slidecraft.db")
	t.Setenv("STORAGE_PROVIDER", "s3")

	_, err := loadFresh(t)
	require.Error(t, err)
	require.Contains(t, err.Error(), "bucket")
}
