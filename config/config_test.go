package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadMissingFileUsesDefaults(t *testing.T) {
	c, err := read(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	assert.Equal(t, "8080", c.AppPort)
	assert.Equal(t, "mysql", c.DBDriver)
	assert.Equal(t, 10, c.HabitBaseXP)
	assert.Equal(t, 50, c.BadgeBonusXP)
	assert.Equal(t, 100, c.ChallengeBonusXP)
	assert.Equal(t, []string{"*"}, c.AllowedOrigins)
	assert.False(t, c.RedisEnabled)
}

func TestReadFileThenEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"AppPort": "9000",
		"DBDriver": "postgres",
		"Timezone": "Europe/Berlin",
		"AllowedOrigins": ["https://a.example", "https://b.example"]
	}`), 0o600))

	t.Setenv("APP_PORT", "9100")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("HABIT_BASE_XP", "15")
	t.Setenv("JWT_SECRET", "s3cret")

	c, err := read(path)
	require.NoError(t, err)
	assert.Equal(t, "9100", c.AppPort)
	assert.Equal(t, "postgres", c.DBDriver)
	assert.Equal(t, "Europe/Berlin", c.Timezone)
	assert.True(t, c.RedisEnabled)
	assert.Equal(t, 15, c.HabitBaseXP)
	assert.Equal(t, "s3cret", c.JWTSecret)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.AllowedOrigins)
}

func TestReadCommaSeparatedOriginsFromEnv(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	c, err := read(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.AllowedOrigins)
}

func TestReadBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"AppPort": `), 0o600))
	_, err := read(path)
	assert.Error(t, err)
}

func TestLocation(t *testing.T) {
	assert.Equal(t, time.Local, AppConfig{}.Location())
	assert.Equal(t, time.Local, AppConfig{Timezone: "Local"}.Location())
	assert.Equal(t, time.Local, AppConfig{Timezone: "Mars/Olympus"}.Location())
	assert.Equal(t, "UTC", AppConfig{Timezone: "UTC"}.Location().String())
}

func TestOpenDatabaseRejectsUnknownDriver(t *testing.T) {
	_, err := OpenDatabase(AppConfig{DBDriver: "oracle"})
	assert.Error(t, err)
}

func TestToGormLogLevel(t *testing.T) {
	assert.NotEqual(t, toGormLogLevel("debug"), toGormLogLevel("info"))
	assert.Equal(t, toGormLogLevel("warn"), toGormLogLevel(""))
}
