package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("REMOTE_BACKEND", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg := Load()
	require.Equal(t, BackendMemory, cfg.RemoteBackend)
	require.Empty(t, cfg.GeminiAPIKey, "assistant key has no built-in default")
	require.Equal(t, 30*time.Minute, cfg.CooldownWindow)
	require.Equal(t, []string{"*"}, cfg.CORSOrigins)
	require.False(t, cfg.EventsEnabled())
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("REMOTE_BACKEND", "Postgres")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092 ,")
	t.Setenv("COOLDOWN_WINDOW", "90s")
	t.Setenv("OUTBOX_BATCH_SIZE", "not-a-number")
	t.Setenv("GEMINI_API_KEY", "abc")

	cfg := Load()
	require.Equal(t, BackendPostgres, cfg.RemoteBackend)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 90*time.Second, cfg.CooldownWindow)
	require.Equal(t, 25, cfg.OutboxBatchSize)
	require.Equal(t, "abc", cfg.GeminiAPIKey)
	require.True(t, cfg.EventsEnabled())
}

func TestValidate(t *testing.T) {
	cfg := Load()
	cfg.RemoteBackend = BackendSupabase
	cfg.SupabaseURL = ""
	cfg.DefaultTimezone = "Mars/Olympus"
	cfg.CooldownWindow = 0

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "SUPABASE_URL")
	require.Contains(t, err.Error(), "DEFAULT_TIMEZONE")
	require.Contains(t, err.Error(), "COOLDOWN_WINDOW")

	cfg.RemoteBackend = "dynamo"
	require.ErrorContains(t, cfg.Validate(), "unknown REMOTE_BACKEND")
}
