package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sample = `
server:
  port: "9090"
redis:
  addr: "localhost:6379"
quiz:
  size: 12
  timeBudget: 5m
  industry: fintech
  skills: [Go, Postgres]
llm:
  apiKey: from-file
render:
  scale: 1.2
  filename: "letter-{{.ID}}.pdf"
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
	return path
}

func TestLoadReadsYAML(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("REDIS_ADDR", "")

	cfg, err := Load(writeConfig(t))
	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Server.Port)
	require.Equal(t, 12, cfg.Quiz.Size)
	require.Equal(t, []string{"Go", "Postgres"}, cfg.Quiz.Skills)
	require.Equal(t, "from-file", cfg.LLM.APIKey)
	require.Equal(t, 1.2, cfg.Render.Scale)
	require.Equal(t, 5*time.Minute, TTLDuration(cfg.Quiz.TimeBudget, time.Minute))
}

func TestEnvOverridesSecrets(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-env")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("DATABASE_URL", "postgres://db")

	cfg, err := Load(writeConfig(t))
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.LLM.APIKey)
	require.Equal(t, "redis:6379", cfg.Redis.Addr)
	require.Equal(t, "postgres://db", cfg.Postgres.URL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestTTLDuration(t *testing.T) {
	require.Equal(t, time.Minute, TTLDuration("", time.Minute))
	require.Equal(t, time.Minute, TTLDuration("bogus", time.Minute))
	require.Equal(t, 30*time.Second, TTLDuration("30s", time.Minute))
}
