package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, BackendRedis, cfg.Results.Backend)
	require.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	require.Equal(t, "coverage.tasks", cfg.Kafka.TopicTasks)
	require.Equal(t, 24*time.Hour, cfg.Results.Expires)
	require.Equal(t, 30*time.Second, cfg.Worker.CoarseStep)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("RESULT_BACKEND", "POSTGRES")
	t.Setenv("WORKER_CONCURRENCY", "8")
	t.Setenv("RESULT_EXPIRES", "90m")
	t.Setenv("EPHEMERIS_SAVE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	require.Equal(t, BackendPostgres, cfg.Results.Backend)
	require.Equal(t, 8, cfg.Worker.Concurrency)
	require.Equal(t, 90*time.Minute, cfg.Results.Expires)
	require.True(t, cfg.Ephemeris.Save)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coverage.yaml")
	content := `
kafka:
  topic_tasks: file.tasks
worker:
  concurrency: 2
  coarse_step: 1m
ephemeris:
  start_year: 2020
  end_year: 2030
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("COVERAGE_CONFIG_PATH", path)
	t.Setenv("WORKER_CONCURRENCY", "6")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "file.tasks", cfg.Kafka.TopicTasks)
	require.Equal(t, 6, cfg.Worker.Concurrency)
	require.Equal(t, time.Minute, cfg.Worker.CoarseStep)
	require.Equal(t, 2020, cfg.Ephemeris.StartYear)
}

func TestGetEnvAsBool_IgnoresGarbage(t *testing.T) {
	t.Setenv("EPHEMERIS_SAVE", "sometimes")
	require.True(t, getEnvAsBool("EPHEMERIS_SAVE", true))
	require.False(t, getEnvAsBool("EPHEMERIS_SAVE", false))
}

func TestLoad_InvalidBackend(t *testing.T) {
	t.Setenv("RESULT_BACKEND", "memcached")

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero concurrency", func(c *Config) { c.Worker.Concurrency = 0 }},
		{"fine step above coarse", func(c *Config) { c.Worker.FineStep = time.Hour }},
		{"empty ephemeris span", func(c *Config) { c.Ephemeris.EndYear = c.Ephemeris.StartYear }},
		{"no brokers", func(c *Config) { c.Kafka.Brokers = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaults()
			tc.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", DBName: "n", SSLMode: "disable"}
	require.Equal(t, "host=db port=5433 user=u password=p dbname=n sslmode=disable", d.ConnectionString())
}

func TestLogConfig_NewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "task", "run_point_coverage")
	require.Contains(t, buf.String(), `"msg":"shown"`)
	require.NotContains(t, buf.String(), "hidden")

	buf.Reset()
	LogConfig{Level: "debug", Format: "text"}.NewLogger(&buf).Debug("text line")
	require.Contains(t, buf.String(), "msg=\"text line\"")

	require.Equal(t, slog.LevelInfo, parseLogLevel("verbose"))
}
