package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Results   ResultsConfig   `yaml:"results"`
	Worker    WorkerConfig    `yaml:"worker"`
	Ephemeris EphemerisConfig `yaml:"ephemeris"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers       []string `yaml:"brokers"`
	TopicTasks    string   `yaml:"topic_tasks"`
	NumPartitions int      `yaml:"num_partitions"`
	GroupID       string   `yaml:"group_id"`
}

// Result backends understood by ResultsConfig.Backend.
const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type ResultsConfig struct {
	Backend       string        `yaml:"backend"`
	Expires       time.Duration `yaml:"expires"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	PurgeInterval time.Duration `yaml:"purge_interval"`
}

type WorkerConfig struct {
	Concurrency int           `yaml:"concurrency"`
	TaskExpires time.Duration `yaml:"task_expires"`
	CoarseStep  time.Duration `yaml:"coarse_step"`
	FineStep    time.Duration `yaml:"fine_step"`
}

type EphemerisConfig struct {
	Path      string `yaml:"path"`
	StartYear int    `yaml:"start_year"`
	EndYear   int    `yaml:"end_year"`
	// Save writes a freshly built table to Path when no file exists there.
	Save bool `yaml:"save"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// NewLogger builds a JSON or text slog logger writing to w.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(l.Level)}
	if strings.EqualFold(l.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	config := defaults()

	if path := os.Getenv("COVERAGE_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, config); err != nil {
			return nil, err
		}
	}

	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func defaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "coverage_user",
			Password: "coverage_pass",
			DBName:   "coverage_db",
			SSLMode:  "disable",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			TopicTasks:    "coverage.tasks",
			NumPartitions: 10,
			GroupID:       "coverage-workers",
		},
		Results: ResultsConfig{
			Backend:       BackendRedis,
			Expires:       24 * time.Hour,
			PollInterval:  500 * time.Millisecond,
			PurgeInterval: time.Hour,
		},
		Worker: WorkerConfig{
			Concurrency: 4,
			TaskExpires: 0,
			CoarseStep:  30 * time.Second,
			FineStep:    time.Second,
		},
		Ephemeris: EphemerisConfig{
			StartYear: 2000,
			EndYear:   2050,
		},
		Metrics: MetricsConfig{
			Addr: ":9102",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// applyEnv overrides file and default values with any environment variable that is set.
func applyEnv(c *Config) {
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvAsInt("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.DBName = getEnv("DB_NAME", c.Database.DBName)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvAsInt("REDIS_DB", c.Redis.DB)

	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		c.Kafka.Brokers = splitList(brokers)
	}
	c.Kafka.TopicTasks = getEnv("KAFKA_TOPIC_TASKS", c.Kafka.TopicTasks)
	c.Kafka.NumPartitions = getEnvAsInt("KAFKA_NUM_PARTITIONS", c.Kafka.NumPartitions)
	c.Kafka.GroupID = getEnv("KAFKA_GROUP_ID", c.Kafka.GroupID)

	c.Results.Backend = strings.ToLower(getEnv("RESULT_BACKEND", c.Results.Backend))
	c.Results.Expires = getEnvAsDuration("RESULT_EXPIRES", c.Results.Expires)
	c.Results.PollInterval = getEnvAsDuration("RESULT_POLL_INTERVAL", c.Results.PollInterval)
	c.Results.PurgeInterval = getEnvAsDuration("RESULT_PURGE_INTERVAL", c.Results.PurgeInterval)

	c.Worker.Concurrency = getEnvAsInt("WORKER_CONCURRENCY", c.Worker.Concurrency)
	c.Worker.TaskExpires = getEnvAsDuration("WORKER_TASK_EXPIRES", c.Worker.TaskExpires)
	c.Worker.CoarseStep = getEnvAsDuration("ANALYSIS_COARSE_STEP", c.Worker.CoarseStep)
	c.Worker.FineStep = getEnvAsDuration("ANALYSIS_FINE_STEP", c.Worker.FineStep)

	c.Ephemeris.Path = getEnv("EPHEMERIS_PATH", c.Ephemeris.Path)
	c.Ephemeris.StartYear = getEnvAsInt("EPHEMERIS_START_YEAR", c.Ephemeris.StartYear)
	c.Ephemeris.EndYear = getEnvAsInt("EPHEMERIS_END_YEAR", c.Ephemeris.EndYear)
	c.Ephemeris.Save = getEnvAsBool("EPHEMERIS_SAVE", c.Ephemeris.Save)

	c.Metrics.Addr = getEnv("METRICS_ADDR", c.Metrics.Addr)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Validate reports configuration values the services cannot run with.
func (c *Config) Validate() error {
	switch c.Results.Backend {
	case BackendRedis, BackendPostgres:
	default:
		return fmt.Errorf("invalid RESULT_BACKEND %q (want %s or %s)", c.Results.Backend, BackendRedis, BackendPostgres)
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("at least one Kafka broker is required")
	}
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("worker concurrency must be positive, got %d", c.Worker.Concurrency)
	}
	if c.Worker.CoarseStep <= 0 || c.Worker.FineStep <= 0 || c.Worker.FineStep > c.Worker.CoarseStep {
		return fmt.Errorf("analysis steps must satisfy 0 < fine (%s) <= coarse (%s)", c.Worker.FineStep, c.Worker.CoarseStep)
	}
	if c.Ephemeris.EndYear <= c.Ephemeris.StartYear {
		return fmt.Errorf("ephemeris year span %d-%d is empty", c.Ephemeris.StartYear, c.Ephemeris.EndYear)
	}
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
