package runway

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds configuration for a runway deployment.
type Config struct {
	// ListenAddr is the HTTP listen address for the API server.
	ListenAddr string `yaml:"listen_addr"`

	// StoreBackend selects the persistence backend:
	// "memory", "postgres", "redis" or "dynamo".
	StoreBackend string `yaml:"store_backend"`

	// PostgresURL is the connection string for the postgres backend.
	PostgresURL string `yaml:"postgres_url"`

	// RedisAddr is the host:port for the redis backend.
	RedisAddr string `yaml:"redis_addr"`

	// DynamoRegion is the AWS region for the dynamo backend.
	DynamoRegion string `yaml:"dynamo_region"`

	// Concurrency is the maximum number of jobs executing at once.
	Concurrency int `yaml:"concurrency"`

	// ShutdownTimeout is the maximum time to wait for in-flight jobs
	// during graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// ModelsDir is where uploaded datasets and tuned model artifacts live.
	ModelsDir string `yaml:"models_dir"`

	// TrainerCommand is the external command invoked to fine-tune a model.
	TrainerCommand string `yaml:"trainer_command"`

	// RateLimit is the sustained API requests per second. Zero disables
	// request throttling.
	RateLimit float64 `yaml:"rate_limit"`

	// RateBurst is the burst size for the API rate limiter.
	RateBurst int `yaml:"rate_burst"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:      ":8080",
		StoreBackend:    "memory",
		PostgresURL:     "postgres://localhost:5432/runway?sslmode=disable",
		RedisAddr:       "localhost:6379",
		DynamoRegion:    "us-west-2",
		Concurrency:     4,
		ShutdownTimeout: 30 * time.Second,
		ModelsDir:       "./fine_tuned_models",
		TrainerCommand:  "python -m llm_adapters.finetune",
		RateLimit:       50,
		RateBurst:       100,
	}
}

// LoadConfig reads a YAML config file and applies environment overrides on
// top of DefaultConfig. A missing file is not an error; environment variables
// alone can configure a deployment.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("runway: read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("runway: parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg.ListenAddr, "RUNWAY_LISTEN_ADDR")
	applyEnv(&cfg.StoreBackend, "RUNWAY_STORE_BACKEND")
	applyEnv(&cfg.PostgresURL, "DATABASE_URL")
	applyEnv(&cfg.RedisAddr, "REDIS_ADDR")
	applyEnv(&cfg.DynamoRegion, "AWS_REGION")
	applyEnv(&cfg.ModelsDir, "FINE_TUNED_MODELS_DIR")
	applyEnv(&cfg.TrainerCommand, "RUNWAY_TRAINER_COMMAND")

	return cfg, nil
}

func applyEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
