package config

import (
	"os"
	"strconv"
	"time"

	"pvqc/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database  DatabaseConfig `validate:"required"`
	Protocols ProtocolConfig
	Analysis  AnalysisConfig `validate:"required"`
	Scoring   ScoringConfig
	Worker    WorkerConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL      string `validate:"required"`
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
}

// ProtocolConfig holds protocol definition loading settings. When Dir is set
// the registry reads definitions from JSON files instead of the database,
// which is how bench machines run without a seeded instance.
type ProtocolConfig struct {
	Dir string
}

// AnalysisConfig holds fitting and pipeline settings
type AnalysisConfig struct {
	FitTimeout time.Duration // per-candidate wall-clock deadline
	FitWorkers int           // max concurrent candidate fits
}

// ScoringConfig binds the external defect-scoring collaborator. An empty URL
// disables scoring; paired-sample QC then reports the score as unavailable.
type ScoringConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// WorkerConfig holds batch analysis worker settings
type WorkerConfig struct {
	PollInterval time.Duration // 0 runs a single sweep and exits
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{}

	// Load database configuration
	dbConfig, err := loadDatabaseConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load database configuration")
	}
	config.Database = *dbConfig

	// Load protocol configuration
	protocolConfig := loadProtocolConfig()
	config.Protocols = *protocolConfig

	// Load analysis configuration
	analysisConfig := loadAnalysisConfig()
	config.Analysis = *analysisConfig

	// Load scoring configuration
	scoringConfig := loadScoringConfig()
	config.Scoring = *scoringConfig

	// Load worker configuration
	workerConfig := loadWorkerConfig()
	config.Worker = *workerConfig

	// Validate required fields
	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadDatabaseConfig() (*DatabaseConfig, error) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		return nil, errors.ConfigInvalid("DATABASE_URL is required")
	}

	return &DatabaseConfig{
		URL:      url,
		User:     getEnvOrDefault("DB_USER", ""),
		Password: getEnvOrDefault("DB_PASS", ""),
		Name:     getEnvOrDefault("DB_NAME", ""),
		Host:     getEnvOrDefault("DB_HOST", ""),
		Port:     getEnvIntOrDefault("DB_PORT", 5432),
		SSLMode:  getEnvOrDefault("SSL_MODE", "disable"),
	}, nil
}

func loadProtocolConfig() *ProtocolConfig {
	return &ProtocolConfig{
		Dir: getEnvOrDefault("PROTOCOL_DIR", ""),
	}
}

func loadAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{
		FitTimeout: getEnvDurationOrDefault("FIT_TIMEOUT", 5*time.Second),
		FitWorkers: getEnvIntOrDefault("FIT_WORKERS", 4),
	}
}

func loadScoringConfig() *ScoringConfig {
	return &ScoringConfig{
		URL:     getEnvOrDefault("SCORING_URL", ""),
		APIKey:  getEnvOrDefault("SCORING_API_KEY", ""),
		Timeout: getEnvDurationOrDefault("SCORING_TIMEOUT", 10*time.Second),
	}
}

func loadWorkerConfig() *WorkerConfig {
	return &WorkerConfig{
		PollInterval: getEnvDurationOrDefault("POLL_INTERVAL", 0),
	}
}

func validateConfig(config *Config) error {
	if config.Database.URL == "" {
		return errors.ConfigInvalid("database URL is required")
	}
	if config.Analysis.FitTimeout <= 0 {
		return errors.ConfigInvalid("fit timeout must be positive")
	}
	if config.Analysis.FitWorkers < 1 {
		return errors.ConfigInvalid("fit workers must be >= 1")
	}
	if config.Worker.PollInterval < 0 {
		return errors.ConfigInvalid("poll interval must not be negative")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
