package config

import (
	"fmt"
	"os"
	"strconv"

	"variatio/adapters/stats/boosting"
	"variatio/adapters/stats/cuped"
	"variatio/domain/metric"
	"variatio/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Analysis AnalysisConfig
	Logging  LoggingConfig
	Report   ReportConfig
}

// DatabaseConfig holds database connection settings. An empty URL disables
// persistence.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
}

// Enabled reports whether a database is configured
func (c DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port string
}

// AnalysisConfig holds the defaults of an analysis session
type AnalysisConfig struct {
	Mode              cuped.Mode
	Correction        metric.Correction
	Parallelism       int
	Boosting          boosting.Params
	Smoothing         float64
	MinSamplesLeaf    float64
	SignificanceLevel float64
}

// AdjusterOptions returns the covariate adjuster options of the config
func (c AnalysisConfig) AdjusterOptions() cuped.Options {
	return cuped.Options{
		Boosting:       c.Boosting,
		Smoothing:      c.Smoothing,
		MinSamplesLeaf: c.MinSamplesLeaf,
	}
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Environment string
	Level       string
}

// ReportConfig holds report output settings
type ReportConfig struct {
	Path string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database: DatabaseConfig{
			URL:          getEnvOrDefault("DATABASE_URL", ""),
			MaxOpenConns: getEnvIntOrDefault("DB_MAX_OPEN_CONNS", 10),
		},
		Server: ServerConfig{
			Port: getEnvOrDefault("PORT", "8080"),
		},
		Logging: LoggingConfig{
			Environment: getEnvOrDefault("APP_ENV", "development"),
			Level:       getEnvOrDefault("LOG_LEVEL", ""),
		},
		Report: ReportConfig{
			Path: getEnvOrDefault("REPORT_PATH", "report.html"),
		},
	}

	analysisConfig, err := loadAnalysisConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load analysis configuration")
	}
	config.Analysis = *analysisConfig

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadAnalysisConfig() (*AnalysisConfig, error) {
	mode, err := cuped.ParseMode(getEnvOrDefault("ADJUSTMENT_MODE", "linear_cuped"))
	if err != nil {
		return nil, errors.ConfigInvalid(fmt.Sprintf("ADJUSTMENT_MODE: %v", err))
	}

	correction, err := metric.ParseCorrection(getEnvOrDefault("PVALUE_CORRECTION", "none"))
	if err != nil {
		return nil, errors.ConfigInvalid(fmt.Sprintf("PVALUE_CORRECTION: %v", err))
	}

	defaults := cuped.DefaultOptions()
	return &AnalysisConfig{
		Mode:        mode,
		Correction:  correction,
		Parallelism: getEnvIntOrDefault("ANALYSIS_PARALLELISM", 4),
		Boosting: boosting.Params{
			Rounds:         getEnvIntOrDefault("BOOST_ROUNDS", defaults.Boosting.Rounds),
			MaxDepth:       getEnvIntOrDefault("BOOST_MAX_DEPTH", defaults.Boosting.MaxDepth),
			LearningRate:   getEnvFloatOrDefault("BOOST_LEARNING_RATE", defaults.Boosting.LearningRate),
			Lambda:         defaults.Boosting.Lambda,
			MinChildWeight: defaults.Boosting.MinChildWeight,
		},
		Smoothing:         getEnvFloatOrDefault("TARGET_ENCODER_SMOOTHING", defaults.Smoothing),
		MinSamplesLeaf:    defaults.MinSamplesLeaf,
		SignificanceLevel: getEnvFloatOrDefault("SIGNIFICANCE_LEVEL", 0.05),
	}, nil
}

func validateConfig(config *Config) error {
	if config.Analysis.Parallelism < 1 {
		return errors.ConfigInvalid("ANALYSIS_PARALLELISM must be at least 1")
	}
	if err := config.Analysis.Boosting.Validate(); err != nil {
		return errors.ConfigInvalid(err.Error())
	}
	if config.Analysis.Smoothing <= 0 {
		return errors.ConfigInvalid("TARGET_ENCODER_SMOOTHING must be positive")
	}
	if a := config.Analysis.SignificanceLevel; a <= 0 || a >= 1 {
		return errors.ConfigInvalid("SIGNIFICANCE_LEVEL must be in (0, 1)")
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

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
