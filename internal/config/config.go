/**
 * Configuration for the extraction worker.
 *
 * Loads configuration from environment variables. All routing thresholds are
 * configurable so they can be tuned per deployment and zeroed out in tests,
 * but the loaded Config is immutable after startup: components receive it
 * explicitly and never read ambient state.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds worker configuration.
type Config struct {
	// Redis configuration (queue broker + result cache)
	RedisURL string

	// PostgreSQL configuration (job records)
	DatabaseURL string

	// Worker configuration
	QueueName         string
	WorkerConcurrency int
	ProcessingTimeout time.Duration

	// External binaries
	OCRmyPDFPath string
	PDFToPPMPath string

	// Rasterization
	RasterDPI int

	// Temporary directory for transient artifacts
	TempDir string

	// Transient artifact cleanup retry policy
	CleanupMaxAttempts int
	CleanupBackoff     time.Duration

	// Language inference thresholds
	MinSampleLength    int     // below this, inference short-circuits to English
	DetectorTrigger    float64 // run the statistical detector when no script reaches this
	DetectorBoostScore float64 // minimum score granted to a detector hit
	PrimaryMinScore    float64 // primary language must reach this to be reported
	SecondaryMinScore  float64 // additional languages must reach this

	// Engine selection thresholds
	SingleEnglishScore  float64 // eng score above this favors the single-language path
	SingleOtherMaxScore float64 // provided every other language stays below this

	// Post-OCR recheck policy
	RecheckMinTextLength  int     // multi-path text must exceed this before a recheck
	RecheckMinLengthRatio float64 // recheck output kept only at this fraction of the original

	// Result cache
	ResultTTL time.Duration
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:              getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		DatabaseURL:           getEnvOrDefault("DATABASE_URL", ""),
		QueueName:             getEnvOrDefault("QUEUE_NAME", "extract"),
		WorkerConcurrency:     getEnvAsIntOrDefault("WORKER_CONCURRENCY", 4),
		ProcessingTimeout:     getEnvAsDurationOrDefault("PROCESSING_TIMEOUT", 5*time.Minute),
		OCRmyPDFPath:          getEnvOrDefault("OCRMYPDF_PATH", "ocrmypdf"),
		PDFToPPMPath:          getEnvOrDefault("PDFTOPPM_PATH", "pdftoppm"),
		RasterDPI:             getEnvAsIntOrDefault("RASTER_DPI", 150),
		TempDir:               getEnvOrDefault("TEMP_DIR", os.TempDir()),
		CleanupMaxAttempts:    getEnvAsIntOrDefault("CLEANUP_MAX_ATTEMPTS", 3),
		CleanupBackoff:        getEnvAsDurationOrDefault("CLEANUP_BACKOFF", 200*time.Millisecond),
		MinSampleLength:       getEnvAsIntOrDefault("MIN_SAMPLE_LENGTH", 10),
		DetectorTrigger:       getEnvAsFloatOrDefault("DETECTOR_TRIGGER", 30),
		DetectorBoostScore:    getEnvAsFloatOrDefault("DETECTOR_BOOST_SCORE", 70),
		PrimaryMinScore:       getEnvAsFloatOrDefault("PRIMARY_MIN_SCORE", 25),
		SecondaryMinScore:     getEnvAsFloatOrDefault("SECONDARY_MIN_SCORE", 10),
		SingleEnglishScore:    getEnvAsFloatOrDefault("SINGLE_ENGLISH_SCORE", 60),
		SingleOtherMaxScore:   getEnvAsFloatOrDefault("SINGLE_OTHER_MAX_SCORE", 10),
		RecheckMinTextLength:  getEnvAsIntOrDefault("RECHECK_MIN_TEXT_LENGTH", 50),
		RecheckMinLengthRatio: getEnvAsFloatOrDefault("RECHECK_MIN_LENGTH_RATIO", 0.5),
		ResultTTL:             getEnvAsDurationOrDefault("RESULT_TTL", 24*time.Hour),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid.
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}

	if c.RasterDPI < 72 || c.RasterDPI > 600 {
		return fmt.Errorf("RASTER_DPI must be between 72 and 600, got %d", c.RasterDPI)
	}

	if c.CleanupMaxAttempts < 1 {
		return fmt.Errorf("CLEANUP_MAX_ATTEMPTS must be at least 1, got %d", c.CleanupMaxAttempts)
	}

	if c.RecheckMinLengthRatio < 0 || c.RecheckMinLengthRatio > 1 {
		return fmt.Errorf("RECHECK_MIN_LENGTH_RATIO must be within [0,1], got %f", c.RecheckMinLengthRatio)
	}

	return nil
}

// getEnvOrDefault gets environment variable or returns default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default.
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsFloatOrDefault gets environment variable as float64 or returns default.
func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsDurationOrDefault gets environment variable as duration or returns default.
func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
