package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Environment   string
	AWS           AWSConfig
	API           APIConfig
	Uploader      UploaderConfig
	Observability ObservabilityConfig
	CORS          CORSConfig
}

// AWSConfig holds AWS-specific configuration.
type AWSConfig struct {
	Region        string
	UploadBucket  string
	SQSQueueURL   string
	DynamoDBTable string
}

// APIConfig holds API server configuration.
type APIConfig struct {
	Port      string
	Username  string
	Password  string
	JWTSecret string
}

// UploaderConfig holds upload engine tunables for the client binary.
type UploaderConfig struct {
	ServerURL        string
	ChunkSizeBytes   int64
	ThresholdBytes   int64
	FileConcurrency  int
	ChunkConcurrency int
	MaxFileSizeMB    int64
}

// ObservabilityConfig holds observability configuration.
type ObservabilityConfig struct {
	OTLPEndpoint string
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string
}

// Default values
const (
	DefaultPort             = "8080"
	DefaultOTLPEndpoint     = "localhost:4317"
	DefaultRegion           = "us-west-2"
	DefaultServerURL        = "http://localhost:8080"
	DefaultChunkSizeBytes   = 5 << 20
	DefaultThresholdBytes   = 5 << 20
	DefaultFileConcurrency  = 3
	DefaultChunkConcurrency = 6
	DefaultMaxFileSizeMB    = 5120
)

// Load reads configuration from environment variables and returns a Config.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("ENV", "dev"),
		AWS: AWSConfig{
			Region:        getEnv("AWS_REGION", DefaultRegion),
			UploadBucket:  os.Getenv("S3_BUCKET"),
			SQSQueueURL:   os.Getenv("SQS_QUEUE_URL"),
			DynamoDBTable: os.Getenv("DYNAMODB_TABLE"),
		},
		API: APIConfig{
			Port:      getEnv("PORT", DefaultPort),
			Username:  os.Getenv("API_USERNAME"),
			Password:  os.Getenv("API_PASSWORD"),
			JWTSecret: os.Getenv("JWT_SECRET"),
		},
		Uploader: UploaderConfig{
			ServerURL:        getEnv("UPLOAD_SERVER_URL", DefaultServerURL),
			ChunkSizeBytes:   getEnvInt64("CHUNK_SIZE_BYTES", DefaultChunkSizeBytes),
			ThresholdBytes:   getEnvInt64("CHUNK_THRESHOLD_BYTES", DefaultThresholdBytes),
			FileConcurrency:  getEnvInt("FILE_CONCURRENCY", DefaultFileConcurrency),
			ChunkConcurrency: getEnvInt("CHUNK_CONCURRENCY", DefaultChunkConcurrency),
			MaxFileSizeMB:    getEnvInt64("MAX_FILE_SIZE_MB", DefaultMaxFileSizeMB),
		},
		Observability: ObservabilityConfig{
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", DefaultOTLPEndpoint),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{
				"http://localhost:3000",
			}),
		},
	}

	return cfg, nil
}

// LoadServer loads configuration required for the backend server.
func LoadServer() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if err := cfg.ValidateServer(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadUploader loads configuration required for the uploader client.
func LoadUploader() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if err := cfg.ValidateUploader(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ValidateServer validates configuration required for the backend server.
func (c *Config) ValidateServer() error {
	var errs []string

	if c.AWS.UploadBucket == "" {
		errs = append(errs, "S3_BUCKET is required")
	}
	if c.AWS.DynamoDBTable == "" {
		errs = append(errs, "DYNAMODB_TABLE is required")
	}

	// In production, require explicit credentials
	if c.IsProduction() {
		if c.API.Username == "" {
			errs = append(errs, "API_USERNAME is required in production")
		}
		if c.API.Password == "" {
			errs = append(errs, "API_PASSWORD is required in production")
		}
		if c.API.JWTSecret == "" {
			errs = append(errs, "JWT_SECRET is required in production")
		}
		if len(c.API.JWTSecret) < 32 {
			errs = append(errs, "JWT_SECRET must be at least 32 characters in production")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ValidateUploader validates configuration required for the uploader client.
func (c *Config) ValidateUploader() error {
	var errs []string

	if c.Uploader.ServerURL == "" {
		errs = append(errs, "UPLOAD_SERVER_URL is required")
	}
	if c.Uploader.ChunkSizeBytes <= 0 {
		errs = append(errs, "CHUNK_SIZE_BYTES must be positive")
	}
	if c.Uploader.FileConcurrency <= 0 {
		errs = append(errs, "FILE_CONCURRENCY must be positive")
	}
	if c.Uploader.ChunkConcurrency <= 0 {
		errs = append(errs, "CHUNK_CONCURRENCY must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Environment)
	return env == "prod" || env == "production"
}

// GetAPICredentials returns API credentials with fallback for development.
func (c *Config) GetAPICredentials() (username, password string, err error) {
	username = c.API.Username
	password = c.API.Password

	if username == "" || password == "" {
		if c.IsProduction() {
			return "", "", errors.New("API credentials not configured")
		}
		// Development fallback
		return "admin", "secret", nil
	}

	return username, password, nil
}

// GetJWTSecret returns the JWT secret, rejecting weak production setups.
func (c *Config) GetJWTSecret() ([]byte, error) {
	secret := c.API.JWTSecret

	if secret == "" {
		return nil, errors.New("JWT_SECRET is required (set it even for development)")
	}

	if len(secret) < 32 && c.IsProduction() {
		return nil, errors.New("JWT_SECRET must be at least 32 characters")
	}

	return []byte(secret), nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil && intVal > 0 {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil && intVal > 0 {
			return intVal
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
