package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Inference backend
	GCPProjectID string
	GCPLocation  string
	ModelName    string
	UseMockLLM   bool

	// Storage: "sqlite" or "memory"
	StorageBackend string
	SQLitePath     string

	// EncryptionKey is the hex-encoded 32-byte AES key for field encryption.
	// Required: the process refuses to serve the pipeline without it.
	EncryptionKey string

	InferenceTimeout time.Duration
	MaxStageHops     int
	RatePerMinute    int
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "TRUE"
}

func getIntEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Load reads all env vars and builds the config. The encryption key is the
// fail-fast invariant: running the pipeline unencrypted is never an option.
func Load() (*Config, error) {
	cfg := &Config{
		Port: getEnv("MEDAGENT_PORT", "8080"),

		GCPProjectID: getEnv("MEDAGENT_GCP_PROJECT", ""),
		GCPLocation:  getEnv("MEDAGENT_GCP_LOCATION", "us-central1"),
		ModelName:    getEnv("MEDAGENT_MODEL_NAME", "gemini-2.5-flash"),
		UseMockLLM:   getBoolEnv("MEDAGENT_USE_MOCK_LLM", false),

		StorageBackend: getEnv("MEDAGENT_STORAGE_BACKEND", "sqlite"),
		SQLitePath:     getEnv("MEDAGENT_SQLITE_PATH", "medagent.db"),

		EncryptionKey: getEnv("MEDAGENT_ENCRYPTION_KEY", ""),

		InferenceTimeout: time.Duration(getIntEnv("MEDAGENT_INFERENCE_TIMEOUT_SEC", 30)) * time.Second,
		MaxStageHops:     getIntEnv("MEDAGENT_MAX_STAGE_HOPS", 32),
		RatePerMinute:    getIntEnv("MEDAGENT_RATE_PER_MINUTE", 60),
	}

	if cfg.EncryptionKey == "" {
		return nil, fmt.Errorf("MEDAGENT_ENCRYPTION_KEY must be set")
	}
	if !cfg.UseMockLLM && cfg.GCPProjectID == "" {
		return nil, fmt.Errorf("MEDAGENT_GCP_PROJECT must be set unless MEDAGENT_USE_MOCK_LLM=1")
	}

	return cfg, nil
}
