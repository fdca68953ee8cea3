package config

import (
	"os"
	"time"
)

// Config holds application configuration
type Config struct {
	// Server
	HTTPAddr string
	LogLevel string

	// OpenAI assistant
	OpenAIAPIKey  string
	OpenAIBaseURL string // if set, overrides the default API base URL
	AssistantID   string // existing assistant to reuse; created on startup when empty
	Model         string

	// Image webhook pair (submit + retrieve, both POST)
	WebhookBaseURL      string
	WebhookSubmitPath   string
	WebhookRetrievePath string
	WebhookTimeout      time.Duration

	// Orchestration
	RunPollInterval   time.Duration // cadence for run status polls
	ImagePollInterval time.Duration // cadence for image result polls
	ImageWaitCeiling  time.Duration // give up on an image job after this long
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		AssistantID:   getEnv("ASSISTANT_ID", ""),
		Model:         getEnv("ASSISTANT_MODEL", "gpt-4-1106-preview"),

		WebhookBaseURL:      getEnv("WEBHOOK_BASE_URL", ""),
		WebhookSubmitPath:   getEnv("WEBHOOK_SUBMIT_PATH", "/submit"),
		WebhookRetrievePath: getEnv("WEBHOOK_RETRIEVE_PATH", "/retrieve"),
		WebhookTimeout:      getEnvDuration("WEBHOOK_TIMEOUT", 10*time.Second),

		RunPollInterval:   getEnvDuration("RUN_POLL_INTERVAL", 500*time.Millisecond),
		ImagePollInterval: getEnvDuration("IMAGE_POLL_INTERVAL", 5*time.Second),
		ImageWaitCeiling:  getEnvDuration("IMAGE_WAIT_CEILING", 120*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
