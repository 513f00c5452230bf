// Package config loads service settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all settings for the CLI and the HTTP service.
type Config struct {
	APIKey         string
	Host           string
	Port           int
	LogLevel       string
	LogFormat      string
	MaxUploadBytes int64
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	Azure   AzureConfig
	Bedrock BedrockConfig
}

// AzureConfig selects an Azure OpenAI chat deployment.
type AzureConfig struct {
	APIKey     string
	Endpoint   string
	APIVersion string
	Deployment string
}

// Missing lists the unset variables required to call Azure OpenAI.
func (c AzureConfig) Missing() []string {
	return missing(map[string]string{
		"AZURE_OPENAI_API_KEY":    c.APIKey,
		"AZURE_OPENAI_ENDPOINT":   c.Endpoint,
		"AZURE_OPENAI_DEPLOYMENT": c.Deployment,
	})
}

// BedrockConfig selects an AWS Bedrock model.
type BedrockConfig struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	ModelID         string
}

// Missing lists the unset variables required to call Bedrock. Static keys
// are optional; without them the default AWS credential chain is used.
func (c BedrockConfig) Missing() []string {
	vars := map[string]string{
		"AWS_REGION":           c.Region,
		"AWS_BEDROCK_MODEL_ID": c.ModelID,
	}
	if c.AccessKeyID != "" || c.SecretAccessKey != "" {
		vars["AWS_ACCESS_KEY_ID"] = c.AccessKeyID
		vars["AWS_SECRET_ACCESS_KEY"] = c.SecretAccessKey
	}
	return missing(vars)
}

func missing(vars map[string]string) []string {
	var out []string
	for name, v := range vars {
		if strings.TrimSpace(v) == "" {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Default returns the configuration used when no variables are set.
func Default() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8000,
		LogLevel:       "info",
		LogFormat:      "json",
		MaxUploadBytes: 100 << 20,
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   15 * time.Minute,
		Azure: AzureConfig{
			APIVersion: "2025-04-01-preview",
		},
		Bedrock: BedrockConfig{
			Region:  "us-east-1",
			ModelID: "anthropic.claude-3-5-sonnet-20240620-v1:0",
		},
	}
}

// Load reads a .env file if one exists and overlays the process environment
// on top of Default.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()

	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("API_KEY", &cfg.APIKey)
	str("HOST", &cfg.Host)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	str("AZURE_OPENAI_API_KEY", &cfg.Azure.APIKey)
	str("AZURE_OPENAI_ENDPOINT", &cfg.Azure.Endpoint)
	str("AZURE_OPENAI_API_VERSION", &cfg.Azure.APIVersion)
	str("AZURE_OPENAI_DEPLOYMENT", &cfg.Azure.Deployment)
	str("AWS_ACCESS_KEY_ID", &cfg.Bedrock.AccessKeyID)
	str("AWS_SECRET_ACCESS_KEY", &cfg.Bedrock.SecretAccessKey)
	str("AWS_REGION", &cfg.Bedrock.Region)
	str("AWS_BEDROCK_MODEL_ID", &cfg.Bedrock.ModelID)

	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("PORT: %w", err)
		}
		cfg.Port = port
	}
	if v := getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("MAX_UPLOAD_BYTES: %w", err)
		}
		cfg.MaxUploadBytes = n
	}
	for key, dst := range map[string]*time.Duration{"READ_TIMEOUT": &cfg.ReadTimeout, "WRITE_TIMEOUT": &cfg.WriteTimeout} {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return Config{}, fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at startup.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT %d out of range", c.Port)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT %q: want json or console", c.LogFormat)
	}
	return nil
}

// Addr is the listen address for the HTTP service.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
