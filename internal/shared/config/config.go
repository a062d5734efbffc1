// Package config loads application configuration from file and environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultSystemPrompt = "You are a cinematic prompt writer for a dream " +
		"visualizer. Rewrite the user's dream description as a single vivid " +
		"sentence describing one continuous dreamlike shot: subject, setting, " +
		"camera movement, lighting and mood. Respond with the sentence only."

	defaultSystemPromptExtend = "You are a cinematic prompt writer for a dream " +
		"visualizer. Rewrite the user's dream description as two vivid " +
		"sentences describing one continuous dreamlike shot and its natural " +
		"continuation. Separate the two sentences with ***** and respond " +
		"with nothing else."
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Enhancer  EnhancerConfig  `mapstructure:"enhancer"`
	Generator GeneratorConfig `mapstructure:"generator"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// RedisConfig holds Redis configuration for the request rate limiter.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// EnhancerConfig holds prompt enhancement configuration.
type EnhancerConfig struct {
	APIKey             string        `mapstructure:"api_key"`
	BaseURL            string        `mapstructure:"base_url"`
	Model              string        `mapstructure:"model"`
	Temperature        float64       `mapstructure:"temperature"`
	MaxTokens          int           `mapstructure:"max_tokens"`
	SystemPrompt       string        `mapstructure:"system_prompt"`
	SystemPromptExtend string        `mapstructure:"system_prompt_extend"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	FailureThreshold   uint32        `mapstructure:"failure_threshold"`
	CircuitTimeout     time.Duration `mapstructure:"circuit_timeout"`
}

// GeneratorConfig holds video generation configuration.
type GeneratorConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	Model           string        `mapstructure:"model"`
	Resolution      string        `mapstructure:"resolution"`
	Duration        string        `mapstructure:"duration"`
	AspectRatio     string        `mapstructure:"aspect_ratio"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	MaxPollAttempts int           `mapstructure:"max_poll_attempts"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

// RateLimitConfig holds generation endpoint rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Limit   int           `mapstructure:"limit"`
	Window  time.Duration `mapstructure:"window"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from file and environment. API keys are read
// from the environment (a local .env file is honored when present).
func Load() (*Config, error) {
	// Best effort; a missing .env is not an error.
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/dreamrecorder")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults and env
	}

	v.SetEnvPrefix("DREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Credentials always come from the environment.
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.Enhancer.APIKey = key
	}
	if key := os.Getenv("LUMALABS_API_KEY"); key != "" {
		cfg.Generator.APIKey = key
	}
	if password := os.Getenv("DREAM_REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	// Generation requests block through the whole poll budget and the
	// progress stream is long-lived, so writes are not bounded.
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.idle_timeout", 120*time.Second)

	// Redis defaults
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)

	// Enhancer defaults
	v.SetDefault("enhancer.base_url", "https://api.openai.com/v1")
	v.SetDefault("enhancer.model", "gpt-4o-mini")
	v.SetDefault("enhancer.temperature", 0.7)
	v.SetDefault("enhancer.max_tokens", 400)
	v.SetDefault("enhancer.system_prompt", defaultSystemPrompt)
	v.SetDefault("enhancer.system_prompt_extend", defaultSystemPromptExtend)
	v.SetDefault("enhancer.request_timeout", 60*time.Second)
	v.SetDefault("enhancer.failure_threshold", 5)
	v.SetDefault("enhancer.circuit_timeout", 60*time.Second)

	// Generator defaults
	v.SetDefault("generator.base_url", "https://api.lumalabs.ai/dream-machine/v1")
	v.SetDefault("generator.model", "ray-2")
	v.SetDefault("generator.resolution", "540p")
	v.SetDefault("generator.duration", "5s")
	v.SetDefault("generator.aspect_ratio", "16:9")
	v.SetDefault("generator.poll_interval", 5*time.Second)
	v.SetDefault("generator.max_poll_attempts", 100)
	v.SetDefault("generator.request_timeout", 30*time.Second)

	// Rate limit defaults
	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.limit", 10)
	v.SetDefault("rate_limit.window", time.Minute)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
