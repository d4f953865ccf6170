package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"questflow/internal/util"
)

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

type Config struct {
	APIAddr              string `mapstructure:"api_addr"`
	TemporalAddress      string `mapstructure:"temporal_address"`
	TemporalTaskQueue    string `mapstructure:"temporal_task_queue"`
	PostgresURL          string `mapstructure:"postgres_url"`
	DataInRoot           string `mapstructure:"data_in"`
	DataOutRoot          string `mapstructure:"data_out"`
	WindowSize           int    `mapstructure:"window_size"`
	ProgressBackend      string `mapstructure:"progress_backend"`
	LLMProviders         string `mapstructure:"llm_providers"`
	ProviderCooldownSecs int    `mapstructure:"provider_cooldown_seconds"`
	LLMTimeoutSecs       int    `mapstructure:"llm_timeout_seconds"`
	MaxAttempts          int    `mapstructure:"max_attempts"`
	RetryDelayMS         int    `mapstructure:"retry_delay_ms"`
	MaxPriorQuestions    int    `mapstructure:"max_prior_questions"`
	DedupeQuestions      bool   `mapstructure:"dedupe_questions"`
	MonitorIntervalSecs  int    `mapstructure:"monitor_interval_seconds"`
	OpenAIModel          string `mapstructure:"openai_model"`
	OpenAIBaseURL        string `mapstructure:"openai_base_url"`
	GroqModel            string `mapstructure:"groq_model"`
	OllamaBaseURL        string `mapstructure:"ollama_base_url"`
	OllamaModel          string `mapstructure:"ollama_model"`
	GeminiModel          string `mapstructure:"gemini_model"`
	VertexProject        string `mapstructure:"vertex_project"`
	VertexLocation       string `mapstructure:"vertex_location"`
}

var defaults = map[string]any{
	"api_addr":                  ":8080",
	"temporal_address":          "localhost:7233",
	"temporal_task_queue":       "questflow",
	"postgres_url":              "",
	"data_in":                   "./data/in",
	"data_out":                  "./data/out",
	"window_size":               3,
	"progress_backend":          BackendFile,
	"llm_providers":             "mock",
	"provider_cooldown_seconds": 900,
	"llm_timeout_seconds":       120,
	"max_attempts":              1,
	"retry_delay_ms":            2000,
	"max_prior_questions":       200,
	"dedupe_questions":          false,
	"monitor_interval_seconds":  2,
	"openai_model":              "gpt-4o-mini",
	"openai_base_url":           "",
	"groq_model":                "llama-3.1-8b-instant",
	"ollama_base_url":           "http://localhost:11434",
	"ollama_model":              "llama3.1",
	"gemini_model":              "gemini-1.5-pro",
	"vertex_project":            "",
	"vertex_location":           "us-central1",
}

// Load reads configuration from QUESTFLOW_* environment variables on top of
// the built-in defaults.
func Load() (Config, error) {
	return LoadFile("")
}

// LoadFile is Load plus an optional config file. A missing file is not an
// error; a malformed one is.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix("QUESTFLOW")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ProgressBackend = strings.ToLower(strings.TrimSpace(cfg.ProgressBackend))
	return cfg, nil
}

func (c Config) Validate() error {
	if c.WindowSize < 1 {
		return fmt.Errorf("window_size must be >= 1, got %d: %w", c.WindowSize, util.ErrInvalidConfiguration)
	}
	switch c.ProgressBackend {
	case BackendFile:
	case BackendPostgres:
		if strings.TrimSpace(c.PostgresURL) == "" {
			return fmt.Errorf("progress_backend postgres needs postgres_url: %w", util.ErrInvalidConfiguration)
		}
	default:
		return fmt.Errorf("unknown progress_backend %q: %w", c.ProgressBackend, util.ErrInvalidConfiguration)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be >= 1, got %d: %w", c.MaxAttempts, util.ErrInvalidConfiguration)
	}
	return nil
}

func (c Config) ProviderCooldown() time.Duration {
	return secondsOr(c.ProviderCooldownSecs, 900)
}

func (c Config) LLMTimeout() time.Duration {
	return secondsOr(c.LLMTimeoutSecs, 120)
}

func (c Config) MonitorInterval() time.Duration {
	return secondsOr(c.MonitorIntervalSecs, 2)
}

func (c Config) RetryDelay() time.Duration {
	if c.RetryDelayMS <= 0 {
		return 0
	}
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

func secondsOr(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}
