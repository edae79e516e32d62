package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Provider names for the LLM gateway. The choice is made once at
// startup based on which API keys are configured.
const (
	ProviderGroq   = "groq"
	ProviderGemini = "gemini"
)

type Config struct {
	Server Server
	Quiz   Quiz
	LLM    LLM
	Redis  Redis
	Logger Logger

	// Credentials the quiz platform expects back in every submission.
	Email  string
	Secret string
}

type Server struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Quiz struct {
	// Timeout is the hard wall-clock ceiling for one request.
	Timeout time.Duration
	// MaxSolveAttempts bounds re-asks of the LLM for a single question
	// when the platform returns feedback on a wrong answer.
	MaxSolveAttempts int
	// SubmitMaxAttempts bounds submission retries on transient failures.
	SubmitMaxAttempts int
	// SubmitRetryDelay is the fixed delay between submission attempts.
	SubmitRetryDelay time.Duration
	// FetchTimeout bounds a single resource download.
	FetchTimeout time.Duration
	// CacheTTL is the lifetime of cached fetched resources.
	CacheTTL time.Duration
}

type LLM struct {
	GroqAPIKey   string
	GeminiAPIKey string
	GroqModel    string
	GeminiModel  string
	MaxRetries   int
	RetryDelay   time.Duration
}

type Redis struct {
	Address  string
	Password string
	DB       int
}

type Logger struct {
	Level string
	Env   string
}

// Load reads configuration from environment variables (optionally a
// config.yaml next to the binary) and validates required settings.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Config file is optional; env vars are the primary source.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	viper.SetDefault("host", "0.0.0.0")
	viper.SetDefault("port", 8000)
	viper.SetDefault("server_read_timeout", 20)
	viper.SetDefault("server_write_timeout", 20)
	viper.SetDefault("quiz_timeout", 180)
	viper.SetDefault("quiz_max_solve_attempts", 5)
	viper.SetDefault("submit_max_attempts", 3)
	viper.SetDefault("submit_retry_delay", 2)
	viper.SetDefault("fetch_timeout", 30)
	viper.SetDefault("cache_ttl", 300)
	viper.SetDefault("groq_model", "llama-3.1-8b-instant")
	viper.SetDefault("gemini_model", "gemini-1.5-flash")
	viper.SetDefault("llm_max_retries", 3)
	viper.SetDefault("llm_retry_delay", 1)
	viper.SetDefault("log_level", "info")

	cfg := &Config{
		Server: Server{
			Host:         viper.GetString("host"),
			Port:         viper.GetInt("port"),
			ReadTimeout:  durationSeconds("server_read_timeout"),
			WriteTimeout: durationSeconds("server_write_timeout"),
		},
		Quiz: Quiz{
			Timeout:           durationSeconds("quiz_timeout"),
			MaxSolveAttempts:  viper.GetInt("quiz_max_solve_attempts"),
			SubmitMaxAttempts: viper.GetInt("submit_max_attempts"),
			SubmitRetryDelay:  durationSeconds("submit_retry_delay"),
			FetchTimeout:      durationSeconds("fetch_timeout"),
			CacheTTL:          durationSeconds("cache_ttl"),
		},
		LLM: LLM{
			GroqAPIKey:   strings.Trim(viper.GetString("groq_api_key"), `"'`),
			GeminiAPIKey: strings.Trim(viper.GetString("gemini_api_key"), `"'`),
			GroqModel:    viper.GetString("groq_model"),
			GeminiModel:  viper.GetString("gemini_model"),
			MaxRetries:   viper.GetInt("llm_max_retries"),
			RetryDelay:   durationSeconds("llm_retry_delay"),
		},
		Redis: Redis{
			Address:  viper.GetString("redis_address"),
			Password: viper.GetString("redis_password"),
			DB:       viper.GetInt("redis_db"),
		},
		Logger: Logger{
			Level: viper.GetString("log_level"),
			Env:   viper.GetString("env"),
		},
		Email:  strings.Trim(viper.GetString("email"), `"'`),
		Secret: strings.Trim(viper.GetString("secret"), `"'`),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// durationSeconds reads a timeout setting that is either a bare number
// of seconds ("180") or a duration string with a unit ("3m"). Anything
// else yields zero and the caller's default behavior applies.
func durationSeconds(key string) time.Duration {
	raw := strings.TrimSpace(viper.GetString(key))
	if raw == "" {
		return 0
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return 0
}

// Validate checks that required settings are present.
func (c *Config) Validate() error {
	if c.Secret == "" {
		return fmt.Errorf("SECRET environment variable is required")
	}
	if c.Email == "" {
		return fmt.Errorf("EMAIL environment variable is required")
	}
	if c.LLM.GroqAPIKey == "" && c.LLM.GeminiAPIKey == "" {
		return fmt.Errorf("at least one of GROQ_API_KEY or GEMINI_API_KEY is required")
	}
	return nil
}

// Provider returns the LLM provider selected by configuration. Groq is
// preferred when its key is present.
func (c *Config) Provider() string {
	if c.LLM.GroqAPIKey != "" {
		return ProviderGroq
	}
	return ProviderGemini
}

// CacheEnabled reports whether the optional content cache is
// configured. Correctness must hold either way.
func (c *Config) CacheEnabled() bool {
	return c.Redis.Address != ""
}
