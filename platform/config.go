package platform

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every setting read from the environment at start up.
type Config struct {
	Port       string
	GinMode    string
	CORSOrigin string

	AccessSecret string
	TokenTTL     time.Duration

	DBDriver string
	SQL      SQLConfig
	SQLite   string
	RedisURL string

	LLM LLMConfig

	ModelsFile     string
	LogDir         string
	BackfillSpec   string
	BackfillMinAge time.Duration
}

// SQLConfig 包含数据库连接的配置信息
type SQLConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// DSN builds the mysql connection string.
func (s SQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		s.User, s.Password, s.Host, s.Port, s.DBName)
}

// LLMConfig configures the completion provider.
type LLMConfig struct {
	BaseURL       string
	APIKey        string
	MaxTokens     int
	Temperature   float64
	HeaderTimeout time.Duration
	TitleModel    string
	AppURL        string
	AppTitle      string
}

// LoadConfig reads the environment. Required values that are missing are reported together.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:         getEnvOrDefault("PORT", "8080"),
		GinMode:      getEnvOrDefault("GIN_MODE", "debug"),
		CORSOrigin:   getEnvOrDefault("CORS_ORIGIN", "http://localhost:5173"),
		AccessSecret: os.Getenv("ACCESS_SECRET"),
		TokenTTL:     time.Duration(getEnvAsIntOrDefault("TOKEN_TTL_HOURS", 24*7)) * time.Hour,
		DBDriver:     strings.ToLower(getEnvOrDefault("DB_DRIVER", "mysql")),
		SQL: SQLConfig{
			Host:     getEnvOrDefault("SQL_HOST", "127.0.0.1"),
			Port:     getEnvOrDefault("SQL_PORT", "3306"),
			User:     os.Getenv("SQL_USER"),
			Password: os.Getenv("SQL_PASSWORD"),
			DBName:   getEnvOrDefault("SQL_DBNAME", "relaychat"),
		},
		SQLite:   getEnvOrDefault("SQLITE_PATH", "relaychat.db"),
		RedisURL: os.Getenv("REDIS_URL"),
		LLM: LLMConfig{
			BaseURL:       strings.TrimRight(getEnvOrDefault("LLM_BASE_URL", "https://openrouter.ai/api/v1"), "/"),
			APIKey:        os.Getenv("LLM_API_KEY"),
			MaxTokens:     getEnvAsIntOrDefault("LLM_MAX_TOKENS", 1000),
			Temperature:   getEnvAsFloatOrDefault("LLM_TEMPERATURE", 0.7),
			HeaderTimeout: getEnvAsDurationOrDefault("LLM_HEADER_TIMEOUT", 60*time.Second),
			TitleModel:    getEnvOrDefault("TITLE_MODEL", "meta-llama/llama-3.2-3b-instruct:free"),
			AppURL:        getEnvOrDefault("APP_URL", "http://localhost:5173"),
			AppTitle:      getEnvOrDefault("APP_TITLE", "Relay Chat"),
		},
		ModelsFile:     os.Getenv("MODELS_FILE"),
		LogDir:         getEnvOrDefault("LOG_DIR", "./log"),
		BackfillSpec:   getEnvOrDefault("TITLE_BACKFILL_SCHEDULE", "@every 10m"),
		BackfillMinAge: getEnvAsDurationOrDefault("TITLE_BACKFILL_MIN_AGE", 10*time.Minute),
	}
	// set but empty turns the backfill off
	if v, ok := os.LookupEnv("TITLE_BACKFILL_SCHEDULE"); ok && strings.TrimSpace(v) == "" {
		cfg.BackfillSpec = ""
	}

	var missing []string
	if cfg.AccessSecret == "" {
		missing = append(missing, "ACCESS_SECRET")
	}
	if cfg.LLM.APIKey == "" {
		missing = append(missing, "LLM_API_KEY")
	}
	if len(missing) > 0 {
		return nil, &ConfigurationError{Missing: missing}
	}

	switch cfg.DBDriver {
	case "mysql":
		if cfg.SQL.User == "" {
			return nil, &ConfigurationError{Missing: []string{"SQL_USER"}}
		}
	case "sqlite":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	return cfg, nil
}

// ConfigurationError reports required settings that are absent.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return "missing required configuration: " + strings.Join(e.Missing, ", ")
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsIntOrDefault(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvAsFloatOrDefault(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvAsDurationOrDefault(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
