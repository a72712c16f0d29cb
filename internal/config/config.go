package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"wiki-quiz/internal/domain"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	DB      DBConfig
	Redis   RedisConfig
	LLM     LLMConfig
	Fetcher FetcherConfig
	Quiz    QuizPolicyConfig
	Cache   CacheConfig
	Logger  LoggerConfig
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	AllowOrigins string
}

// DBConfig selects the SQL driver. Supported drivers are "sqlite" and "oracle".
type DBConfig struct {
	Driver      string
	DSN         string
	AutoMigrate bool
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LLMConfig configures the generation client. APIKey is read once here and
// injected into the client; nothing downstream reads the environment.
type LLMConfig struct {
	Provider    string
	Model       string
	APIKey      string
	ServerURL   string
	Temperature float64
	Timeout     time.Duration
}

type FetcherConfig struct {
	Timeout   time.Duration
	UserAgent string
}

// QuizPolicyConfig controls how strictly model output cardinalities are enforced.
type QuizPolicyConfig struct {
	EnforceCardinality bool
	MinQuestions       int
	MaxQuestions       int
}

type CacheConfig struct {
	RecordTTL  time.Duration
	HistoryTTL time.Duration
}

type LoggerConfig struct {
	Level string
	Env   string
}

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	DriverSQLite = "sqlite"
	DriverOracle = "oracle"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 20)
	v.SetDefault("server.write_timeout", 120)
	v.SetDefault("server.allow_origins", "http://localhost:5173,http://127.0.0.1:5173")

	v.SetDefault("db.driver", DriverSQLite)
	v.SetDefault("db.dsn", "file:quiz_history.db?_pragma=busy_timeout(5000)&_time_format=sqlite")
	v.SetDefault("db.auto_migrate", true)

	v.SetDefault("redis.db", 0)

	v.SetDefault("llm.provider", ProviderGemini)
	v.SetDefault("llm.model", "gemini-2.0-flash-exp")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.timeout", 60)

	v.SetDefault("fetcher.timeout", 10)
	v.SetDefault("fetcher.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	v.SetDefault("quiz.enforce_cardinality", false)
	v.SetDefault("quiz.min_questions", 7)
	v.SetDefault("quiz.max_questions", 10)

	v.SetDefault("cache.record_ttl", 3600)
	v.SetDefault("cache.history_ttl", 60)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.env", "development")
}

func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if os.Getenv("ENV") == "test" {
		v.AddConfigPath("../../config")
		v.AddConfigPath("../../")
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// GEMINI_API_KEY is only ever handed to the Gemini provider; see apiKey.
	_ = v.BindEnv("llm.gemini_api_key", "GEMINI_API_KEY")
	_ = v.BindEnv("llm.api_key", "LLM_API_KEY")
	_ = v.BindEnv("logger.env", "ENV")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if configFile := v.ConfigFileUsed(); configFile != "" {
		absPath, _ := filepath.Abs(configFile)
		fmt.Printf("Using config file: %s\n", absPath)
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	provider := strings.ToLower(v.GetString("llm.provider"))
	return &Config{
		Server: ServerConfig{
			Port:         v.GetInt("server.port"),
			ReadTimeout:  time.Duration(v.GetInt("server.read_timeout")) * time.Second,
			WriteTimeout: time.Duration(v.GetInt("server.write_timeout")) * time.Second,
			AllowOrigins: v.GetString("server.allow_origins"),
		},
		DB: DBConfig{
			Driver:      strings.ToLower(v.GetString("db.driver")),
			DSN:         v.GetString("db.dsn"),
			AutoMigrate: v.GetBool("db.auto_migrate"),
		},
		Redis: RedisConfig{
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		LLM: LLMConfig{
			Provider:    provider,
			Model:       v.GetString("llm.model"),
			APIKey:      apiKey(v, provider),
			ServerURL:   v.GetString("llm.server_url"),
			Temperature: v.GetFloat64("llm.temperature"),
			Timeout:     time.Duration(v.GetInt("llm.timeout")) * time.Second,
		},
		Fetcher: FetcherConfig{
			Timeout:   time.Duration(v.GetInt("fetcher.timeout")) * time.Second,
			UserAgent: v.GetString("fetcher.user_agent"),
		},
		Quiz: QuizPolicyConfig{
			EnforceCardinality: v.GetBool("quiz.enforce_cardinality"),
			MinQuestions:       v.GetInt("quiz.min_questions"),
			MaxQuestions:       v.GetInt("quiz.max_questions"),
		},
		Cache: CacheConfig{
			RecordTTL:  time.Duration(v.GetInt("cache.record_ttl")) * time.Second,
			HistoryTTL: time.Duration(v.GetInt("cache.history_ttl")) * time.Second,
		},
		Logger: LoggerConfig{
			Level: v.GetString("logger.level"),
			Env:   v.GetString("logger.env"),
		},
	}
}

// apiKey selects the credential for provider. GEMINI_API_KEY takes
// precedence for Gemini; llm.api_key (LLM_API_KEY) serves every provider.
func apiKey(v *viper.Viper, provider string) string {
	if provider == ProviderGemini || provider == "" {
		if key := v.GetString("llm.gemini_api_key"); key != "" {
			return key
		}
	}
	return v.GetString("llm.api_key")
}

// MissingSettings lists required settings that are absent. It is empty for a
// usable configuration.
func (c *Config) MissingSettings() []string {
	var missing []string
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		switch c.LLM.Provider {
		case ProviderOpenAI:
			missing = append(missing, "LLM_API_KEY")
		case ProviderOllama:
		default:
			missing = append(missing, "GEMINI_API_KEY")
		}
	}
	if c.LLM.Provider == ProviderOllama && c.LLM.ServerURL == "" {
		missing = append(missing, "LLM_SERVER_URL")
	}
	if c.DB.DSN == "" {
		missing = append(missing, "DB_DSN")
	}
	return missing
}

// Validate fails fast with a configuration error when a required setting is
// absent. It is called once at startup.
func (c *Config) Validate() error {
	if missing := c.MissingSettings(); len(missing) > 0 {
		return domain.NewConfigurationError(missing)
	}
	return nil
}
