package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Chatwork  ChatworkConfig  `mapstructure:"chatwork"`
	Summary   SummaryConfig   `mapstructure:"summary"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	CORSOrigins string `mapstructure:"cors_origins"`
	RateLimit   int    `mapstructure:"rate_limit"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// ChatworkConfig configures the remote chat client
type ChatworkConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	APIToken string        `mapstructure:"api_token"`
	Timeout  time.Duration `mapstructure:"timeout"`
	// Requests per five minutes the sync loop allows itself
	RateLimit int `mapstructure:"rate_limit"`
}

type SchedulerConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	SyncSpec    string `mapstructure:"sync_spec"`
	SummarySpec string `mapstructure:"summary_spec"`
	Concurrency int    `mapstructure:"concurrency"`
}

// Load resolves the configuration once: config file (optional), then
// defaults, then environment.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")

	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	homeDir, err := os.UserHomeDir()
	if err == nil {
		v.AddConfigPath(filepath.Join(homeDir, ".crm"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("CRM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	loadEnvOverrides(&cfg)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("server.rate_limit", 120)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "crm")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "crm")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "crm-backend")

	v.SetDefault("chatwork.base_url", "https://api.chatwork.com/v2")
	v.SetDefault("chatwork.api_token", "")
	v.SetDefault("chatwork.timeout", DefaultChatworkTimeout)
	v.SetDefault("chatwork.rate_limit", 300)

	v.SetDefault("summary.enabled", true)
	v.SetDefault("summary.provider", "")
	v.SetDefault("summary.api_key", "")
	v.SetDefault("summary.model", "")
	v.SetDefault("summary.base_url", "")
	v.SetDefault("summary.timeout", DefaultSummaryTimeout)
	v.SetDefault("summary.max_output_tokens", DefaultMaxOutputTokens)
	v.SetDefault("summary.max_prompt_chars", DefaultMaxPromptChars)
	v.SetDefault("summary.lookback_days", DefaultLookbackDays)
	v.SetDefault("summary.max_messages", DefaultMaxMessages)
	v.SetDefault("summary.bullet_count", DefaultBulletCount)
	v.SetDefault("summary.timezone", "UTC")

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.sync_spec", "*/15 * * * *")
	v.SetDefault("scheduler.summary_spec", "0 7 * * *")
	v.SetDefault("scheduler.concurrency", 4)
}

func loadEnvOverrides(cfg *Config) {
	// Database overrides
	if dbHost := os.Getenv("POSTGRES_HOST"); dbHost != "" {
		cfg.Database.Host = dbHost
	}
	if dbPort := os.Getenv("POSTGRES_PORT"); dbPort != "" {
		if port, err := strconv.Atoi(dbPort); err == nil {
			cfg.Database.Port = port
		}
	}
	if dbUser := os.Getenv("POSTGRES_USER"); dbUser != "" {
		cfg.Database.User = dbUser
	}
	if dbPass := os.Getenv("POSTGRES_PASSWORD"); dbPass != "" {
		cfg.Database.Password = dbPass
	}
	if dbName := os.Getenv("POSTGRES_DB"); dbName != "" {
		cfg.Database.Database = dbName
	}

	if token := os.Getenv("CHATWORK_API_TOKEN"); token != "" && cfg.Chatwork.APIToken == "" {
		cfg.Chatwork.APIToken = token
	}
}
