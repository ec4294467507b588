package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log          Logger       `mapstructure:"logger"`
	DB           Database     `mapstructure:"database"`
	API          API          `mapstructure:"api"`
	Dispatcher   Dispatcher   `mapstructure:"dispatcher"`
	Cache        Cache        `mapstructure:"cache"`
	MarketData   MarketData   `mapstructure:"market_data"`
	Notification Notification `mapstructure:"notification"`
}

type Logger struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type Database struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	TimeZone        string `mapstructure:"time_zone"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

type API struct {
	Port               int     `mapstructure:"port"`
	AuthToken          string  `mapstructure:"auth_token"`
	RateLimitPerSecond float64 `mapstructure:"rate_limit_per_second"`
	RateLimitBurst     int     `mapstructure:"rate_limit_burst"`
}

// Dispatcher controls how queued backtest jobs are claimed and run.
// StaleAfter of zero disables the sweep of jobs stuck in running.
type Dispatcher struct {
	MaxJobs    int           `mapstructure:"max_jobs"`
	JobTimeout time.Duration `mapstructure:"job_timeout"`
	Cron       string        `mapstructure:"cron"`
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

type Cache struct {
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

type MarketData struct {
	FeedBaseURL         string        `mapstructure:"feed_base_url"`
	FeedTimeout         time.Duration `mapstructure:"feed_timeout"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
	MaxSyntheticBars    int           `mapstructure:"max_synthetic_bars"`
}

type Notification struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.log_level", "Warn")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.rate_limit_per_second", 1)
	v.SetDefault("api.rate_limit_burst", 5)
	v.SetDefault("dispatcher.max_jobs", 3)
	v.SetDefault("dispatcher.job_timeout", 2*time.Minute)
	v.SetDefault("dispatcher.cron", "@every 1m")
	v.SetDefault("dispatcher.stale_after", 0)
	v.SetDefault("cache.default_expiration", 15*time.Minute)
	v.SetDefault("cache.cleanup_interval", 30*time.Minute)
	v.SetDefault("market_data.feed_timeout", 10*time.Second)
	v.SetDefault("market_data.max_request_per_minute", 60)
	v.SetDefault("market_data.max_synthetic_bars", 5000)
	v.SetDefault("notification.timeout", 5*time.Second)
}

// Load reads .env, config.yaml from the working directory and environment
// variables, in increasing order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file loaded:", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AddConfigPath(".")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Println("No config file loaded:", err)
	}

	// AutomaticEnv only applies to keys viper already knows about.
	for _, key := range []string{"api.auth_token", "database.host", "database.user", "database.password", "database.name", "market_data.feed_base_url", "notification.webhook_url"} {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
