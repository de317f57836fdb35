package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Backtest    BacktestConfig `mapstructure:"backtest"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxConns        int    `mapstructure:"max_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
}

// ConnMaxLifetimeDuration parses ConnMaxLifetime, falling back to 1h.
func (d DatabaseConfig) ConnMaxLifetimeDuration() time.Duration {
	dur, err := time.ParseDuration(d.ConnMaxLifetime)
	if err != nil || dur <= 0 {
		return time.Hour
	}
	return dur
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// BacktestConfig holds the tunables of the simulation engine.
type BacktestConfig struct {
	RiskFreeRate       float64 `mapstructure:"risk_free_rate"`       // annual, fraction
	NavRatioClampMin   float64 `mapstructure:"nav_ratio_clamp_min"`  // per-step NAV ratio floor
	NavRatioClampMax   float64 `mapstructure:"nav_ratio_clamp_max"`  // per-step NAV ratio ceiling
	MinNavObservations int     `mapstructure:"min_nav_observations"` // eligibility threshold for score-range selection
	QualityFloorScore  float64 `mapstructure:"quality_floor_score"`  // risk-profile selection floor
	DefaultMaxFunds    int     `mapstructure:"default_max_funds"`    // cap when the request sets none
	MaxParallelFetches int     `mapstructure:"max_parallel_fetches"` // NAV history fan-out bound
	FetchTimeout       string  `mapstructure:"fetch_timeout"`        // per-fund NAV fetch deadline
	NavCacheTTL        string  `mapstructure:"nav_cache_ttl"`        // redis NAV series cache TTL
}

// FetchTimeoutDuration parses FetchTimeout, falling back to 10s.
func (b BacktestConfig) FetchTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(b.FetchTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// NavCacheTTLDuration parses NavCacheTTL, falling back to 6h.
func (b BacktestConfig) NavCacheTTLDuration() time.Duration {
	d, err := time.ParseDuration(b.NavCacheTTL)
	if err != nil || d <= 0 {
		return 6 * time.Hour
	}
	return d
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Normalize environment to lowercase for consistent comparison
	config.Environment = strings.ToLower(config.Environment)

	if config.Backtest.NavRatioClampMin <= 0 || config.Backtest.NavRatioClampMin >= config.Backtest.NavRatioClampMax {
		return nil, fmt.Errorf("invalid nav ratio clamp band [%v, %v]",
			config.Backtest.NavRatioClampMin, config.Backtest.NavRatioClampMax)
	}
	if config.Backtest.MaxParallelFetches <= 0 {
		return nil, fmt.Errorf("max_parallel_fetches must be positive, got %d", config.Backtest.MaxParallelFetches)
	}
	if _, err := time.ParseDuration(config.Backtest.FetchTimeout); err != nil {
		return nil, fmt.Errorf("invalid fetch_timeout duration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Database
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "fundsight")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_conns", 10)
	viper.SetDefault("database.conn_max_lifetime", "1h")

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Backtest engine
	viper.SetDefault("backtest.risk_free_rate", 0.06)
	viper.SetDefault("backtest.nav_ratio_clamp_min", 0.7)
	viper.SetDefault("backtest.nav_ratio_clamp_max", 1.3)
	viper.SetDefault("backtest.min_nav_observations", 50)
	viper.SetDefault("backtest.quality_floor_score", 60.0)
	viper.SetDefault("backtest.default_max_funds", 20)
	viper.SetDefault("backtest.max_parallel_fetches", 8)
	viper.SetDefault("backtest.fetch_timeout", "10s")
	viper.SetDefault("backtest.nav_cache_ttl", "6h")
}
