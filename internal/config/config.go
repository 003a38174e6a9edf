package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Server      ServerConfig    `mapstructure:"server"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Cache       CacheConfig     `mapstructure:"cache"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry"`
	Metrics     MetricsConfig   `mapstructure:"metrics"`
	Forecast    ForecastConfig  `mapstructure:"forecast"`
}

type ServerConfig struct {
	Port            int      `mapstructure:"port"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	ReadTimeout     string   `mapstructure:"read_timeout"`
	WriteTimeout    string   `mapstructure:"write_timeout"`
	ShutdownTimeout string   `mapstructure:"shutdown_timeout"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	ForecastTTL string `mapstructure:"forecast_ttl"`
	Prefix      string `mapstructure:"prefix"`
}

type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Exporter       string `mapstructure:"exporter"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	LogLevel       string `mapstructure:"log_level"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ForecastConfig holds the process-wide, read-only engine settings
type ForecastConfig struct {
	MinPoints         int     `mapstructure:"min_points"`
	DefaultHorizon    int     `mapstructure:"default_horizon"`
	MaxHorizon        int     `mapstructure:"max_horizon"`
	MaxWorkers        int     `mapstructure:"max_workers"`
	RandomSeed        uint64  `mapstructure:"random_seed"`
	CapOutliers       bool    `mapstructure:"cap_outliers"`
	RegimePriorsFile  string  `mapstructure:"regime_priors_file"`
	ConfidenceFloor   float64 `mapstructure:"confidence_floor"`
	ConfidenceCeiling float64 `mapstructure:"confidence_ceiling"`
}

// Duration parses a duration setting, falling back to def when empty or invalid.
func Duration(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return def
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

	if err := viper.BindEnv("redis.password", "REDIS_PASSWORD"); err != nil {
		return nil, fmt.Errorf("failed to bind REDIS_PASSWORD environment variable: %w", err)
	}

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

	config.Environment = strings.ToLower(config.Environment)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks cross-field constraints that defaults cannot guarantee.
func (c *Config) Validate() error {
	for name, value := range map[string]string{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"cache.forecast_ttl":      c.Cache.ForecastTTL,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s duration: %w", name, err)
		}
	}

	f := c.Forecast
	if f.MinPoints < 5 {
		return fmt.Errorf("forecast.min_points must be at least 5, got %d", f.MinPoints)
	}
	if f.DefaultHorizon < 1 {
		return fmt.Errorf("forecast.default_horizon must be positive, got %d", f.DefaultHorizon)
	}
	if f.MaxHorizon < f.DefaultHorizon {
		return fmt.Errorf("forecast.max_horizon (%d) must be >= default_horizon (%d)", f.MaxHorizon, f.DefaultHorizon)
	}
	if f.MaxWorkers < 0 {
		return errors.New("forecast.max_workers must not be negative")
	}
	if f.ConfidenceFloor <= 0 || f.ConfidenceCeiling > 1 || f.ConfidenceFloor >= f.ConfidenceCeiling {
		return fmt.Errorf("confidence bounds must satisfy 0 < floor < ceiling <= 1, got [%.2f, %.2f]",
			f.ConfidenceFloor, f.ConfidenceCeiling)
	}

	switch strings.ToLower(c.Telemetry.Exporter) {
	case "", "otlp", "stdout":
	default:
		return fmt.Errorf("unsupported telemetry exporter %q", c.Telemetry.Exporter)
	}

	return nil
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.shutdown_timeout", "30s")

	// Redis
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Cache
	viper.SetDefault("cache.forecast_ttl", "10m")
	viper.SetDefault("cache.prefix", "forecast:")

	// Telemetry
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.exporter", "otlp")
	viper.SetDefault("telemetry.otlp_endpoint", "http://localhost:4318")
	viper.SetDefault("telemetry.service_name", "goldvision-forecast")
	viper.SetDefault("telemetry.service_version", "1.0.0")
	viper.SetDefault("telemetry.log_level", "info")

	// Metrics
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	// Forecast engine
	viper.SetDefault("forecast.min_points", 5)
	viper.SetDefault("forecast.default_horizon", 7)
	viper.SetDefault("forecast.max_horizon", 365)
	viper.SetDefault("forecast.max_workers", 0)
	viper.SetDefault("forecast.random_seed", 42)
	viper.SetDefault("forecast.cap_outliers", false)
	viper.SetDefault("forecast.regime_priors_file", "")
	viper.SetDefault("forecast.confidence_floor", 0.75)
	viper.SetDefault("forecast.confidence_ceiling", 0.95)
}
