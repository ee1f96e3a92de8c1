// Package config provides configuration management for the strategy validator.
package config

import (
	"fmt"
	"time"
)

// DateLayout is the layout used for dates in configuration files
const DateLayout = "2006-01-02"

// Config represents the complete application configuration
type Config struct {
	App         AppConfig         `mapstructure:"app" validate:"required"`
	Database    DatabaseConfig    `mapstructure:"database"`
	WalkForward WalkForwardConfig `mapstructure:"walk_forward" validate:"required"`
	Strategy    StrategyConfig    `mapstructure:"strategy" validate:"required"`
	Optimizer   OptimizerConfig   `mapstructure:"optimizer" validate:"required"`
	Runner      RunnerConfig      `mapstructure:"runner" validate:"required"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Schedule    ScheduleConfig    `mapstructure:"schedule"`
	Export      ExportConfig      `mapstructure:"export"`
	Secrets     SecretsConfig     `mapstructure:"secrets"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
	LogFormat   string `mapstructure:"log_format" validate:"omitempty,oneof=json text"`
}

// DatabaseConfig represents database connection configuration.
// Persistence is optional; the remaining fields are checked only when Enabled.
type DatabaseConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Name           string `mapstructure:"name"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-full"`
	MaxConnections int    `mapstructure:"max_connections" validate:"omitempty,gt=0"`
	MinConnections int    `mapstructure:"min_connections" validate:"omitempty,gte=0"`
}

// WalkForwardConfig describes the validation range and window policy
type WalkForwardConfig struct {
	StartDate         string  `mapstructure:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate           string  `mapstructure:"end_date" validate:"required,datetime=2006-01-02"`
	TrainingDays      int     `mapstructure:"training_days" validate:"required,gt=0"`
	TestingDays       int     `mapstructure:"testing_days" validate:"required,gt=0"`
	StepDays          int     `mapstructure:"step_days" validate:"required,gt=0"`
	Mode              string  `mapstructure:"mode" validate:"required,walkmode"`
	RankingMetric     string  `mapstructure:"ranking_metric" validate:"omitempty,rankmetric"`
	MaxConcurrency    int     `mapstructure:"max_concurrency" validate:"gte=0"`
	RiskFreeRate      float64 `mapstructure:"risk_free_rate" validate:"gte=0,lte=1"`
	ZeroTolerance     float64 `mapstructure:"zero_tolerance" validate:"gte=0"`
	RobustThreshold   float64 `mapstructure:"robust_threshold"`
	MarginalThreshold float64 `mapstructure:"marginal_threshold"`
}

// StrategyConfig identifies the strategy template under validation
type StrategyConfig struct {
	Name     string                 `mapstructure:"name" validate:"required"`
	Version  string                 `mapstructure:"version"`
	Settings map[string]interface{} `mapstructure:"settings"`
}

// OptimizerConfig configures the grid-search optimizer
type OptimizerConfig struct {
	Parallelism         int               `mapstructure:"parallelism" validate:"gte=0"`
	CacheTTLSeconds     int               `mapstructure:"cache_ttl_seconds" validate:"gte=0"`
	CacheCleanupSeconds int               `mapstructure:"cache_cleanup_seconds" validate:"gte=0"`
	Parameters          []ParameterConfig `mapstructure:"parameters" validate:"required,min=1,dive"`
}

// ParameterConfig is one dimension of the parameter space
type ParameterConfig struct {
	Name   string   `mapstructure:"name" validate:"required"`
	Type   string   `mapstructure:"type" validate:"required,paramtype"`
	Min    float64  `mapstructure:"min"`
	Max    float64  `mapstructure:"max"`
	Step   float64  `mapstructure:"step" validate:"gte=0"`
	Values []string `mapstructure:"values"`
}

// RunnerConfig configures the remote backtest runner
type RunnerConfig struct {
	BaseURL                    string  `mapstructure:"base_url" validate:"required,url"`
	APIKey                     string  `mapstructure:"api_key"`
	TimeoutSeconds             int     `mapstructure:"timeout_seconds" validate:"required,gt=0"`
	RetryAttempts              int     `mapstructure:"retry_attempts" validate:"gte=0"`
	RequestsPerSecond          float64 `mapstructure:"requests_per_second" validate:"required,gt=0"`
	Burst                      int     `mapstructure:"burst" validate:"required,gt=0"`
	CircuitBreakerThreshold    int     `mapstructure:"circuit_breaker_threshold" validate:"required,gt=0"`
	CircuitBreakerResetSeconds int     `mapstructure:"circuit_breaker_reset_seconds" validate:"required,gt=0"`
}

// MetricsConfig represents metrics and health endpoint configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Path    string `mapstructure:"path"`
}

// ScheduleConfig represents periodic revalidation scheduling
type ScheduleConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Cron    string `mapstructure:"cron"`
}

// ExportConfig controls report files written after a run
type ExportConfig struct {
	OutputDir string `mapstructure:"output_dir"`
	JSON      bool   `mapstructure:"json"`
	CSV       bool   `mapstructure:"csv"`
}

// SecretsConfig points at the AWS Secrets Manager secret overlaying credentials
type SecretsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Region     string `mapstructure:"region"`
	SecretName string `mapstructure:"secret_name"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsStaging checks if the application is running in staging mode
func (c *Config) IsStaging() bool {
	return c.App.Environment == "staging"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return c.Database.DSN()
}

// DSN returns a PostgreSQL connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User,
		d.Password,
		d.Host,
		d.Port,
		d.Name,
		d.SSLMode,
	)
}

// DateRange parses the configured start and end dates as UTC midnights
func (w WalkForwardConfig) DateRange() (time.Time, time.Time, error) {
	start, err := time.Parse(DateLayout, w.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid walk_forward start_date: %w", err)
	}
	end, err := time.Parse(DateLayout, w.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid walk_forward end_date: %w", err)
	}
	return start, end, nil
}

// RequestTimeout returns the runner request timeout
func (r RunnerConfig) RequestTimeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}
