// Package config provides configuration management for the strategy validator.
package config

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// CustomValidator wraps the validator with custom validation rules
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new validator with custom validation functions
func NewValidator() *CustomValidator {
	v := validator.New()

	// Register custom validation functions
	_ = v.RegisterValidation("environment", validateEnvironment)
	_ = v.RegisterValidation("loglevel", validateLogLevel)
	_ = v.RegisterValidation("walkmode", validateWalkMode)
	_ = v.RegisterValidation("rankmetric", validateRankingMetric)
	_ = v.RegisterValidation("paramtype", validateParamType)

	return &CustomValidator{validator: v}
}

// Validate validates the entire configuration
func Validate(cfg *Config) error {
	cv := NewValidator()
	return cv.Validate(cfg)
}

// Validate validates the configuration using registered validation rules
func (cv *CustomValidator) Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("configuration is required")
	}
	err := cv.validator.Struct(cfg)
	if err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}

	// Additional cross-field validations
	if err := validateCrossField(cfg); err != nil {
		return err
	}

	return nil
}

// validateEnvironment validates the environment field
func validateEnvironment(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "development", "staging", "production":
		return true
	default:
		return false
	}
}

// validateLogLevel validates the log level field
func validateLogLevel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func validateWalkMode(fl validator.FieldLevel) bool {
	switch strings.ToLower(fl.Field().String()) {
	case "rolling", "anchored":
		return true
	default:
		return false
	}
}

func validateRankingMetric(fl validator.FieldLevel) bool {
	switch strings.ToLower(fl.Field().String()) {
	case "sharpe", "sharpe_ratio", "sortino", "sortino_ratio", "total_return", "annualized_return", "profit_factor", "win_rate":
		return true
	default:
		return false
	}
}

func validateParamType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "int", "float", "bool", "string":
		return true
	default:
		return false
	}
}

// validateCrossField performs cross-field validations
func validateCrossField(cfg *Config) error {
	start, end, err := cfg.WalkForward.DateRange()
	if err != nil {
		return err
	}
	if !start.Before(end) {
		return fmt.Errorf("walk_forward start_date must be before end_date")
	}

	rangeDays := int(end.Sub(start) / (24 * time.Hour))
	if cfg.WalkForward.TrainingDays+cfg.WalkForward.TestingDays > rangeDays {
		return fmt.Errorf("training_days + testing_days (%d) exceeds the %d day range",
			cfg.WalkForward.TrainingDays+cfg.WalkForward.TestingDays, rangeDays)
	}

	if cfg.WalkForward.MarginalThreshold > cfg.WalkForward.RobustThreshold {
		return fmt.Errorf("marginal_threshold cannot exceed robust_threshold")
	}

	seen := make(map[string]bool, len(cfg.Optimizer.Parameters))
	for _, p := range cfg.Optimizer.Parameters {
		if seen[p.Name] {
			return fmt.Errorf("duplicate optimizer parameter %q", p.Name)
		}
		seen[p.Name] = true
		if err := validateParameterBounds(p); err != nil {
			return err
		}
	}

	if cfg.Database.Enabled {
		if cfg.Database.Host == "" || cfg.Database.Name == "" || cfg.Database.User == "" {
			return fmt.Errorf("database host, name and user are required when persistence is enabled")
		}
		if cfg.Database.MinConnections > cfg.Database.MaxConnections {
			return fmt.Errorf("min_connections cannot exceed max_connections")
		}
	}

	if cfg.Schedule.Enabled {
		if _, err := cron.ParseStandard(cfg.Schedule.Cron); err != nil {
			return fmt.Errorf("invalid schedule cron expression %q: %w", cfg.Schedule.Cron, err)
		}
	}

	if cfg.Secrets.Enabled && (cfg.Secrets.Region == "" || cfg.Secrets.SecretName == "") {
		return fmt.Errorf("secrets region and secret_name are required when secrets are enabled")
	}

	// Validate production environment requirements
	if cfg.IsProduction() && cfg.Database.Enabled && cfg.Database.SSLMode == "disable" {
		return fmt.Errorf("production environment requires SSL mode to be 'require' or 'verify-full'")
	}

	return nil
}

func validateParameterBounds(p ParameterConfig) error {
	switch p.Type {
	case "int", "float":
		for _, f := range []float64{p.Min, p.Max, p.Step} {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return fmt.Errorf("parameter %q: bounds and step must be finite", p.Name)
			}
		}
		if p.Min > p.Max {
			return fmt.Errorf("parameter %q: min cannot exceed max", p.Name)
		}
		if p.Step <= 0 {
			return fmt.Errorf("parameter %q: step must be positive", p.Name)
		}
		if p.Type == "int" && p.Step != math.Trunc(p.Step) {
			return fmt.Errorf("parameter %q: integer step must be a whole number", p.Name)
		}
	case "string":
		if len(p.Values) == 0 {
			return fmt.Errorf("parameter %q: values are required for string parameters", p.Name)
		}
	}
	return nil
}

// formatValidationErrors formats validation errors into a readable string
func formatValidationErrors(validationErrors validator.ValidationErrors) error {
	var errMsg string
	for _, fieldError := range validationErrors {
		field := fieldError.StructField()
		tag := fieldError.Tag()
		value := fieldError.Value()

		switch tag {
		case "required":
			errMsg += fmt.Sprintf("- Field '%s' is required\n", field)
		case "url":
			errMsg += fmt.Sprintf("- Field '%s' must be a valid URL, got '%v'\n", field, value)
		case "min", "max":
			errMsg += fmt.Sprintf("- Field '%s' validation failed: %s constraint violated\n", field, tag)
		case "gt", "gte", "lt", "lte":
			errMsg += fmt.Sprintf("- Field '%s' validation failed: numeric constraint %s violated\n", field, tag)
		case "environment":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: development, staging, production\n", field)
		case "loglevel":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: debug, info, warn, error\n", field)
		case "walkmode":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: rolling, anchored\n", field)
		case "rankmetric":
			errMsg += fmt.Sprintf("- Field '%s' has unknown ranking metric '%v'\n", field, value)
		case "paramtype":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: int, float, bool, string\n", field)
		case "datetime":
			errMsg += fmt.Sprintf("- Field '%s' must be a date in YYYY-MM-DD format, got '%v'\n", field, value)
		case "oneof":
			errMsg += fmt.Sprintf("- Field '%s' has invalid value '%v'\n", field, value)
		default:
			errMsg += fmt.Sprintf("- Field '%s' failed validation: %s\n", field, tag)
		}
	}
	return fmt.Errorf("configuration validation failed:\n%s", errMsg)
}

// ValidateEnvironment validates environment-specific requirements
func ValidateEnvironment(cfg *Config) error {
	if cfg.IsProduction() {
		if cfg.Database.Enabled && cfg.Database.SSLMode == "disable" {
			return fmt.Errorf("production environment requires database SSL mode to be 'require' or 'verify-full'")
		}
		if isTestCredential(cfg.Runner.APIKey) {
			return fmt.Errorf("production environment should not use a test runner API key")
		}
		if strings.HasPrefix(cfg.Runner.BaseURL, "http://") {
			return fmt.Errorf("production environment requires an https runner base_url")
		}
	}
	return nil
}

// isTestCredential checks if a credential looks like a test credential
func isTestCredential(credential string) bool {
	testPatterns := []string{
		"test", "demo", "example", "placeholder", "YOUR_",
	}

	for _, pattern := range testPatterns {
		if match, _ := regexp.MatchString("(?i)"+pattern, credential); match {
			return true
		}
	}

	return false
}
