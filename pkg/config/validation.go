package config

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	quota, err := cfg.Drive.QuotaBytes()
	if err != nil {
		return err
	}
	if quota <= 0 {
		return fmt.Errorf("drive.quota: must be positive, got %q", cfg.Drive.Quota)
	}

	if cfg.Usage.Cache == "redis" && cfg.Usage.Redis.URL == "" {
		return fmt.Errorf("usage.redis.url: required when usage.cache is redis")
	}

	if cfg.API.UploadRateLimit > 0 && cfg.API.UploadBurst < cfg.API.UploadRateLimit {
		return fmt.Errorf("api.upload_burst: %d is below upload_rate_limit %d", cfg.API.UploadBurst, cfg.API.UploadRateLimit)
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Port == cfg.API.Port {
		return fmt.Errorf("metrics.port: %d is already used by the API", cfg.Metrics.Port)
	}

	for i, mimeType := range cfg.Drive.AllowedMimeTypes {
		if strings.Count(mimeType, "/") != 1 {
			return fmt.Errorf("drive.allowed_mime_types[%d]: %q is not a type/subtype pattern", i, mimeType)
		}
	}

	return nil
}

// QuotaBytes parses Quota ("15 GiB", "500MB", "1073741824").
func (c DriveConfig) QuotaBytes() (int64, error) {
	n, err := humanize.ParseBytes(c.Quota)
	if err != nil {
		return 0, fmt.Errorf("drive.quota: %w", err)
	}
	return int64(n), nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		// Return the first validation error with context
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
