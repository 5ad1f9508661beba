package config

import (
	"fmt"
	"strings"

	"dicomsort/internal/anonymize"
	"dicomsort/internal/failure"
	"dicomsort/internal/filter"
	"dicomsort/internal/template"
)

// Validate ensures the configuration is usable. Every error matches
// failure.ErrConfiguration.
func (c *Config) Validate() error {
	if err := c.validateSort(); err != nil {
		return err
	}
	if err := c.validateTables(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", failure.ErrConfiguration, fmt.Sprintf(format, args...))
}

func (c *Config) validateSort() error {
	if c.Sort.Workers <= 0 {
		return invalid("sort.workers must be positive")
	}
	if strings.ContainsAny(c.Sort.CollisionSuffix, `/\`) {
		return invalid("sort.collision_suffix must not contain path separators")
	}
	if strings.ContainsAny(c.Sort.Placeholder, `/\`) || c.Sort.Placeholder == "." || c.Sort.Placeholder == ".." {
		return invalid("sort.placeholder must be a single path segment")
	}
	if err := template.Validate(c.Sort.FilenameTemplate); err != nil {
		return invalid("sort.filename_template: %v", err)
	}
	for _, entry := range c.Sort.SortOrder {
		if err := template.Validate(entry); err != nil {
			return invalid("sort.sort_order %q: %v", entry, err)
		}
	}
	if c.Paths.QuarantineDir != "" && c.Paths.QuarantineDir == c.Sort.Target {
		return invalid("paths.quarantine_dir must differ from sort.target")
	}
	return nil
}

func (c *Config) validateTables() error {
	if _, err := filter.ParseSpec("filter.ignore", c.Filter.Ignore); err != nil {
		return err
	}
	if _, err := filter.ParseSpec("filter.ignore_all_except", c.Filter.IgnoreAllExcept); err != nil {
		return err
	}
	if _, err := anonymize.ParseRules(c.Anonymization); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return invalid("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return invalid("logging.retention_days must be >= 0")
	}
	return nil
}
