package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSort()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StateDir == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.StateDir, "logs")
	} else if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.QuarantineDir, err = expandPath(strings.TrimSpace(c.Paths.QuarantineDir)); err != nil {
		return fmt.Errorf("paths.quarantine_dir: %w", err)
	}
	if strings.TrimSpace(c.Ledger.Path) == "" {
		c.Ledger.Path = filepath.Join(c.Paths.StateDir, "ledger.db")
	} else if c.Ledger.Path, err = expandPath(c.Ledger.Path); err != nil {
		return fmt.Errorf("ledger.path: %w", err)
	}
	if c.Sort.Target, err = expandPath(strings.TrimSpace(c.Sort.Target)); err != nil {
		return fmt.Errorf("sort.target: %w", err)
	}
	sources := make([]string, 0, len(c.Sort.Sources))
	for _, src := range c.Sort.Sources {
		src = strings.TrimSpace(src)
		if src == "" {
			continue
		}
		expanded, err := expandPath(src)
		if err != nil {
			return fmt.Errorf("sort.sources: %w", err)
		}
		sources = append(sources, expanded)
	}
	c.Sort.Sources = sources
	return nil
}

func (c *Config) normalizeSort() {
	if c.Sort.Workers <= 0 {
		c.Sort.Workers = defaultWorkers
	}
	if c.Sort.CollisionSuffix == "" {
		c.Sort.CollisionSuffix = defaultCollisionSuffix
	}
	c.Sort.Placeholder = strings.TrimSpace(c.Sort.Placeholder)
	if c.Sort.Placeholder == "" {
		c.Sort.Placeholder = defaultPlaceholder
	}
	c.Sort.FilenameTemplate = strings.TrimSpace(c.Sort.FilenameTemplate)
	order := make([]string, 0, len(c.Sort.SortOrder))
	for _, entry := range c.Sort.SortOrder {
		if entry = strings.TrimSpace(entry); entry != "" {
			order = append(order, entry)
		}
	}
	c.Sort.SortOrder = order
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
