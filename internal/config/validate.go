package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateBinaries()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.PollInterval <= 0 {
		return errors.New("workflow.poll_interval must be positive")
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		return errors.New("workflow.error_retry_interval must be positive")
	}
	if c.Workflow.CleanupMaxAgeHours < 0 {
		return errors.New("workflow.cleanup_max_age_hours must not be negative")
	}
	if c.Workflow.SweepIntervalMins <= 0 {
		return errors.New("workflow.sweep_interval_minutes must be positive")
	}
	if c.Workflow.ListLimit <= 0 {
		return errors.New("workflow.list_limit must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "auto", "text", "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
}

func (c *Config) validateBinaries() error {
	if strings.TrimSpace(c.Media.YtDlpBinary) == "" {
		return errors.New("media.ytdlp_binary must be set")
	}
	if strings.TrimSpace(c.Whisper.UVXBinary) == "" {
		return errors.New("whisper.uvx_binary must be set")
	}
	return nil
}
