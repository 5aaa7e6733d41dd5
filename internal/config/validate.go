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
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validateRateLimit(); err != nil {
		return err
	}
	if err := c.validateProcessor(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		return errors.New("paths.library_dir must be set")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/podscrub/config.toml"
		}
		return fmt.Errorf("llm.api_key is required. Set PODSCRUB_LLM_API_KEY env var or edit %s (create with 'podscrub config init')", defaultPath)
	}
	if strings.TrimSpace(c.LLM.BaseURL) == "" {
		return errors.New("llm.base_url must be set")
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return errors.New("llm.model must be set")
	}
	return nil
}

func (c *Config) validateScheduler() error {
	return ensurePositiveMap(map[string]int{
		"scheduler.poll_interval":        c.Scheduler.PollInterval,
		"scheduler.error_retry_interval": c.Scheduler.ErrorRetryInterval,
		"scheduler.stale_job_seconds":    c.Scheduler.StaleJobSeconds,
		"scheduler.command_timeout":      c.Scheduler.CommandTimeout,
		"store.retry_attempts":           c.Store.RetryAttempts,
		"store.retry_backoff_ms":         c.Store.RetryBackoffMS,
		"llm.timeout_seconds":            c.LLM.TimeoutSeconds,
	})
}

func (c *Config) validateRateLimit() error {
	if err := ensurePositiveMap(map[string]int{
		"ratelimit.tokens_per_minute":    c.RateLimit.TokensPerMinute,
		"ratelimit.window_seconds":       c.RateLimit.WindowSeconds,
		"ratelimit.max_concurrent":       c.RateLimit.MaxConcurrent,
		"ratelimit.gate_timeout_seconds": c.RateLimit.GateTimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.RateLimit.MaxTokensPerCall <= 0 {
		return errors.New("ratelimit.max_tokens_per_call must be positive")
	}
	if c.RateLimit.MaxTokensPerCall > c.RateLimit.TokensPerMinute {
		return errors.New("ratelimit.max_tokens_per_call must not exceed ratelimit.tokens_per_minute")
	}
	return nil
}

func (c *Config) validateProcessor() error {
	if strings.TrimSpace(c.Processor.TranscribeCommand) == "" {
		return errors.New("processor.transcribe_command must be set")
	}
	if !strings.Contains(c.Processor.TranscribeCommand, "{input}") {
		return errors.New("processor.transcribe_command must contain the {input} placeholder")
	}
	if strings.TrimSpace(c.Processor.CutCommand) == "" {
		return errors.New("processor.cut_command must be set")
	}
	for _, placeholder := range []string{"{input}", "{segments}", "{output}"} {
		if !strings.Contains(c.Processor.CutCommand, placeholder) {
			return fmt.Errorf("processor.cut_command must contain the %s placeholder", placeholder)
		}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
