package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStore()
	c.normalizeScheduler()
	c.normalizeLLM()
	c.normalizeRateLimit()
	c.normalizeProcessor()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		c.Paths.StagingDir = defaultStagingDir
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeStore() {
	if c.Store.RetryAttempts <= 0 {
		c.Store.RetryAttempts = defaultStoreRetryAttempts
	}
	if c.Store.RetryBackoffMS <= 0 {
		c.Store.RetryBackoffMS = defaultStoreRetryBackoffMS
	}
}

func (c *Config) normalizeScheduler() {
	if c.Scheduler.PollInterval <= 0 {
		c.Scheduler.PollInterval = defaultSchedulerPollInterval
	}
	if c.Scheduler.ErrorRetryInterval <= 0 {
		c.Scheduler.ErrorRetryInterval = defaultSchedulerErrorRetry
	}
	if c.Scheduler.StaleJobSeconds <= 0 {
		c.Scheduler.StaleJobSeconds = defaultStaleJobSeconds
	}
	if c.Scheduler.CommandTimeout <= 0 {
		c.Scheduler.CommandTimeout = defaultCommandTimeoutSeconds
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("PODSCRUB_LLM_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	if c.LLM.Referer == "" {
		c.LLM.Referer = defaultLLMReferer
	}
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.Title == "" {
		c.LLM.Title = defaultLLMTitle
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeRateLimit() {
	if c.RateLimit.TokensPerMinute <= 0 {
		c.RateLimit.TokensPerMinute = defaultTokensPerMinute
	}
	if c.RateLimit.WindowSeconds <= 0 {
		c.RateLimit.WindowSeconds = defaultRateWindowSeconds
	}
	if c.RateLimit.MaxTokensPerCall <= 0 {
		c.RateLimit.MaxTokensPerCall = defaultMaxTokensPerCall
	}
	if c.RateLimit.MaxConcurrent <= 0 {
		c.RateLimit.MaxConcurrent = defaultMaxConcurrent
	}
	if c.RateLimit.GateTimeoutSeconds <= 0 {
		c.RateLimit.GateTimeoutSeconds = defaultGateTimeoutSeconds
	}
}

func (c *Config) normalizeProcessor() {
	c.Processor.TranscribeCommand = strings.TrimSpace(c.Processor.TranscribeCommand)
	if c.Processor.TranscribeCommand == "" {
		c.Processor.TranscribeCommand = defaultTranscribeCommand
	}
	c.Processor.CutCommand = strings.TrimSpace(c.Processor.CutCommand)
	if c.Processor.CutCommand == "" {
		c.Processor.CutCommand = defaultCutCommand
	}
	if c.Processor.DownloadTimeoutSeconds <= 0 {
		c.Processor.DownloadTimeoutSeconds = defaultDownloadTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
