package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	StagingDir string `toml:"staging_dir"`
	LibraryDir string `toml:"library_dir"`
	LogDir     string `toml:"log_dir"`
}

// Daemon contains daemon startup behavior.
type Daemon struct {
	// CleanSlate deletes all job rows on startup before re-enqueueing. Posts
	// without processed audio are re-discovered, so no work is lost.
	CleanSlate bool `toml:"clean_slate"`
}

// Store contains persistence guard tuning.
type Store struct {
	// RetryAttempts bounds how many times a commit is retried when the
	// database reports a busy/locked condition.
	RetryAttempts int `toml:"retry_attempts"`
	// RetryBackoffMS is the first retry delay; each subsequent attempt doubles it.
	RetryBackoffMS int `toml:"retry_backoff_ms"`
}

// Scheduler contains job worker timing and the command client timeout.
type Scheduler struct {
	PollInterval       int `toml:"poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	StaleJobSeconds    int `toml:"stale_job_seconds"`
	CommandTimeout     int `toml:"command_timeout"`
}

// LLM contains connection settings for the ad-detection model endpoint.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// RateLimit contains token-bucket and concurrency-gate budgets for outbound
// LLM calls.
type RateLimit struct {
	TokensPerMinute    int `toml:"tokens_per_minute"`
	WindowSeconds      int `toml:"window_seconds"`
	MaxTokensPerCall   int `toml:"max_tokens_per_call"`
	MaxConcurrent      int `toml:"max_concurrent"`
	GateTimeoutSeconds int `toml:"gate_timeout_seconds"`
}

// Processor contains external command templates for the pipeline stages that
// shell out. Templates use {input}, {output}, and {segments} placeholders.
type Processor struct {
	TranscribeCommand      string `toml:"transcribe_command"`
	CutCommand             string `toml:"cut_command"`
	DownloadTimeoutSeconds int    `toml:"download_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for podscrub.
//
// Configuration sections by subsystem:
//   - Paths: data, staging, library, and log directories
//   - Daemon: startup clean-slate behavior
//   - Store: busy-retry attempts and backoff for the persistence guard
//   - Scheduler: worker polling, stale-job threshold, command timeout
//   - LLM: shared connection settings for the ad-detection endpoint
//   - RateLimit: token-bucket window and concurrency-gate budgets
//   - Processor: external transcriber/editor command templates
//   - Logging: log format, level, and retention
type Config struct {
	Paths     Paths     `toml:"paths"`
	Daemon    Daemon    `toml:"daemon"`
	Store     Store     `toml:"store"`
	Scheduler Scheduler `toml:"scheduler"`
	LLM       LLM       `toml:"llm"`
	RateLimit RateLimit `toml:"ratelimit"`
	Processor Processor `toml:"processor"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/podscrub/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/podscrub/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("podscrub.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// LibraryDir is created on a best-effort basis so the daemon can run when
// external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.StagingDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.LibraryDir) != "" {
		// Best-effort to avoid failing config load when storage is offline.
		_ = os.MkdirAll(c.Paths.LibraryDir, 0o755)
	}
	return nil
}

// DatabasePath returns the SQLite database location inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "podscrub.db")
}

// SocketPath returns the daemon control socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "podscrub.sock")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "podscrub.lock")
}

// PIDPath returns the daemon PID file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "podscrub.pid")
}

// LogPath returns the stable pointer to the current daemon log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "podscrub.log")
}

// TranscriberBinary returns the executable name from the transcribe template.
func (c *Config) TranscriberBinary() string {
	return commandBinary(c.Processor.TranscribeCommand)
}

// CutterBinary returns the executable name from the cut template.
func (c *Config) CutterBinary() string {
	return commandBinary(c.Processor.CutCommand)
}

func commandBinary(template string) string {
	fields := strings.Fields(template)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains common LLM settings used across features.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// GetLLM returns the shared LLM connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
}
