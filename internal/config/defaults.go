package config

const (
	defaultDataDir                = "~/.local/share/podscrub"
	defaultStagingDir             = "~/.local/share/podscrub/staging"
	defaultLibraryDir             = "~/library/podcasts"
	defaultLogDir                 = "~/.local/share/podscrub/logs"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLogRetentionDays       = 30
	defaultStoreRetryAttempts     = 5
	defaultStoreRetryBackoffMS    = 50
	defaultSchedulerPollInterval  = 5
	defaultSchedulerErrorRetry    = 10
	defaultStaleJobSeconds        = 3600
	defaultCommandTimeoutSeconds  = 10
	defaultLLMBaseURL             = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel               = "google/gemini-3-flash-preview"
	defaultLLMReferer             = "https://github.com/podscrub/podscrub"
	defaultLLMTitle               = "Podscrub Ad Detection"
	defaultLLMTimeoutSeconds      = 60
	defaultTokensPerMinute        = 90000
	defaultRateWindowSeconds      = 60
	defaultMaxTokensPerCall       = 32000
	defaultMaxConcurrent          = 3
	defaultGateTimeoutSeconds     = 30
	defaultTranscribeCommand      = "whisperx {input} --output {output}"
	defaultCutCommand             = "audiocut --input {input} --segments {segments} --output {output}"
	defaultDownloadTimeoutSeconds = 600
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			StagingDir: defaultStagingDir,
			LibraryDir: defaultLibraryDir,
			LogDir:     defaultLogDir,
		},
		Store: Store{
			RetryAttempts:  defaultStoreRetryAttempts,
			RetryBackoffMS: defaultStoreRetryBackoffMS,
		},
		Scheduler: Scheduler{
			PollInterval:       defaultSchedulerPollInterval,
			ErrorRetryInterval: defaultSchedulerErrorRetry,
			StaleJobSeconds:    defaultStaleJobSeconds,
			CommandTimeout:     defaultCommandTimeoutSeconds,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		RateLimit: RateLimit{
			TokensPerMinute:    defaultTokensPerMinute,
			WindowSeconds:      defaultRateWindowSeconds,
			MaxTokensPerCall:   defaultMaxTokensPerCall,
			MaxConcurrent:      defaultMaxConcurrent,
			GateTimeoutSeconds: defaultGateTimeoutSeconds,
		},
		Processor: Processor{
			TranscribeCommand:      defaultTranscribeCommand,
			CutCommand:             defaultCutCommand,
			DownloadTimeoutSeconds: defaultDownloadTimeoutSeconds,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
