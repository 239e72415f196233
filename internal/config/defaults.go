package config

const (
	defaultDataDir            = "~/.local/share/tscribe/data"
	defaultLogDir             = "~/.local/share/tscribe/logs"
	defaultAPIBind            = "127.0.0.1:8643"
	defaultLogFormat          = "auto"
	defaultLogLevel           = "info"
	defaultWhisperModel       = "base"
	defaultWhisperDevice      = "auto"
	defaultWhisperCompute     = "int8"
	defaultUVXBinary          = "uvx"
	defaultYtDlpBinary        = "yt-dlp"
	defaultRequestTimeout     = 30
	defaultPollInterval       = 5
	defaultErrorRetryInterval = 10
	defaultCleanupMaxAgeHours = 24
	defaultSweepIntervalMins  = 60
	defaultListLimit          = 50
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Whisper: Whisper{
			Model:       defaultWhisperModel,
			Device:      defaultWhisperDevice,
			ComputeType: defaultWhisperCompute,
			UVXBinary:   defaultUVXBinary,
		},
		Media: Media{
			YtDlpBinary:    defaultYtDlpBinary,
			RequestTimeout: defaultRequestTimeout,
		},
		Workflow: Workflow{
			PollInterval:       defaultPollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			CleanupMaxAgeHours: defaultCleanupMaxAgeHours,
			SweepIntervalMins:  defaultSweepIntervalMins,
			FallbackLanguages:  []string{"de", "en"},
			ListLimit:          defaultListLimit,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
