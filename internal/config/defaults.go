package config

const (
	defaultStateDir             = "~/.local/share/storyreel"
	defaultLogDir               = "~/.local/share/storyreel/logs"
	defaultSpoolDir             = "~/.local/share/storyreel/exports"
	defaultFontDir              = "~/.local/share/storyreel/fonts"
	defaultAPIBind              = "127.0.0.1:7620"
	defaultFramesPerSecond      = 30
	defaultPlaybackSpeed        = 1.0
	defaultWidth                = 1080
	defaultHeight               = 1920
	defaultVoiceID              = "default"
	defaultPartDelimiter        = "||"
	defaultPrepareConcurrency   = 2
	defaultSpeechBaseURL        = "http://127.0.0.1:7621/v1/synthesize"
	defaultSpeechTimeoutSeconds = 30
	defaultSpeechRetryAttempts  = 3
	defaultUploadTimeoutSeconds = 30
	defaultFontFamily           = "Go"
	defaultFontWeight           = "400"
	defaultNtfyTimeoutSeconds   = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			SpoolDir: defaultSpoolDir,
			FontDir:  defaultFontDir,
			APIBind:  defaultAPIBind,
		},
		Playback: Playback{
			FramesPerSecond: defaultFramesPerSecond,
			PlaybackSpeed:   defaultPlaybackSpeed,
			Width:           defaultWidth,
			Height:          defaultHeight,
		},
		Narration: Narration{
			VoiceID:            defaultVoiceID,
			PartDelimiter:      defaultPartDelimiter,
			PrepareConcurrency: defaultPrepareConcurrency,
		},
		Speech: Speech{
			BaseURL:        defaultSpeechBaseURL,
			TimeoutSeconds: defaultSpeechTimeoutSeconds,
			RetryAttempts:  defaultSpeechRetryAttempts,
		},
		Upload: Upload{
			TimeoutSeconds: defaultUploadTimeoutSeconds,
		},
		Fonts: Fonts{
			DefaultFamily: defaultFontFamily,
			DefaultWeight: defaultFontWeight,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
