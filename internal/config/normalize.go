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
	c.normalizeNarration()
	c.normalizeSpeech()
	c.normalizeUpload()
	c.normalizeFonts()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SpoolDir) == "" {
		c.Paths.SpoolDir = defaultSpoolDir
	}
	if c.Paths.SpoolDir, err = expandPath(c.Paths.SpoolDir); err != nil {
		return fmt.Errorf("paths.spool_dir: %w", err)
	}
	if c.Paths.FontDir, err = expandPath(strings.TrimSpace(c.Paths.FontDir)); err != nil {
		return fmt.Errorf("paths.font_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("STORYREEL_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeNarration() {
	c.Narration.VoiceID = strings.TrimSpace(c.Narration.VoiceID)
	if c.Narration.VoiceID == "" {
		c.Narration.VoiceID = defaultVoiceID
	}
	// The delimiter is matched literally, so only surrounding blanks are dropped.
	c.Narration.PartDelimiter = strings.TrimSpace(c.Narration.PartDelimiter)
	if c.Narration.PartDelimiter == "" {
		c.Narration.PartDelimiter = defaultPartDelimiter
	}
	if c.Narration.PrepareConcurrency <= 0 {
		c.Narration.PrepareConcurrency = defaultPrepareConcurrency
	}
}

func (c *Config) normalizeSpeech() {
	c.Speech.BaseURL = strings.TrimSpace(c.Speech.BaseURL)
	if c.Speech.BaseURL == "" {
		c.Speech.BaseURL = defaultSpeechBaseURL
	}
	c.Speech.APIKey = strings.TrimSpace(c.Speech.APIKey)
	if c.Speech.APIKey == "" {
		if value, ok := os.LookupEnv("STORYREEL_SPEECH_API_KEY"); ok {
			c.Speech.APIKey = strings.TrimSpace(value)
		}
	}
	if c.Speech.RetryAttempts <= 0 {
		c.Speech.RetryAttempts = defaultSpeechRetryAttempts
	}
}

func (c *Config) normalizeUpload() {
	c.Upload.BaseURL = strings.TrimSpace(c.Upload.BaseURL)
	c.Upload.APIKey = strings.TrimSpace(c.Upload.APIKey)
	if c.Upload.APIKey == "" {
		if value, ok := os.LookupEnv("STORYREEL_UPLOAD_API_KEY"); ok {
			c.Upload.APIKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeFonts() {
	c.Fonts.DefaultFamily = strings.TrimSpace(c.Fonts.DefaultFamily)
	if c.Fonts.DefaultFamily == "" {
		c.Fonts.DefaultFamily = defaultFontFamily
	}
	c.Fonts.DefaultWeight = strings.TrimSpace(c.Fonts.DefaultWeight)
	if c.Fonts.DefaultWeight == "" {
		c.Fonts.DefaultWeight = defaultFontWeight
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeoutSeconds
	}
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
