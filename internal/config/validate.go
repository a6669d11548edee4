package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePlayback(); err != nil {
		return err
	}
	if err := c.validateSpeech(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	return validateURL("notifications.ntfy_topic", c.Notifications.NtfyTopic)
}

func (c *Config) validatePlayback() error {
	if c.Playback.FramesPerSecond <= 0 || c.Playback.FramesPerSecond > 120 {
		return errors.New("playback.frames_per_second must be between 1 and 120")
	}
	if c.Playback.PlaybackSpeed <= 0 || c.Playback.PlaybackSpeed > 4 {
		return errors.New("playback.playback_speed must be greater than 0 and at most 4")
	}
	if c.Playback.Width <= 0 || c.Playback.Height <= 0 {
		return errors.New("playback.width and playback.height must be positive")
	}
	return nil
}

func (c *Config) validateSpeech() error {
	if err := validateURL("speech.base_url", c.Speech.BaseURL); err != nil {
		return err
	}
	if c.Speech.TimeoutSeconds <= 0 {
		return errors.New("speech.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateUpload() error {
	if !c.Upload.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Upload.BaseURL) == "" {
		return errors.New("upload.base_url must be set when upload.enabled is true")
	}
	if err := validateURL("upload.base_url", c.Upload.BaseURL); err != nil {
		return err
	}
	if c.Upload.TimeoutSeconds <= 0 {
		return errors.New("upload.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func validateURL(field, value string) error {
	parsed, err := url.Parse(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL, got %q", field, value)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", field)
	}
	return nil
}
