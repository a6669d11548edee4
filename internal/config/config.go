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

	"storyreel/internal/fileutil"
	"storyreel/internal/timeline"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
	SpoolDir string `toml:"spool_dir"`
	FontDir  string `toml:"font_dir"`
	APIBind  string `toml:"api_bind"`
	// APIToken, when set, is required as a bearer token on every API request.
	APIToken string `toml:"api_token"`
}

// Playback contains defaults applied to timelines that omit global parameters.
type Playback struct {
	FramesPerSecond int     `toml:"frames_per_second"`
	PlaybackSpeed   float64 `toml:"playback_speed"`
	Width           int     `toml:"width"`
	Height          int     `toml:"height"`
}

// Narration contains the markup and synthesis policy for scene narration.
type Narration struct {
	VoiceID string `toml:"voice_id"`
	// PartDelimiter splits one scene script into several spoken lines.
	PartDelimiter string `toml:"part_delimiter"`
	// SceneTransitionPause appends a long pause to every non-final scene.
	SceneTransitionPause bool `toml:"scene_transition_pause"`
	PrepareConcurrency   int  `toml:"prepare_concurrency"`
}

// Speech contains configuration for the speech-synthesis service.
type Speech struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryAttempts  int    `toml:"retry_attempts"`
}

// Upload contains configuration for the narration upload service.
type Upload struct {
	Enabled        bool   `toml:"enabled"`
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Fonts contains the fallback used when an overlay font cannot be loaded.
type Fonts struct {
	DefaultFamily string `toml:"default_family"`
	DefaultWeight string `toml:"default_weight"`
}

// Notifications contains the ntfy topic that receives export and daemon events.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for storyreel.
//
// Configuration sections by subsystem:
//   - Paths: state, log, export spool and font directories plus the API bind address
//   - Playback: timeline defaults (fps, speed, resolution)
//   - Narration: voice, multi-part delimiter, pause policy
//   - Speech: speech-synthesis service connection
//   - Upload: narration upload service connection
//   - Fonts: overlay font fallback
//   - Notifications: ntfy topic for export and daemon events
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Playback      Playback      `toml:"playback"`
	Narration     Narration     `toml:"narration"`
	Speech        Speech        `toml:"speech"`
	Upload        Upload        `toml:"upload"`
	Fonts         Fonts         `toml:"fonts"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/storyreel/config.toml")
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

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("storyreel.toml")
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
// The font directory is optional and only created on a best-effort basis.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir, c.Paths.SpoolDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.FontDir) != "" {
		_ = os.MkdirAll(c.Paths.FontDir, 0o755)
	}
	return nil
}

// DraftDBPath returns the location of the SQLite draft database.
func (c *Config) DraftDBPath() string {
	return filepath.Join(c.Paths.StateDir, "drafts.db")
}

// TimelineDefaults returns the playback parameters applied to timelines that
// omit them.
func (c *Config) TimelineDefaults() timeline.Defaults {
	return timeline.Defaults{
		FramesPerSecond: c.Playback.FramesPerSecond,
		PlaybackSpeed:   c.Playback.PlaybackSpeed,
		Width:           c.Playback.Width,
		Height:          c.Playback.Height,
	}
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
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := fileutil.WriteFileAtomic(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
