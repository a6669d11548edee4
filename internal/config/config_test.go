package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"storyreel/internal/config"
)

func TestLoadDefaultConfigExpandsPathsAndReadsEnv(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("STORYREEL_SPEECH_API_KEY", "speech-key")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "storyreel")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.DraftDBPath() != filepath.Join(wantState, "drafts.db") {
		t.Fatalf("unexpected draft db path: %q", cfg.DraftDBPath())
	}
	if cfg.Speech.APIKey != "speech-key" {
		t.Fatalf("expected speech key from env, got %q", cfg.Speech.APIKey)
	}
	if cfg.Narration.PartDelimiter != "||" {
		t.Fatalf("unexpected delimiter %q", cfg.Narration.PartDelimiter)
	}
	if cfg.Narration.SceneTransitionPause {
		t.Fatal("expected scene transition pause disabled by default")
	}
	if cfg.Playback.FramesPerSecond != 30 {
		t.Fatalf("unexpected fps %d", cfg.Playback.FramesPerSecond)
	}
	if cfg.Upload.Enabled {
		t.Fatal("expected upload disabled by default")
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir, cfg.Paths.SpoolDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "storyreel.toml")

	type payload struct {
		Narration struct {
			VoiceID              string `toml:"voice_id"`
			PartDelimiter        string `toml:"part_delimiter"`
			SceneTransitionPause bool   `toml:"scene_transition_pause"`
		} `toml:"narration"`
		Playback struct {
			FramesPerSecond int `toml:"frames_per_second"`
		} `toml:"playback"`
		Logging struct {
			Format string `toml:"format"`
		} `toml:"logging"`
	}
	custom := payload{}
	custom.Narration.VoiceID = " ko-female-1 "
	custom.Narration.PartDelimiter = " // "
	custom.Narration.SceneTransitionPause = true
	custom.Playback.FramesPerSecond = 60
	custom.Logging.Format = "JSON"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom path to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Narration.VoiceID != "ko-female-1" {
		t.Fatalf("voice id not trimmed: %q", cfg.Narration.VoiceID)
	}
	if cfg.Narration.PartDelimiter != "//" {
		t.Fatalf("delimiter not trimmed: %q", cfg.Narration.PartDelimiter)
	}
	if !cfg.Narration.SceneTransitionPause {
		t.Fatal("expected scene transition pause enabled")
	}
	if cfg.Playback.FramesPerSecond != 60 {
		t.Fatalf("unexpected fps %d", cfg.Playback.FramesPerSecond)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected normalized log format, got %q", cfg.Logging.Format)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"fps", func(c *config.Config) { c.Playback.FramesPerSecond = 0 }, "frames_per_second"},
		{"speed", func(c *config.Config) { c.Playback.PlaybackSpeed = -1 }, "playback_speed"},
		{"speech url", func(c *config.Config) { c.Speech.BaseURL = "ftp://speech" }, "speech.base_url"},
		{"upload url", func(c *config.Config) { c.Upload.Enabled = true }, "upload.base_url"},
		{"log level", func(c *config.Config) { c.Logging.Level = "verbose" }, "logging.level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %q", tc.want, err.Error())
			}
		})
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample file to exist")
	}
	if cfg.Paths.APIBind != "127.0.0.1:7620" {
		t.Fatalf("unexpected api bind %q", cfg.Paths.APIBind)
	}
	encoded, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(encoded), "voice_id") {
		t.Fatalf("expected encoded config to contain voice_id, got %s", encoded)
	}
}
