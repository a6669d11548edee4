package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"storyreel/internal/config"
	"storyreel/internal/draftstore"
	"storyreel/internal/export"
	"storyreel/internal/logging"
	"storyreel/internal/narration"
	"storyreel/internal/services"
	"storyreel/internal/services/speech"
	"storyreel/internal/services/upload"
	"storyreel/internal/timeline"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// logger writes to stderr only so command output stays parseable.
func (c *commandContext) logger() *slog.Logger {
	cfg, err := c.ensureConfig()
	if err != nil {
		return logging.NewNop()
	}
	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

func (c *commandContext) withDrafts(fn func(*draftstore.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := draftstore.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func (c *commandContext) openSpool() (*export.Spool, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return export.NewSpool(cfg.Paths.SpoolDir, c.logger())
}

// loadTimeline reads a timeline from a JSON file or, when draftID is set, from
// the draft store, then fills defaults and validates it.
func (c *commandContext) loadTimeline(ctx context.Context, path, draftID string) (*timeline.Timeline, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	var tl *timeline.Timeline
	switch {
	case strings.TrimSpace(draftID) != "":
		err = c.withDrafts(func(store *draftstore.Store) error {
			draft, err := store.Get(ctx, strings.TrimSpace(draftID))
			if err != nil {
				return err
			}
			if draft == nil {
				return services.Wrap(services.ErrNotFound, "cli", "load draft", "draft "+draftID, nil)
			}
			tl = draft.Timeline
			return nil
		})
	case strings.TrimSpace(path) != "":
		tl, err = timeline.Load(path)
	default:
		return nil, fmt.Errorf("a timeline file or --draft is required")
	}
	if err != nil {
		return nil, err
	}
	tl.Normalize(cfg.TimelineDefaults())
	if err := tl.Validate(); err != nil {
		return nil, fmt.Errorf("invalid timeline: %w", err)
	}
	return tl, nil
}

// synthServices returns the speech client, or the reading-speed estimate when
// offline. The uploader is nil unless enabled and online.
func synthServices(cfg *config.Config, offline bool) (narration.Synthesizer, narration.Uploader) {
	if offline {
		return estimateSynth{}, nil
	}
	synth := speech.NewClient(speech.Config{
		BaseURL:        cfg.Speech.BaseURL,
		APIKey:         cfg.Speech.APIKey,
		TimeoutSeconds: cfg.Speech.TimeoutSeconds,
		RetryAttempts:  cfg.Speech.RetryAttempts,
	})
	if !cfg.Upload.Enabled {
		return synth, nil
	}
	return synth, upload.NewClient(upload.Config{
		BaseURL:        cfg.Upload.BaseURL,
		APIKey:         cfg.Upload.APIKey,
		TimeoutSeconds: cfg.Upload.TimeoutSeconds,
	}, nil)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func fileArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
