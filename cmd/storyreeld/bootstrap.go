package main

import (
	"log/slog"

	"storyreel/internal/config"
	"storyreel/internal/fonts"
	"storyreel/internal/preview"
	"storyreel/internal/services/speech"
	"storyreel/internal/services/upload"
)

// sharedCollaborators builds the speech, upload and font services every
// session uses. Upload is left nil unless enabled.
func sharedCollaborators(cfg *config.Config, logger *slog.Logger) preview.Collaborators {
	collab := preview.Collaborators{
		Synthesizer: speech.NewClient(speech.Config{
			BaseURL:        cfg.Speech.BaseURL,
			APIKey:         cfg.Speech.APIKey,
			TimeoutSeconds: cfg.Speech.TimeoutSeconds,
			RetryAttempts:  cfg.Speech.RetryAttempts,
		}),
		Fonts: fonts.NewLoader(cfg.Paths.FontDir, logger),
	}
	if cfg.Upload.Enabled {
		collab.Uploader = upload.NewClient(upload.Config{
			BaseURL:        cfg.Upload.BaseURL,
			APIKey:         cfg.Upload.APIKey,
			TimeoutSeconds: cfg.Upload.TimeoutSeconds,
		}, nil)
	}
	return collab
}
