package preflight

import (
	"context"

	"storyreel/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Export spool", cfg.Paths.SpoolDir),
		CheckFontDirectory(cfg.Paths.FontDir),
		CheckService(ctx, "Speech service", cfg.Speech.BaseURL, cfg.Speech.APIKey),
	}
	if cfg.Upload.Enabled {
		results = append(results, CheckService(ctx, "Upload service", cfg.Upload.BaseURL, cfg.Upload.APIKey))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
