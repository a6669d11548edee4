package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"storyreel/internal/config"
	"storyreel/internal/fonts"
	"storyreel/internal/locator"
	"storyreel/internal/preview"
	"storyreel/internal/timeline"
)

type previewOptions struct {
	draftID  string
	offline  bool
	realtime bool
	start    float64
	scene    int
	bgm      string
}

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	opts := previewOptions{scene: -1}

	cmd := &cobra.Command{
		Use:   "preview [file]",
		Short: "Play a timeline headlessly and print the media cues",
		Long: "Play a timeline headlessly and print the media cues.\n\n" +
			"Narration is synthesized up front through the configured speech service, " +
			"or estimated from reading speed with --offline. Playback is simulated " +
			"frame by frame unless --realtime is set.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			tl, err := ctx.loadTimeline(cmd.Context(), fileArg(args), opts.draftID)
			if err != nil {
				return err
			}
			return runPreview(cmd, ctx, cfg, tl, opts)
		},
	}
	cmd.Flags().StringVar(&opts.draftID, "draft", "", "Load the timeline from a saved draft")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Estimate narration durations instead of calling the speech service")
	cmd.Flags().BoolVar(&opts.realtime, "realtime", false, "Play against the wall clock")
	cmd.Flags().Float64Var(&opts.start, "start", 0, "Start position in seconds")
	cmd.Flags().IntVar(&opts.scene, "scene", -1, "Start at the beginning of this scene index")
	cmd.Flags().StringVar(&opts.bgm, "bgm", "", "Background music template")
	return cmd
}

func runPreview(cmd *cobra.Command, cc *commandContext, cfg *config.Config, tl *timeline.Timeline, opts previewOptions) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	out := cmd.OutOrStdout()
	logger := cc.logger()
	cues := newCueLog(out, timeline.SceneIDs(tl.Scenes))

	collab := preview.Collaborators{
		Narration: cues.Narration(),
		Music:     cues.Music(),
		Renderer:  cues,
		Session:   cues,
		Fonts:     fonts.NewLoader(cfg.Paths.FontDir, logger),
	}
	collab.Synthesizer, collab.Uploader = synthServices(cfg, opts.offline)

	session, err := preview.NewSession(ctx, tl, collab, preview.OptionsFromConfig(cfg, logger))
	if err != nil {
		return err
	}
	defer session.Close()
	cues.clock = session.Time

	if err := session.Prepare(ctx); err != nil {
		return fmt.Errorf("prepare narration: %w", err)
	}
	ready, missing := 0, 0
	for _, w := range session.Windows() {
		switch {
		case w.CacheKey == "":
		case w.Ready():
			ready++
		default:
			missing++
		}
	}
	colorize := shouldColorize(out)
	if missing > 0 {
		fmt.Fprintln(out, renderStatusLine("Narration", statusWarn, fmt.Sprintf("%d parts unavailable, playing silence", missing), colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Narration", statusOK, fmt.Sprintf("%d parts ready", ready), colorize))
	}

	if opts.bgm != "" {
		session.ConfirmBGM(ctx, opts.bgm)
	}
	if opts.scene >= 0 {
		if !session.SelectScene(ctx, opts.scene, locator.SelectOptions{}) {
			return fmt.Errorf("scene index %d out of range", opts.scene)
		}
	} else if opts.start > 0 {
		session.Seek(ctx, opts.start)
	}

	started := time.Now()
	session.Play()
	if opts.realtime {
		go session.Run(ctx)
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for session.Snapshot().Transport.Playing {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	} else {
		step := 1 / float64(tl.FramesPerSecond)
		for session.Snapshot().Transport.Playing {
			if err := ctx.Err(); err != nil {
				return err
			}
			session.Tick(step)
		}
	}

	snap := session.Snapshot()
	fmt.Fprintln(out, renderStatusLine("Preview", statusOK,
		fmt.Sprintf("played to %s in %s", seconds(snap.Transport.Time), time.Since(started).Round(time.Millisecond)), colorize))
	return nil
}
