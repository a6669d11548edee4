package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"storyreel/internal/fonts"
	"storyreel/internal/narration"
	"storyreel/internal/timeline"
)

func newTimelineCommand(ctx *commandContext) *cobra.Command {
	timelineCmd := &cobra.Command{
		Use:   "timeline",
		Short: "Inspect timeline documents",
	}

	timelineCmd.AddCommand(newTimelineShowCommand(ctx))
	timelineCmd.AddCommand(newTimelineMarkupCommand(ctx))
	timelineCmd.AddCommand(newTimelineValidateCommand(ctx))

	return timelineCmd
}

func newTimelineShowCommand(ctx *commandContext) *cobra.Command {
	var draftID string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show [file]",
		Short: "List scenes with their windows on the clock",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tl, err := ctx.loadTimeline(cmd.Context(), fileArg(args), draftID)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, tl.Payload())
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d scenes, %s at %dfps, speed %.2fx\n",
				len(tl.Scenes), seconds(tl.TotalDuration()), tl.FramesPerSecond, tl.PlaybackSpeed)
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Scene", "Start", "End", "Transition", "Font", "Script"},
				sceneRows(tl),
				[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&draftID, "draft", "", "Load the timeline from a saved draft")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the renderer payload as JSON")
	return cmd
}

func sceneRows(tl *timeline.Timeline) [][]string {
	windows := timeline.Boundaries(tl.Scenes)
	rows := make([][]string, 0, len(tl.Scenes))
	for i, scene := range tl.Scenes {
		transition := "-"
		if scene.TransitionKind != "" {
			transition = fmt.Sprintf("%s %s", scene.TransitionKind, seconds(scene.EffectiveTransition()))
		}
		font := "-"
		if strings.TrimSpace(scene.Overlay.Font) != "" {
			font = scene.Overlay.FontKey()
		}
		rows = append(rows, []string{
			strconv.Itoa(i),
			scene.ID,
			seconds(windows[i].Start),
			seconds(windows[i].End),
			transition,
			font,
			truncate(scene.Script, 40),
		})
	}
	return rows
}

func truncate(value string, limit int) string {
	value = strings.Join(strings.Fields(value), " ")
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}

func newTimelineMarkupCommand(ctx *commandContext) *cobra.Command {
	var draftID string

	cmd := &cobra.Command{
		Use:   "markup [file]",
		Short: "Show the narration markup and cache keys each scene produces",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			tl, err := ctx.loadTimeline(cmd.Context(), fileArg(args), draftID)
			if err != nil {
				return err
			}
			var rows [][]string
			for i, scene := range tl.Scenes {
				parts := narration.BuildMarkup(scene.Script, narration.MarkupOptions{
					Delimiter:            cfg.Narration.PartDelimiter,
					SceneTransitionPause: cfg.Narration.SceneTransitionPause,
					LastScene:            i == len(tl.Scenes)-1,
				})
				if len(parts) == 0 {
					rows = append(rows, []string{scene.ID, "-", "(silent)"})
					continue
				}
				for p, markup := range parts {
					rows = append(rows, []string{scene.ID, strconv.Itoa(p), markup})
				}
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Voice: %s\n", cfg.Narration.VoiceID)
			fmt.Fprintln(out, renderTable(
				[]string{"Scene", "Part", "Markup"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&draftID, "draft", "", "Load the timeline from a saved draft")
	return cmd
}

func newTimelineValidateCommand(ctx *commandContext) *cobra.Command {
	var draftID string

	cmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a timeline and check that its overlay fonts resolve",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			tl, err := ctx.loadTimeline(cmd.Context(), fileArg(args), draftID)
			if err != nil {
				fmt.Fprintln(out, renderStatusLine("Timeline", statusError, err.Error(), colorize))
				return err
			}
			fmt.Fprintln(out, renderStatusLine("Timeline", statusOK,
				fmt.Sprintf("%d scenes, %s", len(tl.Scenes), seconds(tl.TotalDuration())), colorize))

			loader := fonts.NewLoader(cfg.Paths.FontDir, ctx.logger())
			seen := make(map[string]bool)
			for _, scene := range tl.Scenes {
				if strings.TrimSpace(scene.Overlay.Font) == "" {
					continue
				}
				key := scene.Overlay.FontKey()
				if seen[key] {
					continue
				}
				seen[key] = true
				family, weight := fonts.ParseKey(key)
				font, err := loader.Load(cmd.Context(), family, weight)
				switch {
				case err != nil:
					fmt.Fprintln(out, renderStatusLine("Font", statusError, key+": "+err.Error(), colorize))
				case font.Fallback:
					fmt.Fprintln(out, renderStatusLine("Font", statusWarn, key+": not found, using built-in fallback", colorize))
				default:
					fmt.Fprintln(out, renderStatusLine("Font", statusOK, key+" ("+font.Path+")", colorize))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&draftID, "draft", "", "Load the timeline from a saved draft")
	return cmd
}
