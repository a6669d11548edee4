package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"storyreel/internal/export"
	"storyreel/internal/notifications"
	"storyreel/internal/preview"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var draftID string
	var name string
	var offline bool

	exportCmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Synthesize narration and queue a timeline for encoding",
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
			spool, err := ctx.openSpool()
			if err != nil {
				return err
			}

			synth, uploader := synthServices(cfg, offline)
			collab := preview.Collaborators{Synthesizer: synth, Uploader: uploader}
			session, err := preview.NewSession(cmd.Context(), tl, collab, preview.OptionsFromConfig(cfg, ctx.logger()))
			if err != nil {
				return err
			}
			defer session.Close()
			if err := session.Prepare(cmd.Context()); err != nil {
				return fmt.Errorf("prepare narration: %w", err)
			}

			if strings.TrimSpace(name) == "" {
				name = strings.TrimSpace(draftID)
			}
			manifest := export.NewManifest(strings.TrimSpace(name), strings.TrimSpace(draftID),
				session.Timeline(), session.Windows(), "")
			queued, err := spool.Submit(cmd.Context(), manifest)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued export %s with %d narration clips\n", queued.ID, len(queued.Narration))
			if err := notifications.NewService(cfg).Publish(cmd.Context(), notifications.EventExportQueued, queued.Announcement()); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "notification failed:", err)
			}
			return nil
		},
	}
	exportCmd.Flags().StringVar(&draftID, "draft", "", "Export a saved draft")
	exportCmd.Flags().StringVar(&name, "name", "", "Export name")
	exportCmd.Flags().BoolVar(&offline, "offline", false, "Estimate narration durations instead of calling the speech service")

	exportCmd.AddCommand(newExportListCommand(ctx))
	exportCmd.AddCommand(newExportRemoveCommand(ctx))
	return exportCmd
}

func newExportListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List exports waiting for the encoder",
		RunE: func(cmd *cobra.Command, args []string) error {
			spool, err := ctx.openSpool()
			if err != nil {
				return err
			}
			pending, err := spool.Pending(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, pending)
			}
			out := cmd.OutOrStdout()
			if len(pending) == 0 {
				fmt.Fprintln(out, "No exports pending")
				return nil
			}
			rows := make([][]string, 0, len(pending))
			for _, m := range pending {
				rows = append(rows, []string{
					m.ID,
					m.Name,
					strconv.Itoa(len(m.Timeline.Scenes)),
					strconv.Itoa(len(m.Narration)),
					m.CreatedAt.Local().Format(time.DateTime),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Name", "Scenes", "Clips", "Queued"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newExportRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>...",
		Short: "Withdraw pending exports",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spool, err := ctx.openSpool()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, id := range args {
				removed, err := spool.Remove(cmd.Context(), id)
				if err != nil {
					return err
				}
				if removed {
					fmt.Fprintf(out, "Removed export %s\n", id)
				} else {
					fmt.Fprintf(out, "Export %s not found\n", id)
				}
			}
			return nil
		},
	}
}
