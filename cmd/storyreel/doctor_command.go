package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"storyreel/internal/notifications"
	"storyreel/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var sendTest bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check directories and external services",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			results := preflight.RunAll(cmd.Context(), cfg)
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}

			if cfg.Notifications.NtfyTopic == "" {
				fmt.Fprintln(out, renderStatusLine("Notifications", statusInfo, "disabled", colorize))
			} else if sendTest {
				svc := notifications.NewService(cfg)
				if err := svc.Publish(cmd.Context(), notifications.EventTest, nil); err != nil {
					fmt.Fprintln(out, renderStatusLine("Notifications", statusError, err.Error(), colorize))
				} else {
					fmt.Fprintln(out, renderStatusLine("Notifications", statusOK, "test sent", colorize))
				}
			} else {
				fmt.Fprintln(out, renderStatusLine("Notifications", statusInfo, cfg.Notifications.NtfyTopic, colorize))
			}

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d checks failed", len(failed))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&sendTest, "notify", false, "Send a test notification")
	return cmd
}
