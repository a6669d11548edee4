package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"storyreel/internal/draftstore"
)

func newDraftCommand(ctx *commandContext) *cobra.Command {
	draftCmd := &cobra.Command{
		Use:   "draft",
		Short: "Manage saved timeline drafts",
	}

	draftCmd.AddCommand(newDraftListCommand(ctx))
	draftCmd.AddCommand(newDraftImportCommand(ctx))
	draftCmd.AddCommand(newDraftShowCommand(ctx))
	draftCmd.AddCommand(newDraftRemoveCommand(ctx))

	return draftCmd
}

func newDraftListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved drafts, most recently updated first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDrafts(func(store *draftstore.Store) error {
				drafts, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, drafts)
				}
				out := cmd.OutOrStdout()
				if len(drafts) == 0 {
					fmt.Fprintln(out, "No drafts saved")
					return nil
				}
				rows := make([][]string, 0, len(drafts))
				for _, d := range drafts {
					rows = append(rows, []string{
						d.ID,
						d.Name,
						strconv.Itoa(d.SceneCount),
						seconds(d.DurationSeconds),
						d.UpdatedAt.Local().Format(time.DateTime),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Name", "Scenes", "Duration", "Updated"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newDraftImportCommand(ctx *commandContext) *cobra.Command {
	var name string
	var id string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Save a timeline file as a draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tl, err := ctx.loadTimeline(cmd.Context(), args[0], "")
			if err != nil {
				return err
			}
			return ctx.withDrafts(func(store *draftstore.Store) error {
				draft := &draftstore.Draft{ID: strings.TrimSpace(id), Name: strings.TrimSpace(name), Timeline: tl}
				if err := store.Save(cmd.Context(), draft); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved draft %s (%s)\n", draft.ID, draft.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Draft name")
	cmd.Flags().StringVar(&id, "id", "", "Replace the draft with this ID")
	return cmd
}

func newDraftShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a draft as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDrafts(func(store *draftstore.Store) error {
				draft, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if draft == nil {
					return fmt.Errorf("draft %s not found", args[0])
				}
				return writeJSON(cmd, draft)
			})
		},
	}
}

func newDraftRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>...",
		Short: "Delete drafts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDrafts(func(store *draftstore.Store) error {
				out := cmd.OutOrStdout()
				for _, id := range args {
					removed, err := store.Delete(cmd.Context(), id)
					if err != nil {
						return err
					}
					if removed {
						fmt.Fprintf(out, "Removed draft %s\n", id)
					} else {
						fmt.Fprintf(out, "Draft %s not found\n", id)
					}
				}
				return nil
			})
		},
	}
}
