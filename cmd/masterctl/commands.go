package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/mastersync/internal/admin"
	"github.com/JonMunkholm/mastersync/internal/core"
)

func newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List tools and whether they can answer lookups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TOOL\tMODEL\tAVAILABLE\tMASTERS")
			for _, t := range app.Service.ListTools(cmd.Context()) {
				fmt.Fprintf(tw, "%s\t%s\t%v\t%s\n", t.ID, t.Model, t.Available, strings.Join(t.Masters, ","))
			}
			return tw.Flush()
		},
	}
}

func newRefreshCmd() *cobra.Command {
	var force, all bool

	cmd := &cobra.Command{
		Use:   "refresh [tool...]",
		Short: "Refresh stale tools, or every named tool with --force",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				if force {
					return errors.New("--all runs the scheduled pass and cannot be combined with --force")
				}
				return printJSON(cmd.OutOrStdout(), app.Service.RefreshAll(cmd.Context()))
			}
			if len(args) == 0 {
				return errors.New("name at least one tool or pass --all")
			}

			var errs []error
			for _, id := range args {
				report, err := app.Service.EnsureUpdated(cmd.Context(), id, force)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %s", id, core.FormatUserError(err)))
				}
				if report != nil {
					if err := printJSON(cmd.OutOrStdout(), report); err != nil {
						return err
					}
				}
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "refresh even when the tool was refreshed today")
	cmd.Flags().BoolVar(&all, "all", false, "run one scheduled pass over every tool")
	return cmd
}

func newStatusCmd() *cobra.Command {
	var masterID string

	cmd := &cobra.Command{
		Use:   "status <tool>",
		Short: "Show when a tool was last refreshed and how many rows it holds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.Service.GetStatus(cmd.Context(), args[0], masterID)
			if err != nil {
				return errors.New(core.FormatUserError(err))
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}
	cmd.Flags().StringVarP(&masterID, "master", "m", "", "limit the row count to one master file")
	return cmd
}

func newResolveCmd() *cobra.Command {
	var ensure bool

	cmd := &cobra.Command{
		Use:   "resolve <tool> <term...>",
		Short: "Resolve an instrument name or code to its trading code",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if ensure {
				if _, err := app.Service.EnsureUpdated(cmd.Context(), args[0], false); err != nil {
					return errors.New(core.FormatUserError(err))
				}
			}
			res := app.Service.Resolve(cmd.Context(), args[0], strings.Join(args[1:], " "))
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().BoolVar(&ensure, "ensure", false, "refresh the tool first when it is stale")
	return cmd
}

func newErrorsCmd() *cobra.Command {
	var (
		toolID string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "errors",
		Short: "Show recent synchronization errors, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries := app.Service.RecentErrors(core.ErrorLogFilter{ToolID: toolID, Limit: limit})
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tSEVERITY\tTOOL\tMASTER\tOPERATION\tMESSAGE")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.CreatedAt.Format("2006-01-02 15:04:05"), e.Severity, e.ToolID, e.MasterID, e.Operation, e.Message)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&toolID, "tool", "t", "", "only errors of this tool")
	cmd.Flags().IntVarP(&limit, "limit", "n", core.DefaultErrorLogLimit, "maximum number of entries")
	return cmd
}

func newResetCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "reset [tool...]",
		Short: "Empty tools so the next lookup refreshes them",
		RunE: func(cmd *cobra.Command, args []string) error {
			r := &admin.Resetter{Service: app.Service}

			var (
				reports []*core.ResetReport
				err     error
			)
			switch {
			case all:
				reports, err = r.ResetAll(cmd.Context())
			case len(args) > 0:
				reports, err = r.ResetTools(cmd.Context(), args...)
			default:
				return errors.New("name at least one tool or pass --all")
			}

			if perr := printJSON(cmd.OutOrStdout(), reports); perr != nil {
				return perr
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "reset every tool")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
