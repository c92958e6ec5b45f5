package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	perrors "github.com/a3tai/proposal-builder/internal/errors"
	"github.com/a3tai/proposal-builder/internal/history"
	"github.com/a3tai/proposal-builder/internal/prompt"
)

func (a *app) historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent generate runs",
		Args:  cobra.NoArgs,
		RunE:  a.runHistory,
	}

	cmd.Flags().Int("limit", 20, "Number of runs to show (0 for all)")

	return cmd
}

func (a *app) runHistory(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	out := cmd.OutOrStdout()

	if a.cfg.HistoryDB == "" {
		return perrors.New(perrors.KindInputInvalid, "run history is disabled; set history.db or --history-db")
	}

	store, err := history.Open(cmd.Context(), a.cfg.HistoryDB, a.logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runs, err := store.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, prompt.FormatWarning("No runs recorded yet"))
		return nil
	}

	for _, r := range runs {
		status := prompt.FormatSuccess(r.Status)
		if r.Status != history.StatusSucceeded {
			status = prompt.FormatError(r.Status)
		}
		fmt.Fprintf(out, "%s  %s  %s\n", r.StartedAt.Local().Format("2006-01-02 15:04"), status, r.ID)
		fmt.Fprintf(out, "  folder:   %s\n", r.Folder)
		fmt.Fprintf(out, "  template: %s\n", r.Template)
		if r.Output != "" {
			fmt.Fprintf(out, "  output:   %s\n", r.Output)
		}
		if r.Message != "" {
			fmt.Fprintf(out, "  error:    %s\n", r.Message)
		}
		fmt.Fprintf(out, "  files: %d  errors: %d  tokens: %s  took: %s (%s)\n",
			r.Files, r.Errors, humanize.Comma(int64(r.Tokens)), r.Duration().Round(time.Millisecond), humanize.Time(r.StartedAt))
	}
	return nil
}
