package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	perrors "github.com/a3tai/proposal-builder/internal/errors"
	"github.com/a3tai/proposal-builder/internal/fields"
	"github.com/a3tai/proposal-builder/internal/resolve"
)

func (a *app) datesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dates",
		Short: "Print the auction business dates",
		Args:  cobra.NoArgs,
		RunE:  runDates,
	}

	cmd.Flags().Int("weeks", 0, "Weeks from today until the auction ends")
	cmd.Flags().String("today", "", "Run date as YYYY-MM-DD (defaults to the current date)")

	return cmd
}

func runDates(cmd *cobra.Command, _ []string) error {
	weeks, _ := cmd.Flags().GetInt("weeks")
	raw, _ := cmd.Flags().GetString("today")
	if weeks < 0 {
		return perrors.New(perrors.KindInputInvalid, "--weeks must be 0 or more")
	}

	today := time.Now()
	if raw = strings.TrimSpace(raw); raw != "" {
		var err error
		today, err = time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			return perrors.Wrap(perrors.KindInputInvalid, err, "--today must be YYYY-MM-DD")
		}
	}

	values := resolve.BusinessDates(today, weeks).Fields()
	for _, name := range fields.DateFields {
		fmt.Fprintf(cmd.OutOrStdout(), "%-26s %s\n", name, values[name])
	}
	return nil
}
