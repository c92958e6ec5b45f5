package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/a3tai/proposal-builder/internal/prompt"
	"github.com/a3tai/proposal-builder/internal/proposal"
)

func (a *app) indexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index <template>",
		Short: "Rebuild the field index of a template",
		Long: `Scan the template for {{name}} tokens and rewrite its field index. Existing
entries keep their settings; new names get inferred source, currency and
date flags.`,
		Args: cobra.ExactArgs(1),
		RunE: a.runIndex,
	}
}

func (a *app) runIndex(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	svc := proposal.New(a.cfg, proposal.Dependencies{Out: out}, a.logger)

	tpl, idx, err := svc.Reindex(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%-32s %-11s %-8s %s\n", "FIELD", "SOURCE", "CURRENCY", "DATE")
	for _, spec := range idx.Specs {
		fmt.Fprintf(out, "%-32s %-11s %-8t %t\n", spec.Name, spec.Source, spec.IsCurrency, spec.IsDate)
	}
	fmt.Fprintln(out, prompt.FormatSuccess(fmt.Sprintf("Indexed %d field(s) into %s", len(idx.Specs), tpl.IndexPath)))
	return nil
}
