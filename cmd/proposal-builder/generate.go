package main

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	perrors "github.com/a3tai/proposal-builder/internal/errors"
	"github.com/a3tai/proposal-builder/internal/prompt"
	"github.com/a3tai/proposal-builder/internal/proposal"
	"github.com/a3tai/proposal-builder/internal/report"
)

func (a *app) generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [folder]",
		Short: "Generate a proposal from a folder of source documents",
		Long: `Ingest every document in the folder, extract the proposal fields with the
assistant, compute dates and totals, ask for anything still missing, and
write generated_proposal_<timestamp>.md into the folder.`,
		Args: cobra.MaximumNArgs(1),
		RunE: a.runGenerate,
	}

	cmd.Flags().String("folder", "", "Folder of source documents (or pass it as the argument)")
	cmd.Flags().StringP("template", "t", "", "Template choice key or file name")
	cmd.Flags().Int("weeks", 0, "Weeks from today until the auction ends")
	cmd.Flags().Bool("reindex", false, "Rebuild the template field index before running")
	cmd.Flags().Bool("no-input", false, "Never prompt; missing values render as [MISSING:name]")

	return cmd
}

func (a *app) runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	folder, _ := cmd.Flags().GetString("folder")
	if len(args) == 1 {
		folder = args[0]
	}
	template, _ := cmd.Flags().GetString("template")
	weeks, _ := cmd.Flags().GetInt("weeks")
	reindex, _ := cmd.Flags().GetBool("reindex")
	noInput, _ := cmd.Flags().GetBool("no-input")
	out := cmd.OutOrStdout()

	var p *prompt.Prompter
	if !noInput {
		p = prompt.New(cmd.InOrStdin(), out)
	}

	if template == "" && p != nil {
		choices := templateChoices(a.cfg.Templates)
		for _, k := range choices {
			fmt.Fprintf(out, "  %s. %s\n", k, a.cfg.Templates[k])
		}
		var err error
		if template, err = p.AskChoice(ctx, "Select a template", choices); err != nil {
			return err
		}
	}

	switch {
	case cmd.Flags().Changed("weeks"):
		if weeks < 0 {
			return perrors.New(perrors.KindInputInvalid, "--weeks must be 0 or more")
		}
	case p != nil:
		var err error
		if weeks, err = p.AskWeeks(ctx); err != nil {
			return err
		}
	default:
		return perrors.New(perrors.KindInputInvalid, "--weeks is required with --no-input")
	}

	svc, closeFn, err := proposal.Wire(ctx, a.cfg, p, out, a.logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()

	res, err := svc.Generate(ctx, proposal.Request{
		Folder:   folder,
		Template: template,
		Weeks:    weeks,
		Reindex:  reindex,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out, report.RenderRun(report.Run{
		ID:          res.RunID,
		Folder:      folder,
		Template:    filepath.Base(res.TemplatePath),
		Output:      res.OutputPath,
		Documents:   len(res.Corpus.Documents),
		Images:      len(res.Corpus.Images),
		Errors:      len(res.Corpus.Errors),
		Removed:     res.Resolution.Removed,
		TotalTokens: res.Usage.TotalTokens,
		Elapsed:     res.Elapsed,
	}))
	fmt.Fprintln(out, prompt.FormatSuccess("Proposal written to "+res.OutputPath))
	if res.WorkbookPath != "" {
		fmt.Fprintln(out, prompt.FormatSuccess("Field workbook written to "+res.WorkbookPath))
	}
	return nil
}

// templateChoices returns the template choice keys in display order
func templateChoices(templates map[string]string) []string {
	keys := make([]string, 0, len(templates))
	for k := range templates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
