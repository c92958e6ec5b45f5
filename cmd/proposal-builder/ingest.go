package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/a3tai/proposal-builder/internal/prompt"
	"github.com/a3tai/proposal-builder/internal/proposal"
	"github.com/a3tai/proposal-builder/internal/report"
)

func (a *app) ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <folder>",
		Short: "Extract text from a folder without generating a proposal",
		Long: `Run only the ingestion stage: list the documents that produced text, the
photos that were collected, and every file that could not be read.`,
		Args: cobra.ExactArgs(1),
		RunE: a.runIngest,
	}

	cmd.Flags().Bool("corpus", false, "Print the combined corpus text")

	return cmd
}

func (a *app) runIngest(cmd *cobra.Command, args []string) error {
	showCorpus, _ := cmd.Flags().GetBool("corpus")
	out := cmd.OutOrStdout()

	engine := proposal.NewOCREngine(a.cfg, a.logger)
	if err := engine.CheckDependencies(); err != nil {
		return err
	}

	ingestor := proposal.NewIngestor(a.cfg, engine, cmd.ErrOrStderr(), a.logger)
	corpus, err := ingestor.ProcessFolder(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Documents (%d):\n", len(corpus.Documents))
	for i, doc := range corpus.Documents {
		fmt.Fprintf(out, "  %d. %s [%s]\n", i+1, doc.Name, doc.Method)
	}
	fmt.Fprintf(out, "Images: %d\n", len(corpus.Images))

	if summary := report.RenderErrors(corpus.Errors); summary != "" {
		fmt.Fprintln(out, summary)
	}
	if corpus.Empty() {
		fmt.Fprintln(out, prompt.FormatWarning("No usable documents found"))
	}
	if showCorpus {
		fmt.Fprintln(out, corpus.Text)
	}
	return nil
}
