// Package report renders run summaries for the terminal and writes the
// field audit workbook.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	perrors "github.com/a3tai/proposal-builder/internal/errors"
	"github.com/a3tai/proposal-builder/internal/prompt"
)

// Run describes a finished generate run
type Run struct {
	ID          string
	Folder      string
	Template    string
	Output      string
	Documents   int
	Images      int
	Errors      int
	Removed     []string
	TotalTokens int
	Elapsed     time.Duration
}

// RenderErrors returns the per-file error summary, or "" when errs is empty
func RenderErrors(errs []perrors.FileError) string {
	if len(errs) == 0 {
		return ""
	}
	col := perrors.NewErrorCollection()
	col.Append(errs...)

	var b strings.Builder
	for _, e := range errs {
		fmt.Fprintf(&b, "%s %s: %s\n", prompt.ErrorIcon, e.File, e.Reason)
	}
	b.WriteString(prompt.SubtleStyle.Render(col.Summary()))
	return prompt.RenderBox("Files with errors", b.String())
}

// RenderRun returns the closing summary of a successful run
func RenderRun(r Run) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run:        %s\n", r.ID)
	fmt.Fprintf(&b, "Folder:     %s\n", r.Folder)
	fmt.Fprintf(&b, "Template:   %s\n", r.Template)
	fmt.Fprintf(&b, "Documents:  %d (%d images)\n", r.Documents, r.Images)
	fmt.Fprintf(&b, "Errors:     %d\n", r.Errors)
	if r.TotalTokens > 0 {
		fmt.Fprintf(&b, "Tokens:     %s\n", humanize.Comma(int64(r.TotalTokens)))
	}
	fmt.Fprintf(&b, "Elapsed:    %s\n", r.Elapsed.Round(time.Millisecond))
	if len(r.Removed) > 0 {
		b.WriteString(prompt.FormatWarning(fmt.Sprintf("Unresolved: %s", strings.Join(r.Removed, ", "))))
		b.WriteString("\n")
	}
	b.WriteString(prompt.FormatSuccess("Proposal written to " + r.Output))
	return prompt.RenderBox("Proposal generated", b.String())
}
