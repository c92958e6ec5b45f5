// Package prompt asks the operator for values the documents did not
// contain, and for the run inputs the CLI needs.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	perrors "github.com/a3tai/proposal-builder/internal/errors"
	"github.com/a3tai/proposal-builder/internal/fields"
)

// ErrInputClosed is returned when input ends before a required answer
var ErrInputClosed = errors.New("input closed")

// Prompter reads answers line by line from a terminal or any reader
type Prompter struct {
	reader *bufio.Reader
	writer io.Writer
	title  cases.Caser
}

// New creates a Prompter. Nil arguments use stdin and stdout.
func New(reader io.Reader, writer io.Writer) *Prompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}
	return &Prompter{
		reader: bufio.NewReader(reader),
		writer: writer,
		title:  cases.Title(language.English),
	}
}

// Label turns a field name into the text shown to the operator
func (p *Prompter) Label(name string) string {
	return p.title.String(strings.ReplaceAll(name, "_", " "))
}

// Ask implements resolve.Prompter. Blank input and end of input both
// answer with an empty string.
func (p *Prompter) Ask(ctx context.Context, spec fields.Spec) (string, error) {
	question := fmt.Sprintf("Enter value for '%s'", p.Label(spec.Name))
	if spec.IsCurrency {
		question += " (amount, or 'No Charge')"
	}
	line, err := p.readLine(ctx, question)
	if errors.Is(err, ErrInputClosed) {
		return "", nil
	}
	return line, err
}

// AskWeeks asks until a non-negative whole number of weeks is given
func (p *Prompter) AskWeeks(ctx context.Context) (int, error) {
	for {
		line, err := p.readLine(ctx, "How many weeks from today should the auction end? (integer)")
		if err != nil {
			return 0, perrors.Wrap(perrors.KindInputInvalid, err, "no auction week count given")
		}
		weeks, convErr := strconv.Atoi(line)
		if convErr == nil && weeks >= 0 {
			return weeks, nil
		}
		p.println(FormatError("Please enter a whole number of weeks, 0 or more."))
	}
}

// AskChoice asks until one of choices is given
func (p *Prompter) AskChoice(ctx context.Context, question string, choices []string) (string, error) {
	for {
		line, err := p.readLine(ctx, fmt.Sprintf("%s (%s)", question, strings.Join(choices, ", ")))
		if err != nil {
			return "", perrors.Wrap(perrors.KindInputInvalid, err, "no choice given")
		}
		for _, c := range choices {
			if line == c {
				return c, nil
			}
		}
		p.println(FormatError("Invalid choice. Please try again."))
	}
}

// Confirm asks a yes/no question. Blank input and end of input give def.
func (p *Prompter) Confirm(ctx context.Context, question string, def bool) (bool, error) {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	line, err := p.readLine(ctx, fmt.Sprintf("%s (%s)", question, hint))
	if errors.Is(err, ErrInputClosed) {
		return def, nil
	}
	if err != nil {
		return false, err
	}
	switch strings.ToLower(line) {
	case "":
		return def, nil
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// readLine prints question and returns the trimmed answer. A final line
// without a newline is still returned; ErrInputClosed means no data at all.
func (p *Prompter) readLine(ctx context.Context, question string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := fmt.Fprint(p.writer, FormatPrompt(question)); err != nil {
		return "", fmt.Errorf("failed to write prompt: %w", err)
	}
	input, err := p.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			if input == "" {
				return "", ErrInputClosed
			}
			return strings.TrimSpace(input), nil
		}
		return "", err
	}
	return strings.TrimSpace(input), nil
}

func (p *Prompter) println(s string) {
	_, _ = fmt.Fprintln(p.writer, s)
}
