// Package ingest scans a folder of source documents into a corpus.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	perrors "github.com/a3tai/proposal-builder/internal/errors"
	"github.com/a3tai/proposal-builder/internal/extract"
)

// DocumentBoundary separates documents in the corpus text. Consumers may
// split on it to recover individual documents.
const DocumentBoundary = "\n\n==== End of Document ====\n\n"

// photoDescriptionFile is written by photo description runs
const photoDescriptionFile = "_photo_inventory_description.txt"

// Extractor produces the outcome of one classified file
type Extractor interface {
	Extract(ctx context.Context, path string, kind extract.Kind) (*extract.Outcome, error)
}

// Options configures an Ingestor
type Options struct {
	Workers     int
	MaxFileSize int64
	SkipHidden  bool
	// Progress receives a progress bar when non-nil
	Progress io.Writer
}

// SourceItem is one classified entry of the scanned folder
type SourceItem struct {
	Path string
	Name string
	Kind extract.Kind
	Size int64
}

// Document is the text extracted from one file
type Document struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Method string `json:"method"`
	Text   string `json:"-"`
}

// Corpus is everything a folder scan produced
type Corpus struct {
	Text      string
	Documents []Document
	Images    []string
	Errors    []perrors.FileError
}

// Empty reports whether the scan yielded neither text nor images
func (c *Corpus) Empty() bool {
	return strings.TrimSpace(c.Text) == "" && len(c.Images) == 0
}

// SplitDocuments splits corpus text back into per-document text
func SplitDocuments(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, DocumentBoundary)
}

// Ingestor scans folders
type Ingestor struct {
	extractor Extractor
	opts      Options
	logger    *slog.Logger
}

// New creates an Ingestor
func New(extractor Extractor, opts Options, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Ingestor{extractor: extractor, opts: opts, logger: logger}
}

// IsGeneratedOutput reports whether name is an artifact of a previous run
func IsGeneratedOutput(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasPrefix(lower, "generated_proposal") ||
		lower == photoDescriptionFile ||
		strings.HasSuffix(lower, "_output.md") ||
		strings.HasSuffix(lower, "_proposal.md")
}

// entryResult is the outcome of processing one entry
type entryResult struct {
	item    SourceItem
	outcome *extract.Outcome
	err     error
}

// ProcessFolder scans dir and extracts every eligible entry. Per-file
// problems end up in Corpus.Errors; only a missing OCR toolchain or an
// unreadable folder is returned as an error.
func (i *Ingestor) ProcessFolder(ctx context.Context, dir string) (*Corpus, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, perrors.New(perrors.KindInputInvalid, "no folder selected")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, perrors.Wrap(perrors.KindInputInvalid, err, "cannot read folder").WithFile(dir)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case entry.IsDir():
			continue
		case IsGeneratedOutput(name):
			i.logger.Debug("skipping generated output", "file", name)
			continue
		case i.opts.SkipHidden && strings.HasPrefix(name, "."):
			continue
		}
		names = append(names, name)
	}

	i.logger.Info("scanning folder", "dir", dir, "files", len(names), "workers", i.opts.Workers)

	var bar *progressbar.ProgressBar
	if i.opts.Progress != nil && len(names) > 0 {
		bar = progressbar.NewOptions(len(names),
			progressbar.OptionSetWriter(i.opts.Progress),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("Extracting documents"),
			progressbar.OptionClearOnFinish(),
		)
	}

	results := make([]entryResult, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.opts.Workers)

	for idx, name := range names {
		g.Go(func() error {
			res := i.processEntry(gctx, filepath.Join(dir, name))
			results[idx] = res
			if bar != nil {
				_ = bar.Add(1)
			}
			if perrors.Is(res.err, perrors.KindDependencyMissing) {
				return res.err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if bar != nil {
		_ = bar.Finish()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return assemble(results), nil
}

// assemble builds the corpus in enumeration order
func assemble(results []entryResult) *Corpus {
	corpus := &Corpus{}
	errs := perrors.NewErrorCollection()
	texts := make([]string, 0, len(results))

	for _, r := range results {
		if r.err != nil {
			errs.Add(r.item.Name, r.err)
			continue
		}
		switch r.outcome.Kind {
		case extract.KindImage:
			corpus.Images = append(corpus.Images, r.outcome.ImagePath)
		default:
			texts = append(texts, r.outcome.Text)
			corpus.Documents = append(corpus.Documents, Document{
				Name:   r.item.Name,
				Path:   r.item.Path,
				Method: r.outcome.Method,
				Text:   r.outcome.Text,
			})
		}
	}

	corpus.Text = strings.Join(texts, DocumentBoundary)
	corpus.Errors = errs.Entries()
	return corpus
}

// processEntry classifies and extracts one file. A panic is recorded as
// an error for that file.
func (i *Ingestor) processEntry(ctx context.Context, path string) (res entryResult) {
	name := filepath.Base(path)
	res.item = SourceItem{Path: path, Name: name}

	defer func() {
		if p := recover(); p != nil {
			i.logger.Error("panic while processing file", "file", name, "panic", p)
			res.outcome = nil
			res.err = perrors.New(perrors.KindUnknown, "unexpected error: %v", p).WithFile(name)
		}
	}()

	item, err := i.classify(path)
	if err != nil {
		res.err = err
		return res
	}
	res.item = item

	out, err := i.extractor.Extract(ctx, path, item.Kind)
	if err != nil {
		res.err = err
		return res
	}
	if item.Kind != extract.KindImage && strings.TrimSpace(out.Text) == "" {
		res.err = perrors.New(perrors.KindFileEmpty, "no text content").WithFile(name)
		return res
	}

	i.logger.Debug("extracted file", "file", name, "kind", item.Kind, "method", out.Method)
	res.outcome = out
	return res
}

// classify opens path and detects its kind. Unreadable files fail here
// before any extraction is attempted.
func (i *Ingestor) classify(path string) (SourceItem, error) {
	name := filepath.Base(path)
	item := SourceItem{Path: path, Name: name}

	info, err := os.Stat(path)
	if err != nil {
		return item, perrors.Wrap(perrors.KindFileUnreadable, err, "cannot access file").WithFile(name)
	}
	item.Size = info.Size()

	if i.opts.MaxFileSize > 0 && item.Size > i.opts.MaxFileSize {
		return item, perrors.New(perrors.KindFileUnreadable, "file too large: %d bytes (max: %d bytes)",
			item.Size, i.opts.MaxFileSize).WithFile(name)
	}

	f, err := os.Open(path)
	if err != nil {
		return item, perrors.Wrap(perrors.KindFileUnreadable, err, "permission denied or unreadable").WithFile(name)
	}
	defer f.Close()

	head := make([]byte, extract.SniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return item, perrors.Wrap(perrors.KindFileUnreadable, err, "cannot read file").WithFile(name)
	}
	item.Kind = extract.Classify(name, head[:n])

	if item.Size == 0 && item.Kind != extract.KindImage {
		return item, perrors.New(perrors.KindFileEmpty, "file is empty (0 bytes)").WithFile(name)
	}
	return item, nil
}

// String summarizes the corpus for logs
func (c *Corpus) String() string {
	return fmt.Sprintf("Corpus{documents: %d, images: %d, errors: %d, chars: %d}",
		len(c.Documents), len(c.Images), len(c.Errors), len(c.Text))
}
