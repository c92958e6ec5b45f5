// Package extract turns a single source file into text, an image
// reference or a failure.
package extract

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf8"

	perrors "github.com/a3tai/proposal-builder/internal/errors"
	"github.com/a3tai/proposal-builder/internal/ocr"
	"github.com/a3tai/proposal-builder/internal/pdf"
)

// Method names how text was obtained
const (
	MethodText    = "text"
	MethodPDFText = "pdf-text"
	MethodPDFOCR  = "pdf-ocr"
	MethodImage   = "image"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// TextLayerReader reads the embedded text of a PDF
type TextLayerReader interface {
	ReadTextLayer(path string) (*pdf.TextLayer, error)
}

// OCREngine recognizes the pages of a scanned PDF
type OCREngine interface {
	OCRPDF(ctx context.Context, path string) (*ocr.Result, error)
}

// Outcome is the successful result of extracting one file. Exactly one of
// Text or ImagePath is meaningful, depending on Kind.
type Outcome struct {
	Kind      Kind
	Text      string
	ImagePath string
	Method    string
}

// Extractor dispatches files to the right extraction strategy
type Extractor struct {
	pdf    TextLayerReader
	ocr    OCREngine
	logger *slog.Logger
}

// New creates an Extractor
func New(pdfReader TextLayerReader, ocrEngine OCREngine, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{pdf: pdfReader, ocr: ocrEngine, logger: logger}
}

// Extract produces the outcome for path, already classified as kind.
// Per-file problems are returned as ProposalErrors; only
// KindDependencyMissing should stop a run.
func (e *Extractor) Extract(ctx context.Context, path string, kind Kind) (*Outcome, error) {
	switch kind {
	case KindPDF:
		return e.extractPDF(ctx, path)
	case KindText:
		return extractText(path)
	case KindImage:
		return &Outcome{Kind: KindImage, ImagePath: path, Method: MethodImage}, nil
	default:
		return nil, perrors.New(perrors.KindUnsupportedType, "unsupported type").WithFile(filepath.Base(path))
	}
}

func (e *Extractor) extractPDF(ctx context.Context, path string) (*Outcome, error) {
	name := filepath.Base(path)

	layer, err := e.pdf.ReadTextLayer(path)
	switch {
	case perrors.Is(err, perrors.KindPasswordProtected), perrors.Is(err, perrors.KindFileUnreadable):
		return nil, err
	case err != nil:
		e.logger.Info("text layer unreadable, falling back to OCR", "file", name, "error", err)
	case layer.Sufficient:
		return &Outcome{Kind: KindPDF, Text: layer.Text, Method: MethodPDFText}, nil
	default:
		e.logger.Info("text layer too short, falling back to OCR", "file", name, "pages", layer.Pages)
	}

	if e.ocr == nil {
		return nil, perrors.New(perrors.KindExtractionFailed, "no usable text layer and OCR is disabled").WithFile(name)
	}

	res, err := e.ocr.OCRPDF(ctx, path)
	if err != nil {
		if perrors.Is(err, perrors.KindDependencyMissing) {
			return nil, err
		}
		return nil, perrors.Wrap(perrors.KindExtractionFailed, err, "direct extraction and OCR both failed").WithFile(name)
	}
	if len(res.FailedPages) > 0 {
		e.logger.Warn("OCR skipped pages", "file", name, "pages", res.FailedPages)
	}
	return &Outcome{Kind: KindPDF, Text: res.Text, Method: MethodPDFOCR}, nil
}

func extractText(path string) (*Outcome, error) {
	name := filepath.Base(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, perrors.Wrap(perrors.KindFileUnreadable, err, "cannot read file").WithFile(name)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return nil, perrors.New(perrors.KindExtractionFailed, "file is not valid UTF-8").WithFile(name)
	}
	return &Outcome{Kind: KindText, Text: string(data), Method: MethodText}, nil
}
