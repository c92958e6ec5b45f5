// Package pdf reads the embedded text layer of PDF documents.
package pdf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	perrors "github.com/a3tai/proposal-builder/internal/errors"
)

// DefaultMinTextLength is the number of non-blank characters a text layer
// needs before it is trusted over OCR
const DefaultMinTextLength = 50

// pageSeparator joins the text of consecutive pages
const pageSeparator = "\n\n"

// TextLayer is the embedded text of a PDF
type TextLayer struct {
	Text  string
	Pages int
	// Sufficient is false when the text is too short to be meaningful,
	// which usually means a scanned document
	Sufficient bool
}

// Reader extracts the text layer of PDF files
type Reader struct {
	minTextLength int
	validator     *Validator
}

// NewReader creates a reader that trusts text layers longer than
// minTextLength characters
func NewReader(minTextLength int) *Reader {
	if minTextLength < 0 {
		minTextLength = DefaultMinTextLength
	}
	return &Reader{
		minTextLength: minTextLength,
		validator:     NewValidator(),
	}
}

// ReadTextLayer extracts the text of every page of path.
//
// Password protected and unopenable files return a terminal error
// (KindPasswordProtected, KindFileUnreadable). A document that cannot be
// parsed returns KindExtractionFailed so the caller may try OCR instead.
func (r *Reader) ReadTextLayer(path string) (*TextLayer, error) {
	name := filepath.Base(path)

	if err := r.validator.CheckEncryption(path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, perrors.Wrap(perrors.KindFileUnreadable, err, "cannot open PDF").WithFile(name)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, perrors.Wrap(perrors.KindFileUnreadable, err, "cannot stat PDF").WithFile(name)
	}

	pdfReader, err := openReader(f, info.Size())
	if err != nil {
		if errors.Is(err, pdf.ErrInvalidPassword) {
			return nil, perrors.Wrap(perrors.KindPasswordProtected, err, "PDF is password protected").WithFile(name)
		}
		return nil, perrors.Wrap(perrors.KindExtractionFailed, err, "cannot parse PDF").WithFile(name)
	}

	text, pages := extractTextContent(pdfReader)
	return &TextLayer{
		Text:       text,
		Pages:      pages,
		Sufficient: len(strings.TrimSpace(text)) > r.minTextLength,
	}, nil
}

// openReader guards against parser panics on malformed files
func openReader(f *os.File, size int64) (rd *pdf.Reader, err error) {
	defer func() {
		if p := recover(); p != nil {
			rd, err = nil, fmt.Errorf("malformed PDF: %v", p)
		}
	}()
	return pdf.NewReader(f, size)
}

// extractTextContent concatenates the plain text of all pages, skipping
// pages that fail to decode
func extractTextContent(pdfReader *pdf.Reader) (string, int) {
	numPages := pdfReader.NumPage()
	texts := make([]string, 0, numPages)

	for pageNum := 1; pageNum <= numPages; pageNum++ {
		content, err := pageText(pdfReader, pageNum)
		if err != nil {
			continue
		}
		texts = append(texts, content)
	}

	return strings.Join(texts, pageSeparator), numPages
}

func pageText(pdfReader *pdf.Reader, pageNum int) (content string, err error) {
	defer func() {
		if p := recover(); p != nil {
			content, err = "", fmt.Errorf("page %d: %v", pageNum, p)
		}
	}()

	page := pdfReader.Page(pageNum)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d is empty", pageNum)
	}
	return page.GetPlainText(nil)
}
