// Package ocr recovers text from scanned PDFs by rasterizing each page
// with pdftoppm and recognizing it with tesseract.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	perrors "github.com/a3tai/proposal-builder/internal/errors"
)

// pageErrorMarker stands in for a page that could not be recognized
const pageErrorMarker = "[OCR Error on Page %d]"

// pageSeparator joins the text of consecutive pages
const pageSeparator = "\n\n"

// pageNumber extracts N from pdftoppm output names like page-N.png
var pageNumber = regexp.MustCompile(`-(\d+)\.png$`)

// Config configures the OCR toolchain
type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"
	Lang      string // default "eng"
	DPI       int    // rasterization DPI, default 300
	MaxPages  int    // 0 = no limit
}

// Result is the recognized text of a document
type Result struct {
	Text        string
	Pages       int
	FailedPages []int
}

// Engine runs OCR over PDF files
type Engine struct {
	cfg      Config
	runner   Runner
	lookPath func(string) (string, error)
	logger   *slog.Logger
}

// NewEngine creates an OCR engine that shells out to the configured tools
func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return NewEngineWithRunner(cfg, execRunner{logger: logger}, logger)
}

// NewEngineWithRunner creates an engine with a custom command runner
func NewEngineWithRunner(cfg Config, runner Runner, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Engine{cfg: cfg, runner: runner, lookPath: exec.LookPath, logger: logger}
}

// CheckDependencies verifies that both OCR tools are installed
func (e *Engine) CheckDependencies() error {
	for _, tool := range []string{e.cfg.Pdftoppm, e.cfg.Tesseract} {
		if _, err := e.lookPath(tool); err != nil {
			return perrors.Wrap(perrors.KindDependencyMissing, err, fmt.Sprintf("%s is not installed or not on PATH", tool))
		}
	}
	return nil
}

// OCRPDF renders every page of path and recognizes it. A page that fails
// recognition is replaced by an error marker, so a document whose pages all
// fail still returns the markers. The document fails only when every page
// came back blank. A missing tool returns KindDependencyMissing.
func (e *Engine) OCRPDF(ctx context.Context, path string) (*Result, error) {
	name := filepath.Base(path)

	tmpDir, err := os.MkdirTemp("", "proposal-ocr-*")
	if err != nil {
		return nil, perrors.Wrap(perrors.KindExtractionFailed, err, "cannot create OCR work directory").WithFile(name)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("failed to remove OCR work directory", "dir", tmpDir, "error", err)
		}
	}()

	images, err := e.rasterize(ctx, path, tmpDir)
	if err != nil {
		if perrors.Is(err, perrors.KindDependencyMissing) {
			return nil, err
		}
		return nil, perrors.Wrap(perrors.KindExtractionFailed, err, "cannot render PDF pages").WithFile(name)
	}

	texts := make([]string, 0, len(images))
	var failed []int
	recognized := 0

	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		txt, err := e.recognize(ctx, img.path)
		if err != nil {
			if perrors.Is(err, perrors.KindDependencyMissing) {
				return nil, err
			}
			e.logger.Warn("page recognition failed", "file", name, "page", img.page, "error", err)
			failed = append(failed, img.page)
			texts = append(texts, fmt.Sprintf(pageErrorMarker, img.page))
			continue
		}

		if strings.TrimSpace(txt) != "" {
			recognized++
		}
		texts = append(texts, txt)
	}

	if recognized == 0 && len(failed) == 0 {
		return nil, perrors.New(perrors.KindExtractionFailed, "OCR found no text on %d page(s)", len(images)).WithFile(name)
	}

	return &Result{
		Text:        strings.Join(texts, pageSeparator),
		Pages:       len(images),
		FailedPages: failed,
	}, nil
}

type pageImage struct {
	page int
	path string
}

// rasterize runs pdftoppm and returns the page images in page order
func (e *Engine) rasterize(ctx context.Context, path, dir string) ([]pageImage, error) {
	prefix := filepath.Join(dir, "page")
	args := []string{"-r", strconv.Itoa(e.cfg.DPI), "-png"}
	if e.cfg.MaxPages > 0 {
		args = append(args, "-l", strconv.Itoa(e.cfg.MaxPages))
	}
	args = append(args, path, prefix)

	if _, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, args...); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, perrors.Wrap(perrors.KindDependencyMissing, err, e.cfg.Pdftoppm+" is not installed")
		}
		return nil, fmt.Errorf("%s: %w: %s", e.cfg.Pdftoppm, err, strings.TrimSpace(string(errb)))
	}

	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}

	images := make([]pageImage, 0, len(matches))
	for _, m := range matches {
		sub := pageNumber.FindStringSubmatch(m)
		if sub == nil {
			continue
		}
		n, _ := strconv.Atoi(sub[1])
		images = append(images, pageImage{page: n, path: m})
	}
	sort.Slice(images, func(i, j int) bool { return images[i].page < images[j].page })

	if len(images) == 0 {
		return nil, errors.New("pdftoppm produced no images")
	}
	return images, nil
}

// recognize runs tesseract on one page image
func (e *Engine) recognize(ctx context.Context, img string) (string, error) {
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, img, "stdout", "-l", e.cfg.Lang)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", perrors.Wrap(perrors.KindDependencyMissing, err, e.cfg.Tesseract+" is not installed")
		}
		return "", fmt.Errorf("%s: %w: %s", e.cfg.Tesseract, err, strings.TrimSpace(string(errb)))
	}
	return strings.TrimSpace(string(out)), nil
}
