package proposal

import (
	"context"
	"io"
	"log/slog"

	"github.com/a3tai/proposal-builder/internal/assistant"
	"github.com/a3tai/proposal-builder/internal/config"
	"github.com/a3tai/proposal-builder/internal/extract"
	"github.com/a3tai/proposal-builder/internal/history"
	"github.com/a3tai/proposal-builder/internal/ingest"
	"github.com/a3tai/proposal-builder/internal/ocr"
	"github.com/a3tai/proposal-builder/internal/pdf"
	"github.com/a3tai/proposal-builder/internal/prompt"
	"github.com/a3tai/proposal-builder/internal/render"
)

// NewOCREngine builds the OCR fallback engine from cfg
func NewOCREngine(cfg *config.Config, logger *slog.Logger) *ocr.Engine {
	return ocr.NewEngine(ocr.Config{
		Pdftoppm:  cfg.OCR.Pdftoppm,
		Tesseract: cfg.OCR.Tesseract,
		Lang:      cfg.OCR.Lang,
		DPI:       cfg.OCR.DPI,
		MaxPages:  cfg.OCR.MaxPages,
	}, logger)
}

// NewIngestor builds the folder ingestor. progress may be nil.
func NewIngestor(cfg *config.Config, engine *ocr.Engine, progress io.Writer, logger *slog.Logger) *ingest.Ingestor {
	extractor := extract.New(pdf.NewReader(cfg.Ingest.MinTextLength), engine, logger)
	opts := ingest.Options{
		Workers:     cfg.Ingest.Workers,
		MaxFileSize: cfg.Ingest.MaxFileSize,
		SkipHidden:  cfg.Ingest.SkipHidden,
	}
	if cfg.Ingest.ShowProgress {
		opts.Progress = progress
	}
	return ingest.New(extractor, opts, logger)
}

// NewAssistant builds the extraction assistant client
func NewAssistant(cfg *config.Config, logger *slog.Logger) *assistant.Client {
	return assistant.NewClient(assistant.Config{
		APIKey:      cfg.OpenAI.APIKey,
		BaseURL:     cfg.OpenAI.BaseURL,
		Model:       cfg.OpenAI.Model,
		Timeout:     cfg.OpenAI.Timeout,
		MaxAttempts: cfg.OpenAI.MaxAttempts,
	}, logger)
}

// NewRenderer returns the renderer for the configured render mode
func NewRenderer(cfg *config.Config, client *assistant.Client) render.Renderer {
	if cfg.RenderMode == config.RenderAssistant {
		return assistant.NewTemplateRenderer(client)
	}
	return render.SubstituteRenderer{}
}

// Wire builds a Service from cfg with the production collaborators.
// When p is nil the run is unattended: missing values are never asked
// for and stale indexes are left alone unless reindexing is requested.
// The returned close function releases the run ledger.
func Wire(ctx context.Context, cfg *config.Config, p *prompt.Prompter, out io.Writer, logger *slog.Logger) (*Service, func() error, error) {
	engine := NewOCREngine(cfg, logger)
	client := NewAssistant(cfg, logger)

	deps := Dependencies{
		Ingestor:  NewIngestor(cfg, engine, out, logger),
		Assistant: client,
		Renderer:  NewRenderer(cfg, client),
		Checker:   engine,
		Out:       out,
	}
	if p != nil {
		deps.Prompter = p
		deps.Confirmer = p
	}

	closeFn := func() error { return nil }
	if cfg.HistoryDB != "" {
		store, err := history.Open(ctx, cfg.HistoryDB, logger)
		if err != nil {
			return nil, nil, err
		}
		deps.Ledger = store
		closeFn = store.Close
	}

	return New(cfg, deps, logger), closeFn, nil
}
