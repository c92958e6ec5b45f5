// Package proposal runs the generate flow: ingest a folder, extract and
// resolve the template fields, and write the rendered proposal.
package proposal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/a3tai/proposal-builder/internal/assistant"
	"github.com/a3tai/proposal-builder/internal/config"
	perrors "github.com/a3tai/proposal-builder/internal/errors"
	"github.com/a3tai/proposal-builder/internal/fields"
	"github.com/a3tai/proposal-builder/internal/history"
	"github.com/a3tai/proposal-builder/internal/ingest"
	"github.com/a3tai/proposal-builder/internal/render"
	"github.com/a3tai/proposal-builder/internal/report"
	"github.com/a3tai/proposal-builder/internal/resolve"
)

// OutputPrefix starts every generated proposal file name
const OutputPrefix = "generated_proposal_"

const outputStamp = "20060102-150405"

// FolderIngestor scans a source folder
type FolderIngestor interface {
	ProcessFolder(ctx context.Context, dir string) (*ingest.Corpus, error)
}

// Assistant is the extraction assistant as used by a run
type Assistant interface {
	ExtractFields(ctx context.Context, corpus string, specs []fields.Spec) (*assistant.Extraction, error)
	DescribePhotos(ctx context.Context, images []string, batchSize int) *assistant.PhotoDescription
}

// DependencyChecker probes for external tools
type DependencyChecker interface {
	CheckDependencies() error
}

// Confirmer answers yes/no questions
type Confirmer interface {
	Confirm(ctx context.Context, question string, def bool) (bool, error)
}

// Ledger records finished runs
type Ledger interface {
	Record(ctx context.Context, r history.Run) error
}

// Dependencies are the collaborators of a Service. Prompter, Confirmer,
// Checker and Ledger are optional.
type Dependencies struct {
	Ingestor  FolderIngestor
	Assistant Assistant
	Renderer  render.Renderer
	Prompter  resolve.Prompter
	Confirmer Confirmer
	Checker   DependencyChecker
	Ledger    Ledger
	// Out receives the per-file error summary; nil discards it
	Out io.Writer
	// Now defaults to time.Now
	Now func() time.Time
}

// Request is one generate run
type Request struct {
	Folder   string
	Template string
	Weeks    int
	Reindex  bool
}

// Result is a finished run
type Result struct {
	RunID        string
	OutputPath   string
	WorkbookPath string
	TemplatePath string
	Specs        []fields.Spec
	Corpus       *ingest.Corpus
	Resolution   *resolve.Resolution
	PhotoText    string
	Usage        assistant.Usage
	Elapsed      time.Duration
}

// Service orchestrates generate runs
type Service struct {
	cfg    *config.Config
	deps   Dependencies
	logger *slog.Logger
}

// New creates a Service
func New(cfg *config.Config, deps Dependencies, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Renderer == nil {
		deps.Renderer = render.SubstituteRenderer{}
	}
	if deps.Out == nil {
		deps.Out = io.Discard
	}
	return &Service{cfg: cfg, deps: deps, logger: logger}
}

// Generate runs the whole flow. Nothing is written to the folder unless
// every stage succeeds.
func (s *Service) Generate(ctx context.Context, req Request) (res *Result, err error) {
	start := s.deps.Now()
	res = &Result{RunID: uuid.New().String()}
	log := s.logger.With("run_id", res.RunID)

	defer func() {
		s.record(ctx, req, res, start, err)
		if err != nil {
			log.Error("proposal.failed", "error", err)
			res = nil
		}
	}()

	if req.Folder == "" {
		return res, perrors.New(perrors.KindInputInvalid, "no source folder selected")
	}
	if s.deps.Checker != nil {
		if err := s.deps.Checker.CheckDependencies(); err != nil {
			return res, err
		}
	}

	template, idx, err := s.LoadTemplate(ctx, req.Template, req.Reindex)
	if err != nil {
		return res, err
	}
	res.TemplatePath = template.Path
	res.Specs = idx.Specs
	log.Info("proposal.template", "template", template.Path, "fields", len(idx.Specs))

	corpus, err := s.deps.Ingestor.ProcessFolder(ctx, req.Folder)
	if err != nil {
		return res, err
	}
	res.Corpus = corpus
	if len(corpus.Errors) > 0 {
		_, _ = fmt.Fprintln(s.deps.Out, report.RenderErrors(corpus.Errors))
	}
	if corpus.Empty() {
		return res, perrors.New(perrors.KindInputInvalid, "no usable documents found in %s", req.Folder)
	}

	if s.cfg.Ingest.DescribePhotos && len(corpus.Images) > 0 {
		res.PhotoText = s.describePhotos(ctx, req.Folder, corpus, &res.Usage)
	}

	extracted := map[string]string{}
	extraction, err := s.deps.Assistant.ExtractFields(ctx, corpus.Text, idx.Specs)
	switch {
	case perrors.Is(err, perrors.KindIndexParseFailed):
		log.Warn("proposal.extract.degraded", "error", err)
	case err != nil:
		return res, err
	default:
		extracted = extraction.Values
		res.Usage.Add(extraction.Usage)
	}

	resolver := resolve.New(resolve.Config{
		Specs:          idx.Specs,
		Prompter:       s.deps.Prompter,
		CurrencySymbol: s.cfg.CurrencySymbol,
		Logger:         s.logger,
	})
	resolution, err := resolver.Resolve(ctx, extracted, resolve.Inputs{Today: start, Weeks: req.Weeks})
	if err != nil {
		return res, err
	}
	res.Resolution = resolution

	text, err := s.deps.Renderer.Render(ctx, template.Text, resolution.Values)
	if err != nil {
		return res, err
	}

	res.OutputPath = filepath.Join(req.Folder, OutputPrefix+start.Format(outputStamp)+".md")
	if err := os.WriteFile(res.OutputPath, []byte(text), 0o644); err != nil {
		return res, fmt.Errorf("write proposal: %w", err)
	}

	if s.cfg.ReportXLSX {
		path := report.WorkbookPath(res.OutputPath)
		if err := report.WriteWorkbook(path, idx.Specs, resolution, corpus.Errors); err != nil {
			log.Warn("proposal.workbook.failed", "error", err)
		} else {
			res.WorkbookPath = path
		}
	}

	res.Elapsed = s.deps.Now().Sub(start)
	log.Info("proposal.ok",
		"output", res.OutputPath,
		"documents", len(corpus.Documents),
		"removed", len(resolution.Removed),
		"total_tokens", res.Usage.TotalTokens,
		"elapsed_ms", res.Elapsed.Milliseconds(),
	)
	return res, nil
}

// describePhotos appends the photo description to the corpus as its own
// document and saves it next to the sources
func (s *Service) describePhotos(ctx context.Context, folder string, corpus *ingest.Corpus, usage *assistant.Usage) string {
	desc := s.deps.Assistant.DescribePhotos(ctx, corpus.Images, s.cfg.Ingest.ImageBatchSize)
	usage.Add(desc.Usage)
	if failed := desc.Failed(); failed > 0 {
		s.logger.Warn("proposal.photos.partial", "failed_batches", failed, "batches", len(desc.Batches))
	}
	if desc.Text == "" {
		return ""
	}

	doc := ingest.Document{Name: assistant.PhotoDescriptionFile, Path: filepath.Join(folder, assistant.PhotoDescriptionFile), Method: "photo-description", Text: desc.Text}
	if corpus.Text != "" {
		corpus.Text += ingest.DocumentBoundary
	}
	corpus.Text += desc.Text
	corpus.Documents = append(corpus.Documents, doc)

	if _, err := assistant.SavePhotoDescription(folder, desc.Text); err != nil {
		s.logger.Warn("proposal.photos.save_failed", "error", err)
	}
	return desc.Text
}

func (s *Service) record(ctx context.Context, req Request, res *Result, start time.Time, runErr error) {
	if s.deps.Ledger == nil {
		return
	}
	run := history.Run{
		ID:         res.RunID,
		StartedAt:  start,
		FinishedAt: s.deps.Now(),
		Folder:     req.Folder,
		Template:   req.Template,
		Output:     res.OutputPath,
		Status:     history.StatusSucceeded,
		Tokens:     res.Usage.TotalTokens,
	}
	if res.TemplatePath != "" {
		run.Template = res.TemplatePath
	}
	if res.Corpus != nil {
		run.Files = len(res.Corpus.Documents) + len(res.Corpus.Images) + len(res.Corpus.Errors)
		run.Errors = len(res.Corpus.Errors)
	}
	if runErr != nil {
		run.Status = history.StatusFailed
		run.Message = runErr.Error()
		run.Output = ""
	}
	// a cancelled run is still recorded
	if err := s.deps.Ledger.Record(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Warn("proposal.history.failed", "error", err)
	}
}
