package proposal

import (
	"context"
	"os"
	"path/filepath"

	perrors "github.com/a3tai/proposal-builder/internal/errors"
	"github.com/a3tai/proposal-builder/internal/fields"
)

// Template is a loaded proposal template
type Template struct {
	Path      string
	IndexPath string
	Text      string
}

// LoadTemplate reads the template for choice and its field index. A
// missing or unparseable index is rebuilt from the template tokens. A
// stale index is rebuilt when reindex is set or the operator agrees,
// and used as is otherwise.
func (s *Service) LoadTemplate(ctx context.Context, choice string, reindex bool) (*Template, *fields.Index, error) {
	return s.loadTemplate(ctx, choice, reindex, false)
}

// Reindex rebuilds the field index of the template for choice, keeping
// the specs of names the template still uses
func (s *Service) Reindex(ctx context.Context, choice string) (*Template, *fields.Index, error) {
	return s.loadTemplate(ctx, choice, true, true)
}

func (s *Service) loadTemplate(ctx context.Context, choice string, reindex, force bool) (*Template, *fields.Index, error) {
	path, err := s.cfg.TemplatePath(choice)
	if err != nil {
		return nil, nil, perrors.Wrap(perrors.KindTemplateMissing, err, "no template selected")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, perrors.Wrap(perrors.KindTemplateMissing, err, "cannot read template").WithFile(filepath.Base(path))
	}
	tpl := &Template{Path: path, IndexPath: fields.IndexPath(s.cfg.IndexDir, path), Text: string(data)}

	stale, err := fields.Stale(tpl.Path, tpl.IndexPath)
	if err != nil {
		return nil, nil, err
	}

	var existing *fields.Index
	if _, statErr := os.Stat(tpl.IndexPath); statErr == nil {
		existing, err = fields.Load(tpl.IndexPath)
		if err != nil {
			s.logger.Warn("proposal.index.unusable", "index", tpl.IndexPath, "error", err)
			existing = nil
			stale = true
			reindex = true
		}
	} else {
		reindex = true
	}

	if stale && !reindex {
		s.logger.Warn("proposal.index.stale", "template", tpl.Path, "index", tpl.IndexPath)
		if s.deps.Confirmer != nil {
			reindex, err = s.deps.Confirmer.Confirm(ctx, "The template changed since its field index was built. Re-index variables now?", true)
			if err != nil {
				return nil, nil, perrors.Wrap(perrors.KindInputInvalid, err, "re-index confirmation failed")
			}
		}
	}

	if !force && (!stale || !reindex) {
		return tpl, existing, nil
	}

	idx := fields.Reindex(tpl.Text, existing)
	if err := fields.Save(tpl.IndexPath, idx); err != nil {
		if force {
			return nil, nil, err
		}
		s.logger.Warn("proposal.index.save_failed", "index", tpl.IndexPath, "error", err)
	} else {
		s.logger.Info("proposal.index.rebuilt", "index", tpl.IndexPath, "fields", len(idx.Specs))
	}
	return tpl, idx, nil
}
