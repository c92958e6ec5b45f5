package proposal

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/proposal-builder/internal/assistant"
	"github.com/a3tai/proposal-builder/internal/config"
	"github.com/a3tai/proposal-builder/internal/history"
	"github.com/a3tai/proposal-builder/internal/prompt"
	"github.com/a3tai/proposal-builder/internal/render"
)

func TestNewRenderer(t *testing.T) {
	cfg := config.DefaultConfig()
	client := NewAssistant(cfg, nil)

	cfg.RenderMode = config.RenderSubstitute
	assert.IsType(t, render.SubstituteRenderer{}, NewRenderer(cfg, client))

	cfg.RenderMode = config.RenderAssistant
	assert.IsType(t, &assistant.TemplateRenderer{}, NewRenderer(cfg, client))
}

func TestWire(t *testing.T) {
	t.Run("unattended without ledger", func(t *testing.T) {
		cfg := config.DefaultConfig()
		svc, closeFn, err := Wire(context.Background(), cfg, nil, &bytes.Buffer{}, nil)
		require.NoError(t, err)
		defer func() { require.NoError(t, closeFn()) }()

		assert.Nil(t, svc.deps.Prompter)
		assert.Nil(t, svc.deps.Confirmer)
		assert.Nil(t, svc.deps.Ledger)
		assert.NotNil(t, svc.deps.Ingestor)
		assert.NotNil(t, svc.deps.Checker)
	})

	t.Run("interactive with ledger", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.HistoryDB = filepath.Join(t.TempDir(), "runs.db")
		p := prompt.New(strings.NewReader(""), &bytes.Buffer{})

		svc, closeFn, err := Wire(context.Background(), cfg, p, &bytes.Buffer{}, nil)
		require.NoError(t, err)

		assert.NotNil(t, svc.deps.Prompter)
		assert.NotNil(t, svc.deps.Confirmer)
		assert.IsType(t, &history.Store{}, svc.deps.Ledger)
		require.NoError(t, closeFn())
	})
}
