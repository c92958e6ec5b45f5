package fields

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/a3tai/proposal-builder/internal/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantNames []string
		wantErr   bool
	}{
		{
			name: "json list",
			input: `[
				{"name": "client_name", "source": "extracted", "is_currency": false, "is_date": false},
				{"name": "retainer", "source": "user", "is_currency": true, "is_date": false},
				{"name": "auction_end_date", "source": "calculated", "is_currency": false, "is_date": true}
			]`,
			wantNames: []string{"client_name", "retainer", "auction_end_date"},
		},
		{
			name: "yaml mapping",
			input: `retainer:
  source: user
  is_currency: true
client_name:
  source: extracted
`,
			wantNames: []string{"client_name", "retainer"},
		},
		{
			name:      "missing source defaults to extracted",
			input:     `[{"name": "property_address"}]`,
			wantNames: []string{"property_address"},
		},
		{name: "empty document", input: "  ", wantErr: true},
		{name: "not an index", input: `"just a string"`, wantErr: true},
		{name: "unknown source", input: `[{"name": "x", "source": "guess"}]`, wantErr: true},
		{name: "duplicate names", input: `[{"name": "x"}, {"name": "x"}]`, wantErr: true},
		{name: "nameless entry", input: `[{"source": "user"}]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, err := Parse([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, perrors.Is(err, perrors.KindIndexParseFailed))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantNames, idx.Names())
		})
	}
}

func TestParse_Flags(t *testing.T) {
	idx, err := Parse([]byte(`[{"name": "retainer", "source": "user", "is_currency": true}]`))
	require.NoError(t, err)

	spec, ok := idx.Lookup("retainer")
	require.True(t, ok)
	assert.Equal(t, SourceUser, spec.Source)
	assert.True(t, spec.IsCurrency)
	assert.False(t, spec.IsDate)

	_, ok = idx.Lookup("nope")
	assert.False(t, ok)
	assert.Len(t, idx.BySource(SourceUser), 1)
	assert.Empty(t, idx.BySource(SourceCalculated))
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "estate.json")

	in := &Index{Specs: []Spec{
		{Name: "client_name", Source: SourceExtracted},
		{Name: "closing_date", Source: SourceCalculated, IsDate: true},
	}}
	require.NoError(t, Save(path, in))

	out, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, in.Specs, out.Specs)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.True(t, perrors.Is(err, perrors.KindIndexParseFailed))
	assert.Contains(t, err.Error(), "absent.json")
}

func TestIndexPath(t *testing.T) {
	got := IndexPath("idx", filepath.Join("templates", "real_estate_auction_proposal.txt"))
	assert.Equal(t, filepath.Join("idx", "real_estate_auction_proposal.json"), got)
}

func TestStale(t *testing.T) {
	dir := t.TempDir()
	tpl := filepath.Join(dir, "t.txt")
	idx := filepath.Join(dir, "t.json")
	require.NoError(t, os.WriteFile(tpl, []byte("{{a}}"), 0o644))

	stale, err := Stale(tpl, idx)
	require.NoError(t, err)
	assert.True(t, stale, "missing index is stale")

	require.NoError(t, os.WriteFile(idx, []byte("[]"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(tpl, old, old))
	stale, err = Stale(tpl, idx)
	require.NoError(t, err)
	assert.False(t, stale)

	newer := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(tpl, newer, newer))
	stale, err = Stale(tpl, idx)
	require.NoError(t, err)
	assert.True(t, stale, "template edited after indexing")

	_, err = Stale(filepath.Join(dir, "gone.txt"), idx)
	assert.True(t, perrors.Is(err, perrors.KindTemplateMissing))
}

func TestReindex(t *testing.T) {
	existing := &Index{Specs: []Spec{
		{Name: "client_name", Source: SourceUser},
		{Name: "dropped_field", Source: SourceExtracted},
	}}
	template := "{{client_name}} {{retainer}} {{closing_date}} {{inspection_date}} {{marketing_total_cost}} {{county}}"

	idx := Reindex(template, existing)
	assert.Equal(t, []string{"client_name", "retainer", "closing_date", "inspection_date", "marketing_total_cost", "county"}, idx.Names())

	want := map[string]Spec{
		"client_name":          {Name: "client_name", Source: SourceUser},
		"retainer":             {Name: "retainer", Source: SourceExtracted, IsCurrency: true},
		"closing_date":         {Name: "closing_date", Source: SourceCalculated, IsDate: true},
		"inspection_date":      {Name: "inspection_date", Source: SourceExtracted, IsDate: true},
		"marketing_total_cost": {Name: "marketing_total_cost", Source: SourceCalculated, IsCurrency: true},
		"county":               {Name: "county", Source: SourceExtracted},
	}
	for name, w := range want {
		got, ok := idx.Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, w, got, name)
	}
}

func TestNamePredicates(t *testing.T) {
	assert.True(t, IsCalculatedName(ClosingDate))
	assert.True(t, IsCalculatedName(TotalDueAtContract))
	assert.False(t, IsCalculatedName(Retainer))
	assert.True(t, IsMarketingItem("marketing_drone_cost"))
	assert.False(t, IsMarketingItem(MarketingTotalCost))
}
