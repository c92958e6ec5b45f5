package resolve

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/a3tai/proposal-builder/internal/errors"
	"github.com/a3tai/proposal-builder/internal/fields"
	"github.com/a3tai/proposal-builder/internal/render"
)

// scriptedPrompter answers from a map and records what it was asked.
// A name in sequence is answered from its list in order, repeating the
// last entry.
type scriptedPrompter struct {
	answers  map[string]string
	sequence map[string][]string
	asked    []string
	err      error
}

func (p *scriptedPrompter) Ask(_ context.Context, spec fields.Spec) (string, error) {
	p.asked = append(p.asked, spec.Name)
	if p.err != nil {
		return "", p.err
	}
	if seq := p.sequence[spec.Name]; len(seq) > 0 {
		answer := seq[0]
		if len(seq) > 1 {
			p.sequence[spec.Name] = seq[1:]
		}
		return answer, nil
	}
	return p.answers[spec.Name], nil
}

func testSpecs() []fields.Spec {
	return []fields.Spec{
		{Name: "client_name", Source: fields.SourceExtracted},
		{Name: "property_address", Source: fields.SourceExtracted},
		{Name: "auctioneer_name", Source: fields.SourceUser},
		{Name: "retainer", Source: fields.SourceUser, IsCurrency: true},
		{Name: "buyer_premium", Source: fields.SourceExtracted, IsCurrency: true},
		{Name: "marketing_facebook_cost", Source: fields.SourceUser, IsCurrency: true},
		{Name: "marketing_google_cost", Source: fields.SourceUser, IsCurrency: true},
		{Name: "marketing_direct_mail_cost", Source: fields.SourceUser, IsCurrency: true},
		{Name: "marketing_drone_cost", Source: fields.SourceUser, IsCurrency: true},
		{Name: "marketing_signs_cost", Source: fields.SourceUser, IsCurrency: true},
		{Name: "marketing_total_cost", Source: fields.SourceCalculated, IsCurrency: true},
		{Name: "total_due_at_contract", Source: fields.SourceCalculated, IsCurrency: true},
		{Name: "auction_end_date", Source: fields.SourceCalculated, IsDate: true},
		{Name: "contract_date", Source: fields.SourceCalculated, IsDate: true},
		{Name: "closing_date", Source: fields.SourceCalculated, IsDate: true},
	}
}

var runInputs = Inputs{Today: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), Weeks: 2}

func TestResolve_Interactive(t *testing.T) {
	p := &scriptedPrompter{answers: map[string]string{
		"property_address":      "  12 Elm St ",
		"auctioneer_name":       "Pat Lee",
		"retainer":              "1,000",
		"marketing_google_cost": "",
		"marketing_signs_cost":  "[Information Not Found]",
	}}
	r := New(Config{Specs: testSpecs(), Prompter: p})

	extracted := map[string]string{
		"client_name":                "Ada Byron",
		"property_address":           "[Information Not Found]",
		"buyer_premium":              "abc",
		"marketing_facebook_cost":    "$100",
		"marketing_direct_mail_cost": "50.5",
		"marketing_drone_cost":       "No Charge",
		"auction_end_date":           "null",
	}

	res, err := r.Resolve(context.Background(), extracted, runInputs)
	require.NoError(t, err)

	// genuine extracted values are never prompted; calculated ones never are
	assert.Equal(t, []string{
		"property_address", "auctioneer_name", "retainer",
		"marketing_google_cost", "marketing_signs_cost",
	}, p.asked)

	v := res.Values
	assert.Equal(t, "Ada Byron", v["client_name"])
	assert.Equal(t, "12 Elm St", v["property_address"])
	assert.Equal(t, "Pat Lee", v["auctioneer_name"])
	assert.Equal(t, "$1,000.00", v["retainer"])
	assert.Equal(t, "$100.00", v["marketing_facebook_cost"])
	assert.Equal(t, "", v["marketing_google_cost"])
	assert.Equal(t, "$50.50", v["marketing_direct_mail_cost"])
	assert.Equal(t, NoCharge, v["marketing_drone_cost"])
	assert.Equal(t, "$150.50", v["marketing_total_cost"])
	assert.Equal(t, "$1,150.50", v["total_due_at_contract"])
	assert.Equal(t, "January 18, 2024", v["auction_end_date"])
	assert.Equal(t, "January 12, 2024", v["contract_date"])
	assert.Equal(t, "February 19, 2024", v["closing_date"])

	// unparseable and unanswered placeholders are dropped, never rendered
	assert.Equal(t, []string{"buyer_premium", "marketing_signs_cost"}, res.Removed)
	assert.NotContains(t, v, "buyer_premium")
	assert.NotContains(t, v, "marketing_signs_cost")
	for k, val := range v {
		assert.NotEqual(t, fields.Placeholder, val, k)
	}

	assert.Equal(t, OriginExtracted, res.Origins["client_name"])
	assert.Equal(t, OriginPrompted, res.Origins["property_address"])
	assert.Equal(t, OriginCalculated, res.Origins["closing_date"])
	assert.Equal(t, OriginUnresolved, res.Origins["buyer_premium"])
}

func TestResolve_NonInteractive(t *testing.T) {
	r := New(Config{Specs: testSpecs()})

	res, err := r.Resolve(context.Background(), map[string]string{"client_name": "Ada"}, runInputs)
	require.NoError(t, err)

	assert.Equal(t, "Ada", res.Values["client_name"])
	assert.Equal(t, NoCharge, res.Values["marketing_total_cost"])
	assert.Equal(t, "$0.00", res.Values["total_due_at_contract"])
	assert.Contains(t, res.Removed, "auctioneer_name")
	assert.Contains(t, res.Removed, "retainer")

	// every spec is either resolved or explicitly removed
	for _, s := range testSpecs() {
		_, ok := res.Values[s.Name]
		assert.True(t, ok || contains(res.Removed, s.Name), s.Name)
	}
}

func TestResolve_KeepsGenuineExtractedDate(t *testing.T) {
	r := New(Config{Specs: testSpecs()})
	res, err := r.Resolve(context.Background(), map[string]string{
		"closing_date":         "March 3, 2024",
		"marketing_total_cost": "$9,999.00",
	}, runInputs)
	require.NoError(t, err)

	assert.Equal(t, "March 3, 2024", res.Values["closing_date"])
	assert.Equal(t, OriginExtracted, res.Origins["closing_date"])
	// derived totals are always recomputed
	assert.Equal(t, NoCharge, res.Values["marketing_total_cost"])
}

func TestResolve_RetainerFeeAlias(t *testing.T) {
	specs := []fields.Spec{{Name: "retainer_fee", Source: fields.SourceExtracted, IsCurrency: true}}
	r := New(Config{Specs: specs})

	res, err := r.Resolve(context.Background(), map[string]string{
		"retainer_fee":            "2500",
		"marketing_facebook_cost": "250",
	}, runInputs)
	require.NoError(t, err)

	assert.Equal(t, "$2,500.00", res.Values["retainer_fee"])
	assert.Equal(t, "$250.00", res.Values["marketing_total_cost"])
	assert.Equal(t, "$2,750.00", res.Values["total_due_at_contract"])
}

func TestResolve_RetainerFilledFromFee(t *testing.T) {
	specs := []fields.Spec{{Name: "retainer", Source: fields.SourceUser, IsCurrency: true}}

	tests := []struct {
		name      string
		extracted map[string]string
		prompter  *scriptedPrompter
		want      string
		wantAsked []string
	}{
		{
			name:      "fee only",
			extracted: map[string]string{"retainer_fee": "2500"},
			want:      "$2,500.00",
		},
		{
			name:      "placeholder retainer",
			extracted: map[string]string{"retainer": "[Information Not Found]", "retainer_fee": "$1,200"},
			want:      "$1,200.00",
		},
		{
			name:      "genuine retainer wins",
			extracted: map[string]string{"retainer": "300", "retainer_fee": "2500"},
			want:      "$300.00",
		},
		{
			name:      "fee found so no prompt",
			extracted: map[string]string{"retainer_fee": "2500"},
			prompter:  &scriptedPrompter{answers: map[string]string{"retainer": "999"}},
			want:      "$2,500.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Specs: specs}
			if tt.prompter != nil {
				cfg.Prompter = tt.prompter
			}
			res, err := New(cfg).Resolve(context.Background(), tt.extracted, runInputs)
			require.NoError(t, err)

			assert.Equal(t, tt.want, res.Values["retainer"])
			assert.NotContains(t, res.Removed, "retainer")
			assert.Equal(t, tt.want, res.Values["total_due_at_contract"])
			if tt.prompter != nil {
				assert.Empty(t, tt.prompter.asked)
			}

			out := render.Substitute("Retainer {{retainer}} due {{total_due_at_contract}}", res.Values)
			assert.Equal(t, "Retainer "+tt.want+" due "+tt.want, out.Text)
			assert.Empty(t, out.Missing)
		})
	}
}

func TestResolve_ReasksUnparseableCurrency(t *testing.T) {
	specs := []fields.Spec{
		{Name: "buyer_premium", Source: fields.SourceExtracted, IsCurrency: true},
		{Name: "auctioneer_name", Source: fields.SourceUser},
	}

	t.Run("valid answer after retry", func(t *testing.T) {
		p := &scriptedPrompter{
			answers:  map[string]string{"auctioneer_name": "ten percent"},
			sequence: map[string][]string{"buyer_premium": {"ten percent", "$5"}},
		}
		res, err := New(Config{Specs: specs, Prompter: p}).Resolve(context.Background(), nil, runInputs)
		require.NoError(t, err)

		assert.Equal(t, []string{"buyer_premium", "buyer_premium", "auctioneer_name"}, p.asked)
		assert.Equal(t, "$5.00", res.Values["buyer_premium"])
		// text fields take any answer
		assert.Equal(t, "ten percent", res.Values["auctioneer_name"])
		assert.Empty(t, res.Removed)
	})

	t.Run("gives up after repeated failures", func(t *testing.T) {
		p := &scriptedPrompter{
			answers:  map[string]string{"auctioneer_name": "Pat"},
			sequence: map[string][]string{"buyer_premium": {"ten percent"}},
		}
		res, err := New(Config{Specs: specs, Prompter: p}).Resolve(context.Background(), nil, runInputs)
		require.NoError(t, err)

		assert.Equal(t, maxCurrencyAsks, countOf(p.asked, "buyer_premium"))
		assert.Equal(t, []string{"buyer_premium"}, res.Removed)
	})

	t.Run("blank and zero words are accepted", func(t *testing.T) {
		p := &scriptedPrompter{answers: map[string]string{"buyer_premium": "free", "auctioneer_name": ""}}
		res, err := New(Config{Specs: specs, Prompter: p}).Resolve(context.Background(), nil, runInputs)
		require.NoError(t, err)

		assert.Equal(t, []string{"buyer_premium", "auctioneer_name"}, p.asked)
		assert.Equal(t, NoCharge, res.Values["buyer_premium"])
		assert.Equal(t, "", res.Values["auctioneer_name"])
	})
}

func TestResolve_UnknownCalculatedField(t *testing.T) {
	specs := []fields.Spec{{Name: "escrow_amount", Source: fields.SourceCalculated}}
	p := &scriptedPrompter{}
	r := New(Config{Specs: specs, Prompter: p})

	res, err := r.Resolve(context.Background(), nil, runInputs)
	require.NoError(t, err)
	assert.Empty(t, p.asked)
	assert.Equal(t, []string{"escrow_amount"}, res.Removed)
}

func TestResolve_Errors(t *testing.T) {
	t.Run("negative weeks", func(t *testing.T) {
		r := New(Config{Specs: testSpecs()})
		_, err := r.Resolve(context.Background(), nil, Inputs{Today: runInputs.Today, Weeks: -1})
		assert.True(t, perrors.Is(err, perrors.KindInputInvalid))
	})

	t.Run("prompter failure", func(t *testing.T) {
		r := New(Config{Specs: testSpecs(), Prompter: &scriptedPrompter{err: errors.New("tty closed")}})
		_, err := r.Resolve(context.Background(), nil, runInputs)
		require.Error(t, err)
		assert.True(t, perrors.Is(err, perrors.KindInputInvalid))
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		r := New(Config{Specs: testSpecs(), Prompter: &scriptedPrompter{}})
		_, err := r.Resolve(ctx, nil, runInputs)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestResolve_DoesNotMutateInput(t *testing.T) {
	extracted := map[string]string{"client_name": " Ada ", "retainer": "100"}
	r := New(Config{Specs: testSpecs()})

	_, err := r.Resolve(context.Background(), extracted, runInputs)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"client_name": " Ada ", "retainer": "100"}, extracted)
}

func countOf(list []string, s string) int {
	n := 0
	for _, v := range list {
		if v == s {
			n++
		}
	}
	return n
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
