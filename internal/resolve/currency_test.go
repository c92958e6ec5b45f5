package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/a3tai/proposal-builder/internal/fields"
)

func TestMoney_Normalize(t *testing.T) {
	m := Money{Symbol: "$"}

	tests := []struct {
		input       string
		wantDisplay string
		wantValue   float64
		wantGenuine bool
	}{
		{"$100", "$100.00", 100, true},
		{"1,234.50", "$1,234.50", 1234.5, true},
		{"  $2,500,000 ", "$2,500,000.00", 2500000, true},
		{"50.5", "$50.50", 50.5, true},
		{"0", "$0.00", 0, true},
		{"No Charge", NoCharge, 0, true},
		{"free", NoCharge, 0, true},
		{"", "", 0, false},
		{"abc", fields.Placeholder, 0, false},
		{"[Information Not Found]", fields.Placeholder, 0, false},
		{"-75", "-$75.00", -75, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := m.Normalize(tt.input)
			assert.Equal(t, tt.wantDisplay, got.Display)
			assert.InDelta(t, tt.wantValue, got.Value, 0.001)
			assert.Equal(t, tt.wantGenuine, got.Genuine)
		})
	}
}

func TestMoney_NormalizeIdempotent(t *testing.T) {
	m := Money{Symbol: "$"}
	for _, in := range []string{"1,234.50", "$99", "1000000.25", "No Charge"} {
		once := m.Normalize(in)
		twice := m.Normalize(once.Display)
		assert.Equal(t, once, twice, in)
	}
}

func TestMoney_Total(t *testing.T) {
	m := Money{Symbol: "$"}

	items := []Amount{
		m.Normalize("$100"),
		m.Normalize(""),
		m.Normalize("50.5"),
		m.Normalize("No Charge"),
		m.Normalize("[Information Not Found]"),
	}
	assert.Equal(t, "$150.50", m.Total(items...).Display)

	none := []Amount{m.Normalize(""), m.Normalize("abc"), m.Normalize("0"), m.Normalize("free")}
	total := m.Total(none...)
	assert.Equal(t, NoCharge, total.Display)
	assert.Zero(t, total.Value)

	assert.Equal(t, NoCharge, m.Total().Display)
}

func TestMoney_CustomSymbol(t *testing.T) {
	m := Money{Symbol: "€"}
	v, ok := m.Parse("€1,000")
	assert.True(t, ok)
	assert.InDelta(t, 1000.0, v, 0.001)
	assert.Equal(t, "€1,000.00", m.Format(v))
}
