package resolve

import (
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/a3tai/proposal-builder/internal/fields"
)

// NoCharge is shown for amounts that are genuinely zero
const NoCharge = "No Charge"

// amountFormat groups thousands and keeps two decimals
const amountFormat = "#,###.##"

// zeroWords are spellings of an explicit zero amount
var zeroWords = map[string]bool{
	"no charge": true,
	"free":      true,
	"none":      true,
	"no cost":   true,
}

// Amount is the parsed form of a currency field
type Amount struct {
	Value   float64
	Genuine bool
	Display string
}

// Money parses and formats currency values with a fixed symbol
type Money struct {
	Symbol string
}

// Parse strips the currency symbol, thousands separators and whitespace
// from raw and reads the rest as a number.
func (m Money) Parse(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if zeroWords[strings.ToLower(s)] {
		return 0, true
	}
	s = strings.ReplaceAll(s, "$", "")
	if m.Symbol != "" {
		s = strings.ReplaceAll(s, m.Symbol, "")
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Format renders v with the symbol, thousands separators and two decimals
func (m Money) Format(v float64) string {
	if v < 0 {
		return "-" + m.Symbol + humanize.FormatFloat(amountFormat, -v)
	}
	return m.Symbol + humanize.FormatFloat(amountFormat, v)
}

// Normalize parses raw and returns its display form. Empty input stays
// empty. Unparseable input displays as the not-found placeholder and is
// not genuine, so it never contributes to a total.
func (m Money) Normalize(raw string) Amount {
	s := strings.TrimSpace(raw)
	switch {
	case s == "":
		return Amount{}
	case zeroWords[strings.ToLower(s)]:
		return Amount{Genuine: true, Display: NoCharge}
	case IsPlaceholder(s):
		return Amount{Display: fields.Placeholder}
	}

	v, ok := m.Parse(s)
	if !ok {
		return Amount{Display: fields.Placeholder}
	}
	return Amount{Value: v, Genuine: true, Display: m.Format(v)}
}

// Total sums the genuine amounts and renders the sum. A zero sum is
// shown as No Charge.
func (m Money) Total(amounts ...Amount) Amount {
	var sum float64
	for _, a := range amounts {
		if a.Genuine {
			sum += a.Value
		}
	}
	if sum == 0 {
		return Amount{Genuine: true, Display: NoCharge}
	}
	return Amount{Value: sum, Genuine: true, Display: m.Format(sum)}
}

// IsPlaceholder reports whether v is the not-found marker
func IsPlaceholder(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), fields.Placeholder)
}
