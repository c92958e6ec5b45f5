// Package resolve merges extracted, calculated and prompted values into the
// final field mapping for a proposal.
package resolve

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	perrors "github.com/a3tai/proposal-builder/internal/errors"
	"github.com/a3tai/proposal-builder/internal/fields"
)

// Prompter supplies values the documents did not contain
type Prompter interface {
	Ask(ctx context.Context, spec fields.Spec) (string, error)
}

// Origin records which stage produced a value
type Origin string

const (
	OriginExtracted  Origin = "extracted"
	OriginCalculated Origin = "calculated"
	OriginPrompted   Origin = "prompted"
	OriginUnresolved Origin = "unresolved"
)

// Inputs are the run-time business inputs
type Inputs struct {
	Today time.Time
	Weeks int
}

// Resolution is the finalized field mapping. Removed lists fields that
// stayed unresolved and were dropped so they render as missing.
type Resolution struct {
	Values  map[string]string
	Removed []string
	Origins map[string]Origin
}

// Config configures a Resolver
type Config struct {
	Specs          []fields.Spec
	Prompter       Prompter
	CurrencySymbol string
	Logger         *slog.Logger
}

// Resolver runs the resolution stages over a set of field specs
type Resolver struct {
	specs    []fields.Spec
	prompter Prompter
	money    Money
	logger   *slog.Logger
}

// New creates a Resolver. A nil Prompter makes the run non-interactive.
func New(cfg Config) *Resolver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	symbol := cfg.CurrencySymbol
	if symbol == "" {
		symbol = "$"
	}
	return &Resolver{
		specs:    cfg.Specs,
		prompter: cfg.Prompter,
		money:    Money{Symbol: symbol},
		logger:   logger,
	}
}

// state is the value mapping passed between stages
type state struct {
	values  map[string]string
	origins map[string]Origin
	removed []string
}

func (s state) clone() state {
	next := state{
		values:  make(map[string]string, len(s.values)),
		origins: make(map[string]Origin, len(s.origins)),
		removed: append([]string(nil), s.removed...),
	}
	for k, v := range s.values {
		next.values[k] = v
	}
	for k, v := range s.origins {
		next.origins[k] = v
	}
	return next
}

// Resolve produces the final mapping from the assistant's extraction
func (r *Resolver) Resolve(ctx context.Context, extracted map[string]string, in Inputs) (*Resolution, error) {
	if in.Weeks < 0 {
		return nil, perrors.New(perrors.KindInputInvalid, "weeks until auction cannot be negative: %d", in.Weeks)
	}

	st := fillAliases(seed(extracted))
	r.logger.Debug("seeded field values", "count", len(st.values))

	st = r.fillDates(st, BusinessDates(in.Today, in.Weeks))

	st, err := r.prompt(ctx, st)
	if err != nil {
		return nil, err
	}

	st = r.normalizeCurrency(st)
	st = cleanup(st)
	if len(st.removed) > 0 {
		r.logger.Info("dropped unresolved fields", "fields", st.removed)
	}

	if err := r.validate(st); err != nil {
		return nil, err
	}

	return &Resolution{Values: st.values, Removed: st.removed, Origins: st.origins}, nil
}

// seed copies extracted values, dropping empty and null answers
func seed(extracted map[string]string) state {
	st := state{
		values:  make(map[string]string, len(extracted)),
		origins: make(map[string]Origin, len(extracted)),
	}
	for k, v := range extracted {
		v = strings.TrimSpace(v)
		if v == "" || strings.EqualFold(v, "null") {
			continue
		}
		st.values[k] = v
		if IsPlaceholder(v) {
			st.origins[k] = OriginUnresolved
		} else {
			st.origins[k] = OriginExtracted
		}
	}
	return st
}

// fillAliases copies retainer_fee into retainer when only the fee was found
func fillAliases(in state) state {
	st := in.clone()
	if v, ok := st.values[fields.Retainer]; genuine(v, ok) {
		return st
	}
	if fee, ok := st.values[fields.RetainerFee]; genuine(fee, ok) {
		st.values[fields.Retainer] = fee
		st.origins[fields.Retainer] = st.origins[fields.RetainerFee]
	}
	return st
}

// genuine reports whether v is a usable value
func genuine(v string, ok bool) bool {
	return ok && strings.TrimSpace(v) != "" && !IsPlaceholder(v)
}

func (r *Resolver) fillDates(in state, dates Dates) state {
	st := in.clone()
	for name, v := range dates.Fields() {
		if existing, ok := st.values[name]; genuine(existing, ok) {
			continue
		}
		st.values[name] = v
		st.origins[name] = OriginCalculated
	}
	return st
}

// maxCurrencyAsks bounds how often an unparseable amount is asked again
const maxCurrencyAsks = 3

func (r *Resolver) prompt(ctx context.Context, in state) (state, error) {
	st := in.clone()
	currency := r.currencyNames()
	for _, spec := range r.specs {
		if spec.Source == fields.SourceCalculated {
			// no rule produces it, so it can only render as missing
			if _, ok := st.values[spec.Name]; !ok && !fields.IsCalculatedName(spec.Name) {
				st.values[spec.Name] = fields.Placeholder
				st.origins[spec.Name] = OriginUnresolved
			}
			continue
		}
		v, ok := st.values[spec.Name]
		if genuine(v, ok) {
			continue
		}

		if r.prompter == nil {
			if !ok {
				st.values[spec.Name] = fields.Placeholder
				st.origins[spec.Name] = OriginUnresolved
			}
			continue
		}

		answer, err := r.ask(ctx, spec, currency[spec.Name])
		if err != nil {
			return state{}, err
		}
		st.values[spec.Name] = answer
		st.origins[spec.Name] = OriginPrompted
	}
	return st, nil
}

// ask prompts for spec. A currency answer that does not parse as an
// amount is asked again; after maxCurrencyAsks it is kept and later
// dropped as unparseable.
func (r *Resolver) ask(ctx context.Context, spec fields.Spec, currency bool) (string, error) {
	var answer string
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		raw, err := r.prompter.Ask(ctx, spec)
		if err != nil {
			return "", perrors.Wrap(perrors.KindInputInvalid, err, "prompt for "+spec.Name+" failed")
		}
		answer = strings.TrimSpace(raw)
		if !currency || answer == "" || IsPlaceholder(answer) {
			return answer, nil
		}
		if _, ok := r.money.Parse(answer); ok {
			return answer, nil
		}
		if attempt >= maxCurrencyAsks {
			r.logger.Warn("discarding unparseable currency answer", "field", spec.Name, "value", answer)
			return answer, nil
		}
		r.logger.Warn("currency answer is not an amount, asking again", "field", spec.Name, "value", answer)
	}
}

// currencyNames returns the fields normalized as money, excluding the
// derived totals
func (r *Resolver) currencyNames() map[string]bool {
	names := map[string]bool{
		fields.Retainer:    true,
		fields.RetainerFee: true,
	}
	for _, m := range fields.MarketingItems {
		names[m] = true
	}
	for _, s := range r.specs {
		if s.IsCurrency {
			names[s.Name] = true
		}
	}
	delete(names, fields.MarketingTotalCost)
	delete(names, fields.TotalDueAtContract)
	return names
}

func (r *Resolver) normalizeCurrency(in state) state {
	st := in.clone()
	amounts := make(map[string]Amount)

	for name := range r.currencyNames() {
		v, ok := st.values[name]
		if !ok {
			continue
		}
		a := r.money.Normalize(v)
		amounts[name] = a
		st.values[name] = a.Display
		if !a.Genuine && a.Display == fields.Placeholder && v != fields.Placeholder {
			r.logger.Warn("unparseable currency value", "field", name, "value", v)
		}
	}

	items := make([]Amount, 0, len(fields.MarketingItems))
	for _, m := range fields.MarketingItems {
		items = append(items, amounts[m])
	}
	marketing := r.money.Total(items...)
	st.values[fields.MarketingTotalCost] = marketing.Display
	st.origins[fields.MarketingTotalCost] = OriginCalculated

	retainer, ok := amounts[fields.Retainer]
	if !ok || !retainer.Genuine {
		retainer = amounts[fields.RetainerFee]
	}
	due := marketing.Value
	if retainer.Genuine {
		due += retainer.Value
	}
	st.values[fields.TotalDueAtContract] = r.money.Format(due)
	st.origins[fields.TotalDueAtContract] = OriginCalculated

	return st
}

// cleanup drops every value still holding the placeholder
func cleanup(in state) state {
	st := in.clone()
	for k, v := range st.values {
		if IsPlaceholder(v) {
			delete(st.values, k)
			st.origins[k] = OriginUnresolved
			st.removed = append(st.removed, k)
		}
	}
	sort.Strings(st.removed)
	return st
}

// validate checks that every spec ended with a value or was dropped
func (r *Resolver) validate(st state) error {
	removed := make(map[string]bool, len(st.removed))
	for _, k := range st.removed {
		removed[k] = true
	}
	for _, spec := range r.specs {
		if _, ok := st.values[spec.Name]; ok || removed[spec.Name] {
			continue
		}
		return perrors.New(perrors.KindInputInvalid, "field %s was never resolved", spec.Name)
	}
	return nil
}
