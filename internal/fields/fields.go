// Package fields describes template variables and loads their indexes.
package fields

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"

	perrors "github.com/a3tai/proposal-builder/internal/errors"
	"github.com/a3tai/proposal-builder/internal/render"
)

// Placeholder marks a value that could not be found in the source documents
const Placeholder = "[Information Not Found]"

// Source says where a field's value comes from
type Source string

const (
	SourceExtracted  Source = "extracted"
	SourceUser       Source = "user"
	SourceCalculated Source = "calculated"
)

// Valid reports whether s is a known source
func (s Source) Valid() bool {
	switch s {
	case SourceExtracted, SourceUser, SourceCalculated:
		return true
	}
	return false
}

// Spec is the metadata of one template variable
type Spec struct {
	Name       string `json:"name" yaml:"name"`
	Source     Source `json:"source" yaml:"source"`
	IsCurrency bool   `json:"is_currency" yaml:"is_currency"`
	IsDate     bool   `json:"is_date" yaml:"is_date"`
}

// Names of the values computed by business rules
const (
	ProposalDate           = "proposal_date"
	AuctionEndDate         = "auction_end_date"
	ContractDate           = "contract_date"
	AdvertisingStartDate   = "advertising_start_date"
	ClosingDate            = "closing_date"
	AcceptanceDeadlineDate = "acceptance_deadline_date"
	MarketingTotalCost     = "marketing_total_cost"
	TotalDueAtContract     = "total_due_at_contract"
	Retainer               = "retainer"
	RetainerFee            = "retainer_fee"
)

// MarketingItems are the line items summed into the marketing total
var MarketingItems = []string{
	"marketing_facebook_cost",
	"marketing_google_cost",
	"marketing_direct_mail_cost",
	"marketing_drone_cost",
	"marketing_signs_cost",
}

// DateFields lists the calculated date fields
var DateFields = []string{
	ProposalDate,
	AuctionEndDate,
	ContractDate,
	AdvertisingStartDate,
	ClosingDate,
	AcceptanceDeadlineDate,
}

// IsCalculatedName reports whether name is produced by business rules
func IsCalculatedName(name string) bool {
	if name == MarketingTotalCost || name == TotalDueAtContract {
		return true
	}
	for _, d := range DateFields {
		if d == name {
			return true
		}
	}
	return false
}

// IsMarketingItem reports whether name is one of the marketing line items
func IsMarketingItem(name string) bool {
	for _, m := range MarketingItems {
		if m == name {
			return true
		}
	}
	return false
}

// Index is the ordered set of field specs for one template
type Index struct {
	Specs []Spec
}

// Names returns the field names in index order
func (idx *Index) Names() []string {
	names := make([]string, len(idx.Specs))
	for i, s := range idx.Specs {
		names[i] = s.Name
	}
	return names
}

// Lookup returns the spec for name
func (idx *Index) Lookup(name string) (Spec, bool) {
	for _, s := range idx.Specs {
		if s.Name == name {
			return s, true
		}
	}
	return Spec{}, false
}

// BySource returns the specs drawn from src
func (idx *Index) BySource(src Source) []Spec {
	var out []Spec
	for _, s := range idx.Specs {
		if s.Source == src {
			out = append(out, s)
		}
	}
	return out
}

// Parse decodes an index document. Both a list of specs and a mapping of
// field name to spec are accepted, in JSON or YAML.
func Parse(data []byte) (*Index, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, perrors.New(perrors.KindIndexParseFailed, "field index is empty")
	}

	var list []Spec
	if err := yaml.Unmarshal(data, &list); err != nil {
		var byName map[string]Spec
		if mapErr := yaml.Unmarshal(data, &byName); mapErr != nil {
			return nil, perrors.Wrap(perrors.KindIndexParseFailed, err, "cannot decode field index")
		}
		list = make([]Spec, 0, len(byName))
		for name, spec := range byName {
			spec.Name = name
			list = append(list, spec)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	}

	seen := make(map[string]bool, len(list))
	for i := range list {
		spec := &list[i]
		spec.Name = strings.TrimSpace(spec.Name)
		if spec.Name == "" {
			return nil, perrors.New(perrors.KindIndexParseFailed, "field index entry %d has no name", i)
		}
		if seen[spec.Name] {
			return nil, perrors.New(perrors.KindIndexParseFailed, "duplicate field %q in index", spec.Name)
		}
		seen[spec.Name] = true

		if spec.Source == "" {
			spec.Source = SourceExtracted
		}
		if !spec.Source.Valid() {
			return nil, perrors.New(perrors.KindIndexParseFailed, "field %q has unknown source %q", spec.Name, spec.Source)
		}
	}

	return &Index{Specs: list}, nil
}

// Load reads and parses the index file at path
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, perrors.Wrap(perrors.KindIndexParseFailed, err, "cannot read field index").WithFile(filepath.Base(path))
	}
	idx, err := Parse(data)
	if err != nil {
		var pe *perrors.ProposalError
		if errors.As(err, &pe) {
			return nil, pe.WithFile(filepath.Base(path))
		}
		return nil, err
	}
	return idx, nil
}

// Save writes idx to path as a JSON list
func Save(path string, idx *Index) error {
	data, err := yaml.MarshalWithOptions(idx.Specs, yaml.JSON())
	if err != nil {
		return fmt.Errorf("encode field index: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// IndexPath returns the index file belonging to templatePath
func IndexPath(indexDir, templatePath string) string {
	stem := strings.TrimSuffix(filepath.Base(templatePath), filepath.Ext(templatePath))
	return filepath.Join(indexDir, stem+".json")
}

// Stale reports whether the index is missing or older than its template
func Stale(templatePath, indexPath string) (bool, error) {
	tInfo, err := os.Stat(templatePath)
	if err != nil {
		return false, perrors.Wrap(perrors.KindTemplateMissing, err, "cannot stat template").WithFile(filepath.Base(templatePath))
	}
	iInfo, err := os.Stat(indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, fmt.Errorf("stat field index: %w", err)
	}
	return tInfo.ModTime().After(iInfo.ModTime()), nil
}

// Reindex builds an index for template. Specs already in existing are
// kept for names the template still uses; new names get inferred flags.
func Reindex(template string, existing *Index) *Index {
	names := render.Tokens(template)
	specs := make([]Spec, 0, len(names))
	for _, name := range names {
		if existing != nil {
			if spec, ok := existing.Lookup(name); ok {
				specs = append(specs, spec)
				continue
			}
		}
		specs = append(specs, Infer(name))
	}
	return &Index{Specs: specs}
}

// Infer guesses a spec from a field name
func Infer(name string) Spec {
	spec := Spec{Name: name, Source: SourceExtracted}
	lower := strings.ToLower(name)

	if IsCalculatedName(name) {
		spec.Source = SourceCalculated
	}
	if strings.HasSuffix(lower, "_date") {
		spec.IsDate = true
	}
	for _, hint := range []string{"cost", "fee", "price", "retainer", "total", "deposit"} {
		if strings.Contains(lower, hint) {
			spec.IsCurrency = true
			break
		}
	}
	return spec
}
