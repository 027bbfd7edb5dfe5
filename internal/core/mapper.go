package core

// mapper.go holds the fixed target schema and the source-column mappings.
//
// Auto-mapping is a priority-ordered decision list: each header is normalized
// to lowercase alphanumerics and tested against mappingRules in order. The
// first rule with a keyword contained in the header wins. The order is part of
// the contract (e.g. "Tax Rate" contains "rate" and therefore maps to
// base_rate) and is pinned by tests; headers that match more than one rule are
// reported as ambiguities so the user can correct them.

import (
	"errors"
	"fmt"
	"strings"
)

// Target field names.
const (
	FieldName                    = "name"
	FieldDescription             = "description"
	FieldBaseRate                = "base_rate"
	FieldHSNCode                 = "hsn_code"
	FieldTaxRate                 = "tax_rate"
	FieldUnitOfMeasure           = "unit_of_measure"
	FieldMinQuantity             = "min_quantity"
	FieldIsFragile               = "is_fragile"
	FieldRequiresSpecialHandling = "requires_special_handling"
	FieldNotes                   = "notes"
	FieldBranchID                = "branch_id"
)

// FieldType represents the semantic type of a target field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldNumeric
	FieldBool
)

// String returns the lowercase name of the field type.
func (t FieldType) String() string {
	switch t {
	case FieldNumeric:
		return "number"
	case FieldBool:
		return "boolean"
	default:
		return "text"
	}
}

// MarshalText lets field types serialize by name.
func (t FieldType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// TargetField describes one attribute of the destination schema.
type TargetField struct {
	Name     string    `json:"name"`
	Label    string    `json:"label"`
	Required bool      `json:"required"`
	Type     FieldType `json:"type"`
}

// TargetSchema is the fixed destination schema, in display order.
var TargetSchema = []TargetField{
	{Name: FieldName, Label: "Article Name", Required: true, Type: FieldText},
	{Name: FieldDescription, Label: "Description", Type: FieldText},
	{Name: FieldBaseRate, Label: "Base Rate", Required: true, Type: FieldNumeric},
	{Name: FieldHSNCode, Label: "HSN Code", Type: FieldText},
	{Name: FieldTaxRate, Label: "Tax (%)", Type: FieldNumeric},
	{Name: FieldUnitOfMeasure, Label: "Unit of Measure", Type: FieldText},
	{Name: FieldMinQuantity, Label: "Minimum Quantity", Type: FieldNumeric},
	{Name: FieldIsFragile, Label: "Is Fragile", Type: FieldBool},
	{Name: FieldRequiresSpecialHandling, Label: "Requires Special Handling", Type: FieldBool},
	{Name: FieldNotes, Label: "Notes", Type: FieldText},
}

// LookupTargetField returns the schema entry for name.
func LookupTargetField(name string) (TargetField, bool) {
	for _, f := range TargetSchema {
		if f.Name == name {
			return f, true
		}
	}
	return TargetField{}, false
}

// mappingRule is one entry of the auto-mapping decision list.
type mappingRule struct {
	keywords  []string
	target    string
	transform Transform
}

// mappingRules is evaluated top to bottom; the first match wins.
var mappingRules = []mappingRule{
	{keywords: []string{"name", "article"}, target: FieldName, transform: TransformNone},
	{keywords: []string{"desc"}, target: FieldDescription, transform: TransformNone},
	{keywords: []string{"rate", "price"}, target: FieldBaseRate, transform: TransformNumber},
	{keywords: []string{"hsn"}, target: FieldHSNCode, transform: TransformNone},
	{keywords: []string{"tax", "gst"}, target: FieldTaxRate, transform: TransformNumber},
	{keywords: []string{"unit", "uom"}, target: FieldUnitOfMeasure, transform: TransformNone},
	{keywords: []string{"min", "quantity"}, target: FieldMinQuantity, transform: TransformNumber},
	{keywords: []string{"fragile"}, target: FieldIsFragile, transform: TransformBoolean},
	{keywords: []string{"special", "handling"}, target: FieldRequiresSpecialHandling, transform: TransformBoolean},
	{keywords: []string{"note", "remark"}, target: FieldNotes, transform: TransformNone},
}

func (r mappingRule) matches(normalized string) bool {
	for _, kw := range r.keywords {
		if strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}

// MappingAmbiguity records a header that matched more than one rule.
// Candidates are in rule order; the first one was applied.
type MappingAmbiguity struct {
	Header     string   `json:"header"`
	Candidates []string `json:"candidates"`
}

// AutoMapResult is the outcome of AutoMap.
type AutoMapResult struct {
	Mappings    []FieldMapping     `json:"mappings"`
	Unmapped    []string           `json:"unmapped"`
	Ambiguities []MappingAmbiguity `json:"ambiguities,omitempty"`
}

// AutoMap infers mappings for headers using the ordered rule table.
func AutoMap(headers []string) AutoMapResult {
	var result AutoMapResult

	for _, h := range headers {
		normalized := normalizeHeader(h)
		if normalized == "" {
			result.Unmapped = append(result.Unmapped, h)
			continue
		}

		var matched []mappingRule
		for _, rule := range mappingRules {
			if rule.matches(normalized) {
				matched = append(matched, rule)
			}
		}

		if len(matched) == 0 {
			result.Unmapped = append(result.Unmapped, h)
			continue
		}

		result.Mappings = append(result.Mappings, FieldMapping{
			SourceField: h,
			TargetField: matched[0].target,
			Transform:   matched[0].transform,
		})

		if len(matched) > 1 {
			candidates := make([]string, len(matched))
			for i, rule := range matched {
				candidates[i] = rule.target
			}
			result.Ambiguities = append(result.Ambiguities, MappingAmbiguity{Header: h, Candidates: candidates})
		}
	}

	return result
}

// normalizeHeader lowercases h and drops everything but ASCII letters and digits.
func normalizeHeader(h string) string {
	var b strings.Builder
	b.Grow(len(h))
	for _, r := range strings.ToLower(h) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var (
	// ErrUnknownTarget is returned when a mapping names a field outside TargetSchema.
	ErrUnknownTarget = errors.New("unknown target field")

	// ErrUnknownTransform is returned when a mapping names an unsupported transform.
	ErrUnknownTransform = errors.New("unknown transform")
)

// MappingSet holds at most one mapping per source column, in insertion order.
type MappingSet struct {
	items []FieldMapping
}

// NewMappingSet builds a set from mappings. Later entries replace earlier
// ones for the same source column.
func NewMappingSet(mappings []FieldMapping) *MappingSet {
	m := &MappingSet{}
	for _, fm := range mappings {
		m.upsert(fm)
	}
	return m
}

// Update upserts the mapping for source. An empty transform means none.
func (m *MappingSet) Update(source, target string, transform Transform) error {
	if _, ok := LookupTargetField(target); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTarget, target)
	}
	if transform == "" {
		transform = TransformNone
	}
	if !ValidTransform(transform) {
		return fmt.Errorf("%w: %q", ErrUnknownTransform, transform)
	}
	m.upsert(FieldMapping{SourceField: source, TargetField: target, Transform: transform})
	return nil
}

func (m *MappingSet) upsert(fm FieldMapping) {
	for i := range m.items {
		if m.items[i].SourceField == fm.SourceField {
			m.items[i] = fm
			return
		}
	}
	m.items = append(m.items, fm)
}

// Remove deletes the mapping for source. It reports whether one existed.
func (m *MappingSet) Remove(source string) bool {
	for i := range m.items {
		if m.items[i].SourceField == source {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return true
		}
	}
	return false
}

// Get returns the mapping for source.
func (m *MappingSet) Get(source string) (FieldMapping, bool) {
	for _, fm := range m.items {
		if fm.SourceField == source {
			return fm, true
		}
	}
	return FieldMapping{}, false
}

// IsMapped reports whether any mapping targets the given field.
func (m *MappingSet) IsMapped(target string) bool {
	for _, fm := range m.items {
		if fm.TargetField == target {
			return true
		}
	}
	return false
}

// All returns a copy of the mappings in insertion order.
func (m *MappingSet) All() []FieldMapping {
	out := make([]FieldMapping, len(m.items))
	copy(out, m.items)
	return out
}

// Len returns the number of mappings.
func (m *MappingSet) Len() int { return len(m.items) }

// MissingRequired lists required target fields that no mapping populates.
func MissingRequired(mappings []FieldMapping) []string {
	mapped := make(map[string]bool, len(mappings))
	for _, fm := range mappings {
		mapped[fm.TargetField] = true
	}

	var missing []string
	for _, f := range TargetSchema {
		if f.Required && !mapped[f.Name] {
			missing = append(missing, f.Name)
		}
	}
	return missing
}

// BuildRecord applies mappings and their transforms to one row.
// When several columns map to the same field, a later non-null value wins.
func BuildRecord(row Row, mappings []FieldMapping) Record {
	rec := make(Record, len(mappings))
	for _, fm := range mappings {
		raw, _ := row.Get(fm.SourceField)
		v := ApplyTransform(raw, fm.Transform)
		if existing, ok := rec[fm.TargetField]; ok && v.IsNull() && !existing.IsNull() {
			continue
		}
		rec[fm.TargetField] = v
	}
	return rec
}
