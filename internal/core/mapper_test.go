package core

import (
	"errors"
	"testing"
)

// =============================================================================
// AutoMap Tests
// =============================================================================

func TestAutoMap(t *testing.T) {
	tests := []struct {
		header        string
		wantTarget    string
		wantTransform Transform
	}{
		{"Article Name", FieldName, TransformNone},
		{"Item Description", FieldDescription, TransformNone},
		{"Base Rate (INR)", FieldBaseRate, TransformNumber},
		{"Price", FieldBaseRate, TransformNumber},
		{"HSN Code", FieldHSNCode, TransformNone},
		{"GST %", FieldTaxRate, TransformNumber},
		{"UOM", FieldUnitOfMeasure, TransformNone},
		{"Min Qty", FieldMinQuantity, TransformNumber},
		{"Fragile?", FieldIsFragile, TransformBoolean},
		{"Special Handling", FieldRequiresSpecialHandling, TransformBoolean},
		{"Remarks", FieldNotes, TransformNone},
		// Rule order decides: "taxrate" contains "rate" before "tax" is tried.
		{"Tax Rate", FieldBaseRate, TransformNumber},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			res := AutoMap([]string{tt.header})
			if len(res.Mappings) != 1 {
				t.Fatalf("AutoMap(%q) produced %d mappings, want 1", tt.header, len(res.Mappings))
			}
			m := res.Mappings[0]
			if m.SourceField != tt.header {
				t.Errorf("SourceField = %q, want %q", m.SourceField, tt.header)
			}
			if m.TargetField != tt.wantTarget {
				t.Errorf("TargetField = %q, want %q", m.TargetField, tt.wantTarget)
			}
			if m.Transform != tt.wantTransform {
				t.Errorf("Transform = %q, want %q", m.Transform, tt.wantTransform)
			}
		})
	}
}

func TestAutoMap_Unmapped(t *testing.T) {
	res := AutoMap([]string{"Article Name", "Colour", "!!!"})

	if len(res.Mappings) != 1 {
		t.Fatalf("len(Mappings) = %d, want 1", len(res.Mappings))
	}
	if len(res.Unmapped) != 2 || res.Unmapped[0] != "Colour" || res.Unmapped[1] != "!!!" {
		t.Errorf("Unmapped = %v, want [Colour !!!]", res.Unmapped)
	}
}

func TestAutoMap_ReportsAmbiguity(t *testing.T) {
	res := AutoMap([]string{"Tax Rate", "Article Name"})

	if len(res.Ambiguities) != 1 {
		t.Fatalf("Ambiguities = %v, want 1 entry", res.Ambiguities)
	}
	a := res.Ambiguities[0]
	if a.Header != "Tax Rate" {
		t.Errorf("Header = %q, want Tax Rate", a.Header)
	}
	if len(a.Candidates) != 2 || a.Candidates[0] != FieldBaseRate || a.Candidates[1] != FieldTaxRate {
		t.Errorf("Candidates = %v, want [base_rate tax_rate]", a.Candidates)
	}
}

func TestAutoMap_TemplateHeadersRoundTrip(t *testing.T) {
	res := AutoMap(TemplateHeaders())

	if len(res.Unmapped) != 0 {
		t.Errorf("Unmapped = %v, want none", res.Unmapped)
	}
	if len(res.Mappings) != len(TargetSchema) {
		t.Fatalf("len(Mappings) = %d, want %d", len(res.Mappings), len(TargetSchema))
	}
	for i, f := range TargetSchema {
		if res.Mappings[i].TargetField != f.Name {
			t.Errorf("label %q mapped to %q, want %q", f.Label, res.Mappings[i].TargetField, f.Name)
		}
	}
}

// =============================================================================
// MappingSet Tests
// =============================================================================

func TestMappingSet_Update(t *testing.T) {
	m := NewMappingSet([]FieldMapping{
		{SourceField: "Item", TargetField: FieldName, Transform: TransformNone},
		{SourceField: "Cost", TargetField: FieldBaseRate, Transform: TransformNumber},
	})

	if err := m.Update("Item", FieldName, TransformUppercase); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if m.Len() != 2 {
		t.Errorf("Len = %d, want 2 (update replaces)", m.Len())
	}
	if got, _ := m.Get("Item"); got.Transform != TransformUppercase {
		t.Errorf("Transform = %q, want uppercase", got.Transform)
	}

	if err := m.Update("Note", FieldNotes, ""); err != nil {
		t.Fatalf("Update with empty transform failed: %v", err)
	}
	if got, _ := m.Get("Note"); got.Transform != TransformNone {
		t.Errorf("empty transform stored as %q, want none", got.Transform)
	}

	all := m.All()
	if all[0].SourceField != "Item" || all[2].SourceField != "Note" {
		t.Errorf("All() order = %v, want insertion order", all)
	}
}

func TestMappingSet_UpdateErrors(t *testing.T) {
	m := NewMappingSet(nil)

	err := m.Update("Item", "colour", TransformNone)
	if !errors.Is(err, ErrUnknownTarget) {
		t.Errorf("unknown target: err = %v, want ErrUnknownTarget", err)
	}

	err = m.Update("Item", FieldName, "titlecase")
	if !errors.Is(err, ErrUnknownTransform) {
		t.Errorf("unknown transform: err = %v, want ErrUnknownTransform", err)
	}

	if m.Len() != 0 {
		t.Errorf("Len = %d after failed updates, want 0", m.Len())
	}
}

func TestMappingSet_Remove(t *testing.T) {
	m := NewMappingSet([]FieldMapping{{SourceField: "Item", TargetField: FieldName, Transform: TransformNone}})

	if !m.Remove("Item") {
		t.Error("Remove(Item) = false, want true")
	}
	if m.Remove("Item") {
		t.Error("second Remove(Item) = true, want false")
	}
	if m.IsMapped(FieldName) {
		t.Error("name still mapped after Remove")
	}
}

func TestMappingSet_AllIsCopy(t *testing.T) {
	m := NewMappingSet([]FieldMapping{{SourceField: "Item", TargetField: FieldName, Transform: TransformNone}})
	all := m.All()
	all[0].TargetField = FieldNotes

	if got, _ := m.Get("Item"); got.TargetField != FieldName {
		t.Errorf("mutating All() changed the set: %q", got.TargetField)
	}
}

func TestMissingRequired(t *testing.T) {
	tests := []struct {
		name     string
		mappings []FieldMapping
		want     []string
	}{
		{"nothing mapped", nil, []string{FieldName, FieldBaseRate}},
		{"name only", []FieldMapping{{SourceField: "n", TargetField: FieldName}}, []string{FieldBaseRate}},
		{"both", []FieldMapping{
			{SourceField: "n", TargetField: FieldName},
			{SourceField: "r", TargetField: FieldBaseRate},
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MissingRequired(tt.mappings)
			if len(got) != len(tt.want) {
				t.Fatalf("MissingRequired = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("MissingRequired[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestBuildRecord(t *testing.T) {
	row := Row{
		"Item":    StringValue("widget"),
		"Cost":    StringValue("150.50 INR"),
		"Fragile": StringValue("Yes"),
		"Alt":     StringValue(""),
	}
	mappings := []FieldMapping{
		{SourceField: "Item", TargetField: FieldName, Transform: TransformUppercase},
		{SourceField: "Cost", TargetField: FieldBaseRate, Transform: TransformNumber},
		{SourceField: "Fragile", TargetField: FieldIsFragile, Transform: TransformBoolean},
		{SourceField: "Alt", TargetField: FieldName, Transform: TransformNone},
		{SourceField: "Missing", TargetField: FieldNotes, Transform: TransformNone},
	}

	rec := BuildRecord(row, mappings)

	if rec.Name() != "WIDGET" {
		t.Errorf("name = %q, want WIDGET (blank later column does not overwrite)", rec.Name())
	}
	if v := rec[FieldBaseRate]; v.Kind != ScalarNumber || v.Num != 150.5 {
		t.Errorf("base_rate = %+v, want 150.5", v)
	}
	if v := rec[FieldIsFragile]; v.Kind != ScalarBool || !v.Bool {
		t.Errorf("is_fragile = %+v, want true", v)
	}
	if v, ok := rec[FieldNotes]; !ok || !v.IsNull() {
		t.Errorf("notes = %+v (present %v), want null", v, ok)
	}
}
