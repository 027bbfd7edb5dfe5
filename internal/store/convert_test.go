package store

import (
	"fmt"
	"testing"

	"github.com/JonMunkholm/ArticleImport/internal/core"
)

// ----------------------------------------------------------------------------
// toPgNumeric Tests
// ----------------------------------------------------------------------------

func TestToPgNumeric(t *testing.T) {
	tests := []struct {
		name      string
		input     core.Scalar
		wantValid bool
		wantValue float64
	}{
		{"number scalar", core.NumberValue(150.5), true, 150.5},
		{"plain string", core.StringValue("123.45"), true, 123.45},
		{"currency suffix", core.StringValue("150.50 INR"), true, 150.5},
		{"thousands separators", core.StringValue("$1,234.56"), true, 1234.56},
		{"negative", core.StringValue("-7"), true, -7},
		{"null", core.NullValue(), false, 0},
		{"empty string", core.StringValue(""), false, 0},
		{"no digits", core.StringValue("abc"), false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toPgNumeric(tt.input)
			if got.Valid != tt.wantValid {
				t.Fatalf("Valid = %v, want %v", got.Valid, tt.wantValid)
			}
			if !tt.wantValid {
				return
			}
			f, err := got.Float64Value()
			if err != nil {
				t.Fatalf("Float64Value failed: %v", err)
			}
			if f.Float64 != tt.wantValue {
				t.Errorf("value = %v, want %v", f.Float64, tt.wantValue)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// toPgInt4 / toPgBool / toPgText Tests
// ----------------------------------------------------------------------------

func TestToPgInt4(t *testing.T) {
	tests := []struct {
		name      string
		input     core.Scalar
		wantValid bool
		want      int32
	}{
		{"integer", core.NumberValue(12), true, 12},
		{"fraction truncates", core.StringValue("12.9"), true, 12},
		{"too large", core.NumberValue(1e12), false, 0},
		{"null", core.NullValue(), false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toPgInt4(tt.input)
			if got.Valid != tt.wantValid || got.Int32 != tt.want {
				t.Errorf("toPgInt4 = {%d %v}, want {%d %v}", got.Int32, got.Valid, tt.want, tt.wantValid)
			}
		})
	}
}

func TestToPgBool(t *testing.T) {
	tests := []struct {
		name      string
		input     core.Scalar
		wantValid bool
		want      bool
	}{
		{"bool true", core.BoolValue(true), true, true},
		{"bool false", core.BoolValue(false), true, false},
		{"yes string", core.StringValue("Yes"), true, true},
		{"other string", core.StringValue("maybe"), true, false},
		{"empty string", core.StringValue(""), false, false},
		{"null", core.NullValue(), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toPgBool(tt.input)
			if got.Valid != tt.wantValid || got.Bool != tt.want {
				t.Errorf("toPgBool = {%v %v}, want {%v %v}", got.Bool, got.Valid, tt.want, tt.wantValid)
			}
		})
	}
}

func TestToPgText(t *testing.T) {
	if got := toPgText(core.StringValue("  Widget ")); !got.Valid || got.String != "Widget" {
		t.Errorf("toPgText trimmed = %+v", got)
	}
	if got := toPgText(core.StringValue("   ")); got.Valid {
		t.Errorf("whitespace should be invalid, got %+v", got)
	}
	if got := toPgText(core.NumberValue(42)); !got.Valid || got.String != "42" {
		t.Errorf("number should render as text, got %+v", got)
	}
}

// ----------------------------------------------------------------------------
// UUID Tests
// ----------------------------------------------------------------------------

func TestUUIDRoundTrip(t *testing.T) {
	const id = "3f2504e0-4f89-41d3-9a0c-0305e82c3301"

	u := toPgUUID(id)
	if !u.Valid {
		t.Fatal("expected valid uuid")
	}
	if got := pgUUIDToString(u); got != id {
		t.Errorf("round trip = %q, want %q", got, id)
	}

	if toPgUUID("").Valid {
		t.Error("empty string should be invalid")
	}
	if toPgUUID("not-a-uuid").Valid {
		t.Error("garbage should be invalid")
	}
}

func TestColumnValue(t *testing.T) {
	tests := []struct {
		field    string
		input    core.Scalar
		wantType string
	}{
		{core.FieldName, core.StringValue("Widget"), "pgtype.Text"},
		{core.FieldBaseRate, core.NumberValue(10), "pgtype.Numeric"},
		{core.FieldTaxRate, core.NumberValue(5), "pgtype.Numeric"},
		{core.FieldMinQuantity, core.NumberValue(1), "pgtype.Int4"},
		{core.FieldIsFragile, core.BoolValue(true), "pgtype.Bool"},
		{core.FieldBranchID, core.StringValue("3f2504e0-4f89-41d3-9a0c-0305e82c3301"), "pgtype.UUID"},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			got := columnValue(tt.field, tt.input)
			if name := fmt.Sprintf("%T", got); name != tt.wantType {
				t.Errorf("columnValue(%s) type = %s, want %s", tt.field, name, tt.wantType)
			}
		})
	}
}
