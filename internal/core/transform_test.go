package core

import (
	"math"
	"testing"
	"time"
)

func TestApplyTransform_BlankIsNull(t *testing.T) {
	transforms := []Transform{
		TransformNone, TransformUppercase, TransformLowercase,
		TransformNumber, TransformBoolean, TransformDate,
	}
	for _, tr := range transforms {
		t.Run(string(tr), func(t *testing.T) {
			if got := ApplyTransform(NullValue(), tr); !got.IsNull() {
				t.Errorf("ApplyTransform(null, %s) = %+v, want null", tr, got)
			}
			if got := ApplyTransform(StringValue(""), tr); !got.IsNull() {
				t.Errorf("ApplyTransform(\"\", %s) = %+v, want null", tr, got)
			}
		})
	}
}

func TestApplyTransform_Number(t *testing.T) {
	tests := []struct {
		name   string
		in     Scalar
		want   float64
		isNull bool
	}{
		{"currency suffix", StringValue("150.50 INR"), 150.5, false},
		{"thousands separator", StringValue("1,234.5"), 1234.5, false},
		{"currency prefix", StringValue("Rs. 99"), 0.99, false},
		{"negative", StringValue("-12"), -12, false},
		{"number passthrough", NumberValue(42), 42, false},
		{"leading decimal", StringValue(".5"), 0.5, false},
		{"trailing garbage after number", StringValue("12-5"), 12, false},
		{"letters only", StringValue("abc"), 0, true},
		{"dash only", StringValue("-"), 0, true},
		{"infinite number", NumberValue(math.Inf(1)), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyTransform(tt.in, TransformNumber)
			if tt.isNull {
				if !got.IsNull() {
					t.Errorf("got %+v, want null", got)
				}
				return
			}
			if got.Kind != ScalarNumber || got.Num != tt.want {
				t.Errorf("got %+v, want number %v", got, tt.want)
			}
		})
	}
}

func TestApplyTransform_Boolean(t *testing.T) {
	tests := []struct {
		in   Scalar
		want bool
	}{
		{StringValue("yes"), true},
		{StringValue("YES"), true},
		{StringValue("True"), true},
		{StringValue("1"), true},
		{NumberValue(1), true},
		{BoolValue(true), true},
		{StringValue(" yes "), true},
		{StringValue("no"), false},
		{StringValue("y"), false},
		{StringValue("0"), false},
		{NumberValue(2), false},
		{StringValue("maybe"), false},
	}

	for _, tt := range tests {
		t.Run(tt.in.Text(), func(t *testing.T) {
			got := ApplyTransform(tt.in, TransformBoolean)
			if got.Kind != ScalarBool || got.Bool != tt.want {
				t.Errorf("ApplyTransform(%q, boolean) = %+v, want %v", tt.in.Text(), got, tt.want)
			}
		})
	}
}

func TestApplyTransform_Case(t *testing.T) {
	if got := ApplyTransform(StringValue("Widget"), TransformUppercase); got.Str != "WIDGET" {
		t.Errorf("uppercase = %q, want WIDGET", got.Str)
	}
	if got := ApplyTransform(StringValue("Widget"), TransformLowercase); got.Str != "widget" {
		t.Errorf("lowercase = %q, want widget", got.Str)
	}
	if got := ApplyTransform(NumberValue(12.5), TransformUppercase); got.Kind != ScalarString || got.Str != "12.5" {
		t.Errorf("uppercase of number = %+v, want string 12.5", got)
	}
	if got := ApplyTransform(StringValue("Widget"), TransformNone); got.Str != "Widget" {
		t.Errorf("none = %q, want Widget", got.Str)
	}
}

func TestApplyTransform_Date(t *testing.T) {
	tests := []struct {
		name string
		in   Scalar
		want string
	}{
		{"iso date", StringValue("2024-03-15"), "2024-03-15T00:00:00.000Z"},
		{"rfc3339 with offset", StringValue("2024-03-15T10:30:00+05:30"), "2024-03-15T05:00:00.000Z"},
		{"us slash", StringValue("3/15/2024"), "2024-03-15T00:00:00.000Z"},
		{"month name", StringValue("Mar 15, 2024"), "2024-03-15T00:00:00.000Z"},
		{"epoch millis", NumberValue(0), "1970-01-01T00:00:00.000Z"},
		{"two digit year", StringValue("3/15/24"), "2024-03-15T00:00:00.000Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyTransform(tt.in, TransformDate)
			if got.Kind != ScalarString || got.Str != tt.want {
				t.Errorf("got %+v, want %q", got, tt.want)
			}
		})
	}

	nulls := []struct {
		name string
		in   Scalar
	}{
		{"unparseable", StringValue("not a date")},
		{"epoch overflow", NumberValue(1e20)},
		{"epoch past range", NumberValue(9e15)},
		{"negative epoch past range", NumberValue(-9e15)},
	}
	for _, tt := range nulls {
		if got := ApplyTransform(tt.in, TransformDate); !got.IsNull() {
			t.Errorf("%s: got %+v, want null", tt.name, got)
		}
	}
}

func TestParseDate_TwoDigitYearPivot(t *testing.T) {
	farFuture := (time.Now().Year() + TwoDigitYearPivot + 5) % 100
	in := "1/1/" + twoDigits(farFuture)

	got, ok := parseDate(in)
	if !ok {
		t.Fatalf("parseDate(%q) failed", in)
	}
	if got.Year() > time.Now().Year()+TwoDigitYearPivot {
		t.Errorf("parseDate(%q).Year() = %d, want previous century", in, got.Year())
	}
}

func twoDigits(n int) string {
	return string([]byte{byte('0' + n/10), byte('0' + n%10)})
}

func TestValidTransform(t *testing.T) {
	if !ValidTransform(TransformDate) {
		t.Error("date should be valid")
	}
	if ValidTransform("titlecase") {
		t.Error("titlecase should be invalid")
	}
}
