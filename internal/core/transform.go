package core

// transform.go provides the pure value converters applied to mapped cells.
//
// Every converter treats null and the empty string as "no value" and returns
// null for them. Otherwise the rules are deliberately forgiving, matching how
// people type catalog data into spreadsheets:
//   - number keeps only digits, '.' and '-' ("150.50 INR" -> 150.5)
//   - boolean is true only for yes/true/1; anything else is false
//   - date accepts ISO, US and EU layouts and emits an RFC 3339 UTC timestamp

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would land more than this many years in the future
// are assumed to be in the previous century.
const TwoDigitYearPivot = 20

// isoTimestampLayout matches the timestamp format emitted for date transforms.
const isoTimestampLayout = "2006-01-02T15:04:05.000Z"

var (
	numberStrip  = regexp.MustCompile(`[^0-9.\-]`)
	numberPrefix = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)`)
)

var (
	timestampLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "January 2, 2006", "2 Jan 2006", "02 Jan 2006",
		"20060102",
	}
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "01-02-06", "1.2.06", "01.02.06",
	}
)

var truthyValues = map[string]bool{"yes": true, "true": true, "1": true}

// ApplyTransform converts v according to t. It never fails: values that cannot
// be converted become null.
func ApplyTransform(v Scalar, t Transform) Scalar {
	if v.IsBlank() {
		return NullValue()
	}

	switch t {
	case TransformUppercase:
		return StringValue(strings.ToUpper(v.Text()))
	case TransformLowercase:
		return StringValue(strings.ToLower(v.Text()))
	case TransformNumber:
		return toNumber(v)
	case TransformBoolean:
		return BoolValue(truthyValues[strings.ToLower(strings.TrimSpace(v.Text()))])
	case TransformDate:
		return toDate(v)
	default:
		return v
	}
}

// Transforms lists every transform in display order.
var Transforms = []Transform{
	TransformNone, TransformUppercase, TransformLowercase,
	TransformNumber, TransformBoolean, TransformDate,
}

// ValidTransform reports whether t names a known transform.
func ValidTransform(t Transform) bool {
	for _, known := range Transforms {
		if t == known {
			return true
		}
	}
	return false
}

func toNumber(v Scalar) Scalar {
	if f, ok := v.Float(); ok {
		return NumberValue(f)
	}

	cleaned := numberStrip.ReplaceAllString(v.Text(), "")
	prefix := numberPrefix.FindString(cleaned)
	if prefix == "" {
		return NullValue()
	}

	f, err := strconv.ParseFloat(prefix, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return NullValue()
	}
	return NumberValue(f)
}

// maxEpochMillis bounds numeric dates to ±100,000,000 days around the epoch.
const maxEpochMillis = 8.64e15

func toDate(v Scalar) Scalar {
	// Numbers are epoch milliseconds.
	if f, ok := v.Float(); ok {
		if math.Abs(f) > maxEpochMillis {
			return NullValue()
		}
		return StringValue(time.UnixMilli(int64(f)).UTC().Format(isoTimestampLayout))
	}

	t, ok := parseDate(strings.TrimSpace(v.Text()))
	if !ok {
		return NullValue()
	}
	return StringValue(t.UTC().Format(isoTimestampLayout))
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	// Try 4-digit year layouts first (unambiguous)
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	return time.Time{}, false
}

func trimmedText(v Scalar) string {
	return strings.TrimSpace(v.Text())
}
