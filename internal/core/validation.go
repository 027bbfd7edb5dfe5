package core

// validation.go provides row-level validation of a mapped dataset.
//
// Each row is turned into a candidate Record with BuildRecord and checked
// against the rules below. Issues carry a severity: errors block a row from
// being imported, warnings are advisory.
//
//	name          required; duplicate of an existing record -> warning when
//	              duplicates are skipped, error otherwise
//	base_rate     required number, not negative
//	hsn_code      optional, 4-8 digits (warning)
//	tax_rate      optional, 0-100 (error)
//	min_quantity  optional, positive integer (warning)
//
// Validation is a pure function of its inputs: the same dataset, mappings,
// existing records and configuration always yield the same issue list.

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// duplicatePrefix starts every message that denotes a duplicate name.
const duplicatePrefix = "Duplicate"

var hsnPattern = regexp.MustCompile(`^\d{4,8}$`)

// IsDuplicate reports whether the issue is a duplicate-name issue.
func (v ValidationIssue) IsDuplicate() bool {
	return strings.HasPrefix(v.Message, duplicatePrefix)
}

// Validate checks every row of dataset and returns the issues in row order.
// It returns nil when cfg.ValidateData is false.
func Validate(dataset *ParsedDataset, mappings []FieldMapping, existing []ExistingRecord, cfg ImportConfiguration) []ValidationIssue {
	if dataset == nil || !cfg.ValidateData {
		return nil
	}

	v := &rowValidator{
		cfg:      cfg,
		existing: indexByName(existing),
		seen:     make(map[string]int),
	}

	var issues []ValidationIssue
	for i, row := range dataset.Rows {
		rec := BuildRecord(row, mappings)
		issues = append(issues, v.validateRow(i, rec)...)
	}
	return issues
}

type rowValidator struct {
	cfg      ImportConfiguration
	existing map[string]ExistingRecord
	seen     map[string]int // name key -> first row index in this file
}

func (v *rowValidator) validateRow(idx int, rec Record) []ValidationIssue {
	var issues []ValidationIssue
	add := func(field string, value Scalar, sev Severity, msg string) {
		issues = append(issues, ValidationIssue{Row: idx, Field: field, Value: value, Message: msg, Severity: sev})
	}

	// name
	name := rec[FieldName]
	if key := nameKey(trimmedText(name)); key == "" {
		add(FieldName, name, SeverityError, "Name is required")
	} else {
		if _, dup := v.existing[key]; dup && !v.cfg.UpdateExisting {
			sev := SeverityError
			if v.cfg.SkipDuplicates {
				sev = SeverityWarning
			}
			add(FieldName, name, sev, fmt.Sprintf("%s: an article named %q already exists", duplicatePrefix, trimmedText(name)))
		} else if first, again := v.seen[key]; again {
			add(FieldName, name, SeverityWarning, fmt.Sprintf("%s name in file (first seen at row %d)", duplicatePrefix, first+1))
		}
		if _, ok := v.seen[key]; !ok {
			v.seen[key] = idx
		}
	}

	// base_rate
	rate := rec[FieldBaseRate]
	if n, ok := numericValue(rate); !ok {
		add(FieldBaseRate, rate, SeverityError, "Base rate is required and must be a number")
	} else if n < 0 {
		add(FieldBaseRate, rate, SeverityError, "Base rate cannot be negative")
	}

	// hsn_code
	if hsn := rec[FieldHSNCode]; !hsn.IsBlank() && !hsnPattern.MatchString(trimmedText(hsn)) {
		add(FieldHSNCode, hsn, SeverityWarning, "HSN code should be 4 to 8 digits")
	}

	// tax_rate
	if tax := rec[FieldTaxRate]; !tax.IsBlank() {
		// Only numeric rates are range checked; labels such as "exempt" pass through.
		if n, ok := numericValue(tax); ok && (n < 0 || n > 100) {
			add(FieldTaxRate, tax, SeverityError, "Tax rate must be between 0 and 100")
		}
	}

	// min_quantity
	if qty := rec[FieldMinQuantity]; !qty.IsBlank() {
		if n, ok := numericValue(qty); !ok || n <= 0 || n != math.Trunc(n) {
			add(FieldMinQuantity, qty, SeverityWarning, "Minimum quantity should be a positive whole number")
		}
	}

	return issues
}

// numericValue coerces v with the number transform.
func numericValue(v Scalar) (float64, bool) {
	return ApplyTransform(v, TransformNumber).Float()
}

// nameKey is the case-insensitive form used for duplicate detection.
func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func indexByName(records []ExistingRecord) map[string]ExistingRecord {
	idx := make(map[string]ExistingRecord, len(records))
	for _, r := range records {
		key := nameKey(r.Name)
		if key == "" {
			continue
		}
		if _, ok := idx[key]; !ok {
			idx[key] = r
		}
	}
	return idx
}

// ComputeStatistics derives import statistics from a dataset and its issues.
func ComputeStatistics(dataset *ParsedDataset, issues []ValidationIssue) ImportStatistics {
	var stats ImportStatistics
	if dataset != nil {
		stats.Total = len(dataset.Rows)
	}

	invalidRows := make(map[int]bool)
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			invalidRows[issue.Row] = true
		}
		if issue.Severity == SeverityWarning {
			stats.Warnings++
		}
		if issue.IsDuplicate() {
			stats.Duplicates++
		}
	}

	stats.Invalid = len(invalidRows)
	stats.Valid = stats.Total - stats.Invalid
	return stats
}

// ErrorRows returns the set of row indices that have at least one error issue.
func ErrorRows(issues []ValidationIssue) map[int]bool {
	rows := make(map[int]bool)
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			rows[issue.Row] = true
		}
	}
	return rows
}
