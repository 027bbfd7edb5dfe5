package core

import (
	"errors"
	"fmt"
	"sort"
)

// PreviewFilter selects which rows a preview shows.
type PreviewFilter string

const (
	PreviewAll        PreviewFilter = "all"
	PreviewValid      PreviewFilter = "valid"
	PreviewErrors     PreviewFilter = "errors"
	PreviewWarnings   PreviewFilter = "warnings"
	PreviewDuplicates PreviewFilter = "duplicates"
)

// Preview page limits
const (
	DefaultPreviewLimit = 50
	MaxPreviewLimit     = 500
)

// ParsePreviewFilter converts s to a PreviewFilter. Empty means all.
func ParsePreviewFilter(s string) (PreviewFilter, error) {
	switch f := PreviewFilter(s); f {
	case "":
		return PreviewAll, nil
	case PreviewAll, PreviewValid, PreviewErrors, PreviewWarnings, PreviewDuplicates:
		return f, nil
	default:
		return "", fmt.Errorf("invalid preview filter %q", s)
	}
}

// RowPreview is a single dataset row with its mapped record and issues.
type RowPreview struct {
	Row       int               `json:"row"`
	Values    Row               `json:"values"`
	Record    Record            `json:"record"`
	Issues    []ValidationIssue `json:"issues,omitempty"`
	HasErrors bool              `json:"hasErrors"`
}

// PreviewResponse is one page of preview rows plus the overall statistics.
type PreviewResponse struct {
	Statistics      ImportStatistics `json:"statistics"`
	Filter          PreviewFilter    `json:"filter"`
	Matched         int              `json:"matched"`
	Offset          int              `json:"offset"`
	Limit           int              `json:"limit"`
	Rows            []RowPreview     `json:"rows"`
	MissingRequired []string         `json:"missingRequired,omitempty"`
}

// FilterRows returns the indices of rows that pass filter, in dataset order.
func FilterRows(dataset *ParsedDataset, issues []ValidationIssue, filter PreviewFilter) []int {
	if dataset == nil {
		return nil
	}

	byRow := groupIssues(issues)
	var rows []int
	for i := range dataset.Rows {
		if rowMatches(byRow[i], filter) {
			rows = append(rows, i)
		}
	}
	return rows
}

func rowMatches(issues []ValidationIssue, filter PreviewFilter) bool {
	switch filter {
	case PreviewValid:
		return !hasSeverity(issues, SeverityError)
	case PreviewErrors:
		return hasSeverity(issues, SeverityError)
	case PreviewWarnings:
		return hasSeverity(issues, SeverityWarning)
	case PreviewDuplicates:
		for _, issue := range issues {
			if issue.IsDuplicate() {
				return true
			}
		}
		return false
	default:
		return true
	}
}

func hasSeverity(issues []ValidationIssue, sev Severity) bool {
	for _, issue := range issues {
		if issue.Severity == sev {
			return true
		}
	}
	return false
}

func groupIssues(issues []ValidationIssue) map[int][]ValidationIssue {
	byRow := make(map[int][]ValidationIssue)
	for _, issue := range issues {
		byRow[issue.Row] = append(byRow[issue.Row], issue)
	}
	return byRow
}

// BuildPreview assembles a page of filtered rows.
func BuildPreview(dataset *ParsedDataset, mappings []FieldMapping, issues []ValidationIssue, filter PreviewFilter, offset, limit int) PreviewResponse {
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}
	if limit > MaxPreviewLimit {
		limit = MaxPreviewLimit
	}
	if offset < 0 {
		offset = 0
	}

	matched := FilterRows(dataset, issues, filter)
	resp := PreviewResponse{
		Statistics:      ComputeStatistics(dataset, issues),
		Filter:          filter,
		Matched:         len(matched),
		Offset:          offset,
		Limit:           limit,
		Rows:            []RowPreview{},
		MissingRequired: MissingRequired(mappings),
	}

	if offset >= len(matched) {
		return resp
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}

	byRow := groupIssues(issues)
	for _, idx := range matched[offset:end] {
		rowIssues := byRow[idx]
		resp.Rows = append(resp.Rows, RowPreview{
			Row:       idx,
			Values:    dataset.Rows[idx],
			Record:    BuildRecord(dataset.Rows[idx], mappings),
			Issues:    rowIssues,
			HasErrors: hasSeverity(rowIssues, SeverityError),
		})
	}
	return resp
}

// SelectionMode chooses which rows a commit imports.
type SelectionMode string

const (
	SelectAll      SelectionMode = "all"
	SelectSelected SelectionMode = "selected"
	SelectValid    SelectionMode = "valid"
)

// Selection describes the rows to import.
type Selection struct {
	Mode SelectionMode `json:"mode" validate:"omitempty,oneof=all selected valid"`
	Rows []int         `json:"rows,omitempty" validate:"dive,gte=0"`
}

// ErrEmptySelection is returned when a selection resolves to no rows.
var ErrEmptySelection = errors.New("no rows selected for import")

// ResolveRows turns a selection into an ascending list of row indices.
func ResolveRows(dataset *ParsedDataset, issues []ValidationIssue, sel Selection) ([]int, error) {
	if dataset == nil {
		return nil, ErrEmptySelection
	}

	var rows []int
	switch sel.Mode {
	case SelectAll, "":
		rows = make([]int, len(dataset.Rows))
		for i := range rows {
			rows[i] = i
		}
	case SelectValid:
		rows = FilterRows(dataset, issues, PreviewValid)
	case SelectSelected:
		seen := make(map[int]bool, len(sel.Rows))
		for _, idx := range sel.Rows {
			if idx < 0 || idx >= len(dataset.Rows) {
				return nil, fmt.Errorf("row %d out of range (dataset has %d rows)", idx, len(dataset.Rows))
			}
			if !seen[idx] {
				seen[idx] = true
				rows = append(rows, idx)
			}
		}
		sort.Ints(rows)
	default:
		return nil, fmt.Errorf("invalid selection mode %q", sel.Mode)
	}

	if len(rows) == 0 {
		return nil, ErrEmptySelection
	}
	return rows, nil
}
