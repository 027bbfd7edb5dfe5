package core

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// ScalarKind tags the variant held by a Scalar.
type ScalarKind int

const (
	ScalarNull ScalarKind = iota
	ScalarString
	ScalarNumber
	ScalarBool
)

// Scalar is a single cell value read from an uploaded file or produced by a transform.
// Only the field matching Kind is meaningful.
type Scalar struct {
	Kind ScalarKind
	Str  string
	Num  float64
	Bool bool
}

// NullValue returns the null scalar.
func NullValue() Scalar { return Scalar{Kind: ScalarNull} }

// StringValue wraps s as a string scalar.
func StringValue(s string) Scalar { return Scalar{Kind: ScalarString, Str: s} }

// NumberValue wraps f as a number scalar.
func NumberValue(f float64) Scalar { return Scalar{Kind: ScalarNumber, Num: f} }

// BoolValue wraps b as a boolean scalar.
func BoolValue(b bool) Scalar { return Scalar{Kind: ScalarBool, Bool: b} }

// IsNull reports whether the scalar holds no value.
func (s Scalar) IsNull() bool { return s.Kind == ScalarNull }

// IsBlank reports whether the scalar is null or the empty string.
func (s Scalar) IsBlank() bool {
	return s.Kind == ScalarNull || (s.Kind == ScalarString && s.Str == "")
}

// Text returns the value rendered as text. Null renders as "".
func (s Scalar) Text() string {
	switch s.Kind {
	case ScalarString:
		return s.Str
	case ScalarNumber:
		return strconv.FormatFloat(s.Num, 'f', -1, 64)
	case ScalarBool:
		return strconv.FormatBool(s.Bool)
	default:
		return ""
	}
}

// Float returns the numeric value and whether the scalar is a finite number.
func (s Scalar) Float() (float64, bool) {
	if s.Kind != ScalarNumber || math.IsNaN(s.Num) || math.IsInf(s.Num, 0) {
		return 0, false
	}
	return s.Num, true
}

// MarshalJSON encodes the scalar as its natural JSON type.
func (s Scalar) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case ScalarString:
		return json.Marshal(s.Str)
	case ScalarNumber:
		if _, ok := s.Float(); !ok {
			return []byte("null"), nil
		}
		return json.Marshal(s.Num)
	case ScalarBool:
		return json.Marshal(s.Bool)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes a JSON string, number, boolean or null.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*s = NullValue()
	case string:
		*s = StringValue(t)
	case float64:
		*s = NumberValue(t)
	case bool:
		*s = BoolValue(t)
	default:
		return fmt.Errorf("scalar: unsupported JSON value %s", data)
	}
	return nil
}

// Row maps column names to cell values. A missing key means the cell was absent.
type Row map[string]Scalar

// Get returns the cell for column, or null and false when absent.
func (r Row) Get(column string) (Scalar, bool) {
	v, ok := r[column]
	if !ok {
		return NullValue(), false
	}
	return v, true
}

// SourceFormat identifies the kind of file a dataset was parsed from.
type SourceFormat string

const (
	FormatCSV         SourceFormat = "csv"
	FormatSpreadsheet SourceFormat = "spreadsheet"
)

// ParsedDataset is the immutable result of parsing one uploaded file.
// Row indices are stable identifiers for every later stage.
type ParsedDataset struct {
	Headers      []string     `json:"headers"`
	Rows         []Row        `json:"rows"`
	SourceFormat SourceFormat `json:"sourceFormat"`
	FileName     string       `json:"fileName"`
}

// Transform names a value conversion applied to a mapped cell.
type Transform string

const (
	TransformNone      Transform = "none"
	TransformUppercase Transform = "uppercase"
	TransformLowercase Transform = "lowercase"
	TransformNumber    Transform = "number"
	TransformBoolean   Transform = "boolean"
	TransformDate      Transform = "date"
)

// FieldMapping associates one source column with one target field.
type FieldMapping struct {
	SourceField string    `json:"sourceField"`
	TargetField string    `json:"targetField"`
	Transform   Transform `json:"transform"`
}

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationIssue is a single problem found on a dataset row.
type ValidationIssue struct {
	Row      int      `json:"row"`
	Field    string   `json:"field"`
	Value    Scalar   `json:"value"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// ImportConfiguration controls validation and commit policy for one import.
type ImportConfiguration struct {
	SkipDuplicates     bool     `json:"skipDuplicates"`
	UpdateExisting     bool     `json:"updateExisting"`
	ValidateData       bool     `json:"validateData"`
	AutoMapping        bool     `json:"autoMapping"`
	DefaultBranchID    string   `json:"defaultBranchId"`
	DefaultTaxRate     *float64 `json:"defaultTaxRate,omitempty" validate:"omitempty,gte=0,lte=100"`
	DefaultMinQuantity *int     `json:"defaultMinQuantity,omitempty" validate:"omitempty,gte=1"`
}

// DefaultImportConfiguration returns the configuration a new session starts with.
func DefaultImportConfiguration() ImportConfiguration {
	return ImportConfiguration{
		SkipDuplicates: true,
		UpdateExisting: false,
		ValidateData:   true,
		AutoMapping:    true,
	}
}

// ImportStatistics summarizes a validation run. Always derived, never stored.
type ImportStatistics struct {
	Total      int `json:"total"`
	Valid      int `json:"valid"`
	Invalid    int `json:"invalid"`
	Duplicates int `json:"duplicates"`
	Warnings   int `json:"warnings"`
}

// Record is a candidate catalog item keyed by target field name.
type Record map[string]Scalar

// Name returns the record's name as trimmed text.
func (r Record) Name() string {
	return trimmedText(r[FieldName])
}

// ExistingRecord is the part of a stored catalog item used for duplicate lookup.
type ExistingRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	BranchID string `json:"branchId,omitempty"`
}

// Branch is an entry of the context directory used as default import target.
type Branch struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ImportRun is the audit entry written after each commit run.
type ImportRun struct {
	ID           string        `json:"id"`
	FileName     string        `json:"fileName"`
	BranchID     string        `json:"branchId"`
	TotalRows    int           `json:"totalRows"`
	SuccessCount int           `json:"successCount"`
	SkippedCount int           `json:"skippedCount"`
	UpdatedCount int           `json:"updatedCount"`
	FailedCount  int           `json:"failedCount"`
	Outcome      CommitOutcome `json:"outcome"`
	Duration     time.Duration `json:"durationNs"`
	IPAddress    string        `json:"ipAddress,omitempty"`
	UserAgent    string        `json:"userAgent,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// RecordStore persists catalog items.
type RecordStore interface {
	ListRecords(ctx context.Context) ([]ExistingRecord, error)
	CreateRecord(ctx context.Context, rec Record) (ExistingRecord, error)
	UpdateRecord(ctx context.Context, id string, patch Record) (ExistingRecord, error)
	RecordImportRun(ctx context.Context, run ImportRun) error
}

// ImportHistory lists past commit runs, newest first.
type ImportHistory interface {
	ListImportRuns(ctx context.Context, limit int) ([]ImportRun, error)
}

// BranchDirectory lists the contexts an import can target.
type BranchDirectory interface {
	ListBranches(ctx context.Context) ([]Branch, error)
}

// Notifier receives user-facing notifications. Calls are fire-and-forget.
type Notifier interface {
	Success(ctx context.Context, title, message string)
	Error(ctx context.Context, title, message string)
	Info(ctx context.Context, title, message string)
}
