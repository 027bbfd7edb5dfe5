package core

// commit.go implements the batch committer.
//
// Rows are committed strictly one at a time: the next create call is not
// issued until the previous one returns. Progress therefore advances by
// exactly one row per step and every outcome is attributable to a single row.
// Duplicate names are checked against the snapshot of existing records taken
// before the batch started, plus the names created earlier in the same batch.
//
// A failed row never aborts the batch. Its index is recorded and the loop
// moves on. The context is checked between rows so a commit can be cancelled.

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMissingBranch is returned when no default branch is configured.
	ErrMissingBranch = errors.New("default branch is required")

	// ErrCommitCancelled is returned when the context ends mid-batch.
	// The accompanying result holds the rows processed so far.
	ErrCommitCancelled = errors.New("import cancelled")
)

// CommitOutcome classifies a finished commit run.
type CommitOutcome string

const (
	OutcomeComplete CommitOutcome = "complete"
	OutcomePartial  CommitOutcome = "partial"
	OutcomeFailed   CommitOutcome = "failed"
	OutcomeNothing  CommitOutcome = "nothing"
)

// RowFailure explains why a row could not be committed.
type RowFailure struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// CommitResult is the outcome of one commit run.
type CommitResult struct {
	SuccessCount     int           `json:"successCount"`
	UpdatedCount     int           `json:"updatedCount"`
	SkippedCount     int           `json:"skippedCount"`
	FailedRowIndices []int         `json:"failedRowIndices"`
	Failures         []RowFailure  `json:"failures,omitempty"`
	Attempted        int           `json:"attempted"`
	Total            int           `json:"total"`
	Cancelled        bool          `json:"cancelled"`
	Duration         time.Duration `json:"duration"`
}

// Outcome distinguishes fully imported, partial and failed runs.
func (r CommitResult) Outcome() CommitOutcome {
	failed := len(r.FailedRowIndices)
	written := r.SuccessCount + r.UpdatedCount
	switch {
	case failed == 0 && written == 0:
		return OutcomeNothing
	case failed == 0 && !r.Cancelled:
		return OutcomeComplete
	case written == 0:
		return OutcomeFailed
	default:
		return OutcomePartial
	}
}

// CommitProgress is emitted after every attempted row.
type CommitProgress struct {
	Attempted int `json:"attempted"`
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Fraction returns attempted/total in [0,1].
func (p CommitProgress) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Attempted) / float64(p.Total)
}

// Percent returns the progress as a percentage (0-100).
func (p CommitProgress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	return (p.Attempted * 100) / p.Total
}

// ProgressFunc receives commit progress. It is called on the commit goroutine.
type ProgressFunc func(CommitProgress)

// CommitRequest is the immutable input of a commit run.
type CommitRequest struct {
	Dataset  *ParsedDataset
	Rows     []int
	Mappings []FieldMapping
	Existing []ExistingRecord
	Config   ImportConfiguration
}

// Commit writes the requested rows through store, one at a time.
// The returned result is non-nil whenever the loop started, including on
// cancellation.
func Commit(ctx context.Context, req CommitRequest, store RecordStore, progress ProgressFunc) (*CommitResult, error) {
	if req.Config.DefaultBranchID == "" {
		return nil, ErrMissingBranch
	}
	if req.Dataset == nil {
		return nil, ErrEmptySelection
	}

	start := time.Now()
	existing := indexByName(req.Existing)
	createdInBatch := make(map[string]bool)

	result := &CommitResult{
		FailedRowIndices: []int{},
		Total:            len(req.Rows),
	}
	emit := func() {
		if progress != nil {
			progress(CommitProgress{
				Attempted: result.Attempted,
				Total:     result.Total,
				Succeeded: result.SuccessCount,
				Updated:   result.UpdatedCount,
				Skipped:   result.SkippedCount,
				Failed:    len(result.FailedRowIndices),
			})
		}
	}
	fail := func(idx int, err error) {
		result.FailedRowIndices = append(result.FailedRowIndices, idx)
		result.Failures = append(result.Failures, RowFailure{Row: idx, Reason: err.Error()})
	}

	for _, idx := range req.Rows {
		if err := ctx.Err(); err != nil {
			result.Cancelled = true
			result.Duration = time.Since(start)
			return result, fmt.Errorf("%w after %d of %d rows: %v", ErrCommitCancelled, result.Attempted, result.Total, err)
		}

		if idx < 0 || idx >= len(req.Dataset.Rows) {
			fail(idx, fmt.Errorf("row %d out of range", idx))
			result.Attempted++
			emit()
			continue
		}

		rec := BuildRecord(req.Dataset.Rows[idx], req.Mappings)
		applyDefaults(rec, req.Config)
		key := nameKey(rec.Name())

		match, isDup := existing[key]
		switch {
		case key != "" && isDup && req.Config.UpdateExisting:
			if _, err := store.UpdateRecord(ctx, match.ID, rec); err != nil {
				fail(idx, fmt.Errorf("update %q: %w", rec.Name(), err))
			} else {
				result.UpdatedCount++
			}
		case key != "" && req.Config.SkipDuplicates && (isDup || createdInBatch[key]):
			result.SkippedCount++
		default:
			if _, err := store.CreateRecord(ctx, rec); err != nil {
				fail(idx, fmt.Errorf("create %q: %w", rec.Name(), err))
			} else {
				result.SuccessCount++
				if key != "" {
					createdInBatch[key] = true
				}
			}
		}

		result.Attempted++
		emit()
	}

	result.Duration = time.Since(start)
	return result, nil
}

// applyDefaults fills configured defaults for fields the mapping left empty
// and stamps the target branch.
func applyDefaults(rec Record, cfg ImportConfiguration) {
	if cfg.DefaultTaxRate != nil && rec[FieldTaxRate].IsNull() {
		rec[FieldTaxRate] = NumberValue(*cfg.DefaultTaxRate)
	}
	if cfg.DefaultMinQuantity != nil && rec[FieldMinQuantity].IsNull() {
		rec[FieldMinQuantity] = NumberValue(float64(*cfg.DefaultMinQuantity))
	}
	rec[FieldBranchID] = StringValue(cfg.DefaultBranchID)
}
