package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSessionNotFound is returned for unknown or expired session ids.
	ErrSessionNotFound = errors.New("import session not found")

	// ErrCommitInProgress is returned when a session already has a running commit.
	ErrCommitInProgress = errors.New("import already running")

	// ErrUnresolvedErrors is returned when committed rows still carry errors
	// and duplicates are not being skipped.
	ErrUnresolvedErrors = errors.New("unresolved validation errors")

	// ErrNoCommitResult is returned when a session has never been committed.
	ErrNoCommitResult = errors.New("no commit result")

	// ErrUnknownSourceColumn is returned when a mapping names a column the file lacks.
	ErrUnknownSourceColumn = errors.New("unknown source column")

	// ErrUnknownBranch is returned when the configured branch is not in the directory.
	ErrUnknownBranch = errors.New("unknown branch")
)

// Service defaults
const (
	DefaultMaxFileSize   = 10 << 20
	DefaultCommitTimeout = 10 * time.Minute
	DefaultSessionTTL    = time.Hour
)

// ServiceOptions configures a Service. Zero values fall back to defaults.
type ServiceOptions struct {
	MaxFileSize   int64
	CommitTimeout time.Duration
	SessionTTL    time.Duration
	MaxConcurrent int
	MaxWait       time.Duration
	Defaults      *ImportConfiguration
}

// Service owns import sessions and runs commits in the background.
type Service struct {
	store    RecordStore
	branches BranchDirectory
	notifier Notifier
	limiter  *ImportLimiter

	maxFileSize   int64
	commitTimeout time.Duration
	sessionTTL    time.Duration
	defaults      ImportConfiguration

	mu       sync.RWMutex
	sessions map[string]*session
}

// session is one file moving through the import pipeline.
type session struct {
	ID        string
	CreatedAt time.Time

	mu          sync.Mutex
	dataset     *ParsedDataset
	mappings    *MappingSet
	unmapped    []string
	ambiguities []MappingAmbiguity
	config      ImportConfiguration
	issues      []ValidationIssue
	validated   bool
	touched     time.Time
	commit      *commitRun
}

// commitRun tracks one background commit of a session.
type commitRun struct {
	Cancel context.CancelFunc
	Done   chan struct{}

	mu        sync.Mutex
	progress  CommitProgress
	result    *CommitResult
	err       error
	listeners []chan CommitProgress
}

// NewService creates a Service. notifier may be nil.
func NewService(store RecordStore, branches BranchDirectory, notifier Notifier, opts ServiceOptions) *Service {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	s := &Service{
		store:         store,
		branches:      branches,
		notifier:      notifier,
		limiter:       NewImportLimiter(opts.MaxConcurrent, opts.MaxWait),
		maxFileSize:   opts.MaxFileSize,
		commitTimeout: opts.CommitTimeout,
		sessionTTL:    opts.SessionTTL,
		defaults:      DefaultImportConfiguration(),
		sessions:      make(map[string]*session),
	}
	if s.maxFileSize <= 0 {
		s.maxFileSize = DefaultMaxFileSize
	}
	if s.commitTimeout <= 0 {
		s.commitTimeout = DefaultCommitTimeout
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = DefaultSessionTTL
	}
	if opts.Defaults != nil {
		s.defaults = *opts.Defaults
	}
	return s
}

// SessionView is a read-only snapshot of a session.
type SessionView struct {
	ID              string              `json:"id"`
	FileName        string              `json:"fileName"`
	SourceFormat    SourceFormat        `json:"sourceFormat"`
	Headers         []string            `json:"headers"`
	RowCount        int                 `json:"rowCount"`
	Mappings        []FieldMapping      `json:"mappings"`
	Unmapped        []string            `json:"unmapped"`
	Ambiguities     []MappingAmbiguity  `json:"ambiguities,omitempty"`
	MissingRequired []string            `json:"missingRequired"`
	Config          ImportConfiguration `json:"config"`
	Statistics      *ImportStatistics   `json:"statistics,omitempty"`
	Committing      bool                `json:"committing"`
	CreatedAt       time.Time           `json:"createdAt"`
}

// ValidationReport is returned by Validate.
type ValidationReport struct {
	Statistics      ImportStatistics  `json:"statistics"`
	Issues          []ValidationIssue `json:"issues"`
	MissingRequired []string          `json:"missingRequired"`
}

// StartSession parses an uploaded file and seeds its mappings.
func (s *Service) StartSession(ctx context.Context, fileName string, data []byte) (SessionView, error) {
	if int64(len(data)) > s.maxFileSize {
		return SessionView{}, &ParseError{
			Kind:     ParseTooLarge,
			FileName: fileName,
			Err:      fmt.Errorf("%d bytes exceeds limit of %d", len(data), s.maxFileSize),
		}
	}

	dataset, err := Parse(fileName, data)
	if err != nil {
		return SessionView{}, err
	}

	sess := &session{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		dataset:   dataset,
		mappings:  NewMappingSet(nil),
		config:    s.defaults,
	}
	sess.touched = sess.CreatedAt

	if sess.config.AutoMapping {
		auto := AutoMap(dataset.Headers)
		sess.mappings = NewMappingSet(auto.Mappings)
		sess.unmapped = auto.Unmapped
		sess.ambiguities = auto.Ambiguities
		for _, a := range auto.Ambiguities {
			s.notifier.Info(ctx, "Check column mapping",
				fmt.Sprintf("Column %q matched %v; mapped to %s", a.Header, a.Candidates, a.Candidates[0]))
		}
	} else {
		sess.unmapped = append([]string(nil), dataset.Headers...)
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	s.expire(sess.ID, sess.CreatedAt)

	slog.Info("import session started",
		"session_id", sess.ID,
		"file", fileName,
		"format", dataset.SourceFormat,
		"rows", len(dataset.Rows),
		"mapped", sess.mappings.Len(),
	)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view(), nil
}

// Session returns a snapshot of the session.
func (s *Service) Session(id string) (SessionView, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return SessionView{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view(), nil
}

// UpdateMapping sets the target field and transform for a source column.
func (s *Service) UpdateMapping(id, source, target string, transform Transform) (SessionView, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return SessionView{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if !hasHeader(sess.dataset.Headers, source) {
		return SessionView{}, fmt.Errorf("%w: %q", ErrUnknownSourceColumn, source)
	}
	if err := sess.mappings.Update(source, target, transform); err != nil {
		return SessionView{}, err
	}
	sess.unmapped = removeString(sess.unmapped, source)
	sess.invalidate()
	return sess.view(), nil
}

// RemoveMapping unmaps a source column.
func (s *Service) RemoveMapping(id, source string) (SessionView, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return SessionView{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.mappings.Remove(source) {
		sess.unmapped = append(sess.unmapped, source)
		sess.invalidate()
	}
	return sess.view(), nil
}

// SetConfiguration replaces the session's import configuration. A non-empty
// default branch must exist in the branch directory.
func (s *Service) SetConfiguration(ctx context.Context, id string, cfg ImportConfiguration) (SessionView, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return SessionView{}, err
	}

	if cfg.DefaultBranchID != "" && s.branches != nil {
		branches, err := s.branches.ListBranches(ctx)
		if err != nil {
			return SessionView{}, fmt.Errorf("list branches: %w", err)
		}
		if !hasBranch(branches, cfg.DefaultBranchID) {
			return SessionView{}, fmt.Errorf("%w: %s", ErrUnknownBranch, cfg.DefaultBranchID)
		}
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.config = cfg
	sess.invalidate()
	return sess.view(), nil
}

// Validate recomputes the session's issues against the current record store.
func (s *Service) Validate(ctx context.Context, id string) (ValidationReport, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return ValidationReport{}, err
	}

	existing, err := s.store.ListRecords(ctx)
	if err != nil {
		return ValidationReport{}, fmt.Errorf("list existing records: %w", err)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.validate(existing)

	issues := sess.issues
	if issues == nil {
		issues = []ValidationIssue{}
	}
	return ValidationReport{
		Statistics:      ComputeStatistics(sess.dataset, sess.issues),
		Issues:          issues,
		MissingRequired: MissingRequired(sess.mappings.All()),
	}, nil
}

// Preview returns a page of rows under filter, using the last validation.
func (s *Service) Preview(id string, filter PreviewFilter, offset, limit int) (PreviewResponse, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return PreviewResponse{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.touched = time.Now()
	return BuildPreview(sess.dataset, sess.mappings.All(), sess.issues, filter, offset, limit), nil
}

// StartCommit revalidates the session and commits the selected rows in the
// background. Use SubscribeProgress to follow it and CommitResult to collect
// the outcome.
//
// Returns ErrTooManyImports if no commit slot frees up in time.
func (s *Service) StartCommit(ctx context.Context, id string, sel Selection) error {
	sess, err := s.lookup(id)
	if err != nil {
		return err
	}

	existing, err := s.store.ListRecords(ctx)
	if err != nil {
		return fmt.Errorf("list existing records: %w", err)
	}

	sess.mu.Lock()
	if sess.commit != nil && !sess.commit.finished() {
		sess.mu.Unlock()
		return ErrCommitInProgress
	}
	if sess.config.DefaultBranchID == "" {
		sess.mu.Unlock()
		return ErrMissingBranch
	}

	sess.validate(existing)
	rows, err := ResolveRows(sess.dataset, sess.issues, sel)
	if err != nil {
		sess.mu.Unlock()
		return err
	}
	if len(rows) == 0 {
		sess.mu.Unlock()
		return ErrEmptySelection
	}
	if !sess.config.SkipDuplicates {
		if n := countErrorRows(sess.issues, rows); n > 0 {
			sess.mu.Unlock()
			return fmt.Errorf("%w: %d of %d rows", ErrUnresolvedErrors, n, len(rows))
		}
	}

	req := CommitRequest{
		Dataset:  sess.dataset,
		Rows:     rows,
		Mappings: sess.mappings.All(),
		Existing: existing,
		Config:   sess.config,
	}
	sess.mu.Unlock()

	// Acquire commit slot (blocks until available or timeout)
	if err := s.limiter.Acquire(ctx); err != nil {
		return err
	}

	meta := RequestMetaFromContext(ctx)
	commitCtx, cancel := context.WithTimeout(ContextWithRequestMeta(context.Background(), meta), s.commitTimeout)
	run := &commitRun{
		Cancel:   cancel,
		Done:     make(chan struct{}),
		progress: CommitProgress{Total: len(rows)},
	}

	sess.mu.Lock()
	if sess.commit != nil && !sess.commit.finished() {
		sess.mu.Unlock()
		cancel()
		s.limiter.Release()
		return ErrCommitInProgress
	}
	sess.commit = run
	sess.touched = time.Now()
	sess.mu.Unlock()

	// Run in background with panic recovery to ensure limiter release
	go func() {
		defer s.limiter.Release()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in commit",
					"session_id", id,
					"panic", r,
				)
				run.finish(nil, fmt.Errorf("internal error: %v", r))
			}
		}()
		s.runCommit(commitCtx, sess, run, req)
	}()

	return nil
}

// runCommit executes the commit loop and records its outcome.
func (s *Service) runCommit(ctx context.Context, sess *session, run *commitRun, req CommitRequest) {
	slog.Info("import commit started",
		"session_id", sess.ID,
		"file", req.Dataset.FileName,
		"rows", len(req.Rows),
		"branch_id", req.Config.DefaultBranchID,
	)

	result, err := Commit(ctx, req, s.store, run.update)
	if result == nil {
		result = &CommitResult{FailedRowIndices: []int{}, Total: len(req.Rows)}
	}

	logAttrs := []any{
		"session_id", sess.ID,
		"succeeded", result.SuccessCount,
		"updated", result.UpdatedCount,
		"skipped", result.SkippedCount,
		"failed", len(result.FailedRowIndices),
		"outcome", result.Outcome(),
		"duration_ms", result.Duration.Milliseconds(),
	}
	if err != nil {
		slog.Warn("import commit stopped", append(logAttrs, "error", err)...)
	} else {
		slog.Info("import commit finished", logAttrs...)
	}

	s.recordRun(ctx, req, result)
	s.notifyOutcome(ctx, result, err)
	run.finish(result, err)

	sess.mu.Lock()
	sess.touched = time.Now()
	sess.mu.Unlock()
}

// recordRun writes the audit entry for a finished run. Failures are logged
// and never affect the result.
func (s *Service) recordRun(ctx context.Context, req CommitRequest, result *CommitResult) {
	meta := RequestMetaFromContext(ctx)

	// The commit context may have expired; the audit write gets its own.
	auditCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	run := ImportRun{
		ID:           uuid.New().String(),
		FileName:     req.Dataset.FileName,
		BranchID:     req.Config.DefaultBranchID,
		TotalRows:    result.Total,
		SuccessCount: result.SuccessCount,
		SkippedCount: result.SkippedCount,
		UpdatedCount: result.UpdatedCount,
		FailedCount:  len(result.FailedRowIndices),
		Outcome:      result.Outcome(),
		Duration:     result.Duration,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		CreatedAt:    time.Now(),
	}
	if err := s.store.RecordImportRun(auditCtx, run); err != nil {
		slog.Error("failed to record import run", "error", err, "file", run.FileName)
	}
}

// notifyOutcome sends the "N succeeded, M failed" summary.
func (s *Service) notifyOutcome(ctx context.Context, result *CommitResult, err error) {
	summary := CommitSummary(result)
	switch {
	case errors.Is(err, ErrCommitCancelled):
		s.notifier.Info(ctx, "Import cancelled", summary)
	case result.Outcome() == OutcomeComplete:
		s.notifier.Success(ctx, "Import complete", summary)
	case result.Outcome() == OutcomeNothing:
		s.notifier.Info(ctx, "Nothing imported", summary)
	case result.Outcome() == OutcomeFailed:
		s.notifier.Error(ctx, "Import failed", summary)
	default:
		s.notifier.Error(ctx, "Import partially complete", summary)
	}
}

// CommitSummary renders the aggregate outcome of a run.
func CommitSummary(r *CommitResult) string {
	msg := fmt.Sprintf("%d succeeded, %d failed", r.SuccessCount, len(r.FailedRowIndices))
	if r.UpdatedCount > 0 {
		msg += fmt.Sprintf(", %d updated", r.UpdatedCount)
	}
	if r.SkippedCount > 0 {
		msg += fmt.Sprintf(", %d skipped", r.SkippedCount)
	}
	return msg
}

// SubscribeProgress returns a channel that receives commit progress.
// The channel is closed when the commit completes.
func (s *Service) SubscribeProgress(id string) (<-chan CommitProgress, error) {
	run, err := s.currentRun(id)
	if err != nil {
		return nil, err
	}

	ch := make(chan CommitProgress, 10)

	run.mu.Lock()
	defer run.mu.Unlock()
	// Send current progress immediately
	ch <- run.progress
	if run.finishedLocked() {
		close(ch)
		return ch, nil
	}
	run.listeners = append(run.listeners, ch)
	return ch, nil
}

// CancelCommit stops a running commit between rows.
func (s *Service) CancelCommit(id string) error {
	run, err := s.currentRun(id)
	if err != nil {
		return err
	}
	run.Cancel()
	return nil
}

// CommitResult returns the outcome of the session's last commit.
// Blocks until the commit completes or ctx ends.
func (s *Service) CommitResult(ctx context.Context, id string) (*CommitResult, error) {
	run, err := s.currentRun(id)
	if err != nil {
		return nil, err
	}

	select {
	case <-run.Done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	run.mu.Lock()
	defer run.mu.Unlock()
	return run.result, run.err
}

// DiscardSession cancels any running commit and forgets the session.
func (s *Service) DiscardSession(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	sess.mu.Lock()
	run := sess.commit
	sess.mu.Unlock()
	if run != nil {
		run.Cancel()
	}
	return nil
}

// Branches lists the branches an import can target.
func (s *Service) Branches(ctx context.Context) ([]Branch, error) {
	if s.branches == nil {
		return []Branch{}, nil
	}
	return s.branches.ListBranches(ctx)
}

// LimiterStatus reports commit slot usage.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForCommits blocks until running commits finish or ctx ends.
func (s *Service) WaitForCommits(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

func (s *Service) lookup(id string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

func (s *Service) currentRun(id string) (*commitRun, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	run := sess.commit
	sess.mu.Unlock()
	if run == nil {
		return nil, ErrNoCommitResult
	}
	return run, nil
}

// expire removes the session once it has been idle for the TTL.
// A running commit keeps the session alive.
func (s *Service) expire(id string, since time.Time) {
	time.AfterFunc(s.sessionTTL-time.Since(since), func() {
		sess, err := s.lookup(id)
		if err != nil {
			return
		}

		sess.mu.Lock()
		touched := sess.touched
		running := sess.commit != nil && !sess.commit.finished()
		sess.mu.Unlock()

		if running || time.Since(touched) < s.sessionTTL {
			s.expire(id, touched)
			return
		}

		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		slog.Debug("import session expired", "session_id", id)
	})
}

// view must be called with sess.mu held.
func (sess *session) view() SessionView {
	sess.touched = time.Now()
	v := SessionView{
		ID:              sess.ID,
		FileName:        sess.dataset.FileName,
		SourceFormat:    sess.dataset.SourceFormat,
		Headers:         sess.dataset.Headers,
		RowCount:        len(sess.dataset.Rows),
		Mappings:        sess.mappings.All(),
		Unmapped:        append([]string{}, sess.unmapped...),
		Ambiguities:     sess.ambiguities,
		MissingRequired: MissingRequired(sess.mappings.All()),
		Config:          sess.config,
		Committing:      sess.commit != nil && !sess.commit.finished(),
		CreatedAt:       sess.CreatedAt,
	}
	if sess.validated {
		stats := ComputeStatistics(sess.dataset, sess.issues)
		v.Statistics = &stats
	}
	return v
}

// validate must be called with sess.mu held.
func (sess *session) validate(existing []ExistingRecord) {
	sess.issues = Validate(sess.dataset, sess.mappings.All(), existing, sess.config)
	sess.validated = true
	sess.touched = time.Now()
}

// invalidate drops issues computed for an older mapping or configuration.
func (sess *session) invalidate() {
	sess.issues = nil
	sess.validated = false
}

// update records progress and fans it out to listeners.
func (run *commitRun) update(p CommitProgress) {
	run.mu.Lock()
	defer run.mu.Unlock()

	run.progress = p
	for _, ch := range run.listeners {
		select {
		case ch <- p:
		default:
			// Listener is slow, skip this update
		}
	}
}

// finish stores the outcome, closes listeners and releases waiters.
// Only the first call has an effect.
func (run *commitRun) finish(result *CommitResult, err error) {
	run.mu.Lock()
	defer run.mu.Unlock()

	if run.finishedLocked() {
		return
	}
	if result == nil {
		result = &CommitResult{FailedRowIndices: []int{}, Total: run.progress.Total}
	}
	run.result = result
	run.err = err

	for _, ch := range run.listeners {
		close(ch)
	}
	run.listeners = nil
	close(run.Done)
}

func (run *commitRun) finished() bool {
	run.mu.Lock()
	defer run.mu.Unlock()
	return run.finishedLocked()
}

func (run *commitRun) finishedLocked() bool {
	select {
	case <-run.Done:
		return true
	default:
		return false
	}
}

func countErrorRows(issues []ValidationIssue, rows []int) int {
	bad := ErrorRows(issues)
	n := 0
	for _, idx := range rows {
		if bad[idx] {
			n++
		}
	}
	return n
}

func hasHeader(headers []string, h string) bool {
	for _, x := range headers {
		if x == h {
			return true
		}
	}
	return false
}

func hasBranch(branches []Branch, id string) bool {
	for _, b := range branches {
		if b.ID == id {
			return true
		}
	}
	return false
}

func removeString(list []string, s string) []string {
	out := list[:0:0]
	for _, x := range list {
		if x != s {
			out = append(out, x)
		}
	}
	return out
}
