package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/ArticleImport/internal/core"
)

// MemoryStore keeps articles, branches and import runs in process memory.
// It enforces the same case-insensitive name uniqueness as the PostgreSQL
// schema, so duplicate creates fail per row with a duplicate key error.
type MemoryStore struct {
	mu       sync.RWMutex
	articles []core.Record
	ids      []string
	branches []core.Branch
	runs     []core.ImportRun
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// AddBranch registers a branch and returns it.
func (m *MemoryStore) AddBranch(name string) core.Branch {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range m.branches {
		if b.Name == name {
			return b
		}
	}
	b := core.Branch{ID: uuid.New().String(), Name: name}
	m.branches = append(m.branches, b)
	return b
}

// EnsureBranch matches PostgresStore.EnsureBranch.
func (m *MemoryStore) EnsureBranch(_ context.Context, name string) (core.Branch, error) {
	return m.AddBranch(name), nil
}

// ListBranches returns branches ordered by name.
func (m *MemoryStore) ListBranches(_ context.Context) ([]core.Branch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]core.Branch, len(m.branches))
	copy(out, m.branches)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) ListRecords(_ context.Context) ([]core.ExistingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]core.ExistingRecord, len(m.articles))
	for i, rec := range m.articles {
		out[i] = m.existing(i, rec)
	}
	return out, nil
}

func (m *MemoryStore) CreateRecord(_ context.Context, rec core.Record) (core.ExistingRecord, error) {
	name := rec.Name()
	if name == "" {
		return core.ExistingRecord{}, errors.New(`null value in column "name" violates not-null constraint`)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.indexByName(name) >= 0 {
		return core.ExistingRecord{}, fmt.Errorf(`duplicate key value violates unique constraint "articles_name_key": %s`, name)
	}

	stored := make(core.Record, len(rec))
	for k, v := range rec {
		stored[k] = v
	}
	m.articles = append(m.articles, stored)
	m.ids = append(m.ids, uuid.New().String())
	i := len(m.articles) - 1
	return m.existing(i, stored), nil
}

func (m *MemoryStore) UpdateRecord(_ context.Context, id string, patch core.Record) (core.ExistingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexByID(id)
	if i < 0 {
		return core.ExistingRecord{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}

	if name := patch.Name(); name != "" {
		if j := m.indexByName(name); j >= 0 && j != i {
			return core.ExistingRecord{}, fmt.Errorf(`duplicate key value violates unique constraint "articles_name_key": %s`, name)
		}
	}

	for k, v := range patch {
		if v.IsNull() {
			continue
		}
		m.articles[i][k] = v
	}
	return m.existing(i, m.articles[i]), nil
}

// Record returns a copy of the stored article with id.
func (m *MemoryStore) Record(id string) (core.Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.indexByID(id)
	if i < 0 {
		return nil, false
	}
	out := make(core.Record, len(m.articles[i]))
	for k, v := range m.articles[i] {
		out[k] = v
	}
	return out, true
}

func (m *MemoryStore) RecordImportRun(_ context.Context, run core.ImportRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	m.mu.Lock()
	m.runs = append(m.runs, run)
	m.mu.Unlock()
	return nil
}

// ListImportRuns returns the most recent runs, newest first.
func (m *MemoryStore) ListImportRuns(_ context.Context, limit int) ([]core.ImportRun, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]core.ImportRun, 0, min(limit, len(m.runs)))
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}

// PruneImportRuns deletes runs created before olderThan.
func (m *MemoryStore) PruneImportRuns(_ context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.runs[:0]
	var pruned int64
	for _, run := range m.runs {
		if run.CreatedAt.Before(olderThan) {
			pruned++
			continue
		}
		kept = append(kept, run)
	}
	m.runs = kept
	return pruned, nil
}

func (m *MemoryStore) existing(i int, rec core.Record) core.ExistingRecord {
	return core.ExistingRecord{
		ID:       m.ids[i],
		Name:     rec.Name(),
		BranchID: strings.TrimSpace(rec[core.FieldBranchID].Text()),
	}
}

func (m *MemoryStore) indexByID(id string) int {
	for i, got := range m.ids {
		if got == id {
			return i
		}
	}
	return -1
}

func (m *MemoryStore) indexByName(name string) int {
	for i, rec := range m.articles {
		if strings.EqualFold(rec.Name(), name) {
			return i
		}
	}
	return -1
}
