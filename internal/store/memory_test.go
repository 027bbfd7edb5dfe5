package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/ArticleImport/internal/core"
)

// ============================================================================
// Records
// ============================================================================

func TestMemoryStore_CreateAndList(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	created, err := m.CreateRecord(ctx, core.Record{
		core.FieldName:     core.StringValue("Widget"),
		core.FieldBaseRate: core.NumberValue(10),
		core.FieldBranchID: core.StringValue("branch-1"),
	})
	if err != nil {
		t.Fatalf("CreateRecord failed: %v", err)
	}
	if created.ID == "" || created.Name != "Widget" || created.BranchID != "branch-1" {
		t.Errorf("created = %+v", created)
	}

	records, err := m.ListRecords(ctx)
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	if len(records) != 1 || records[0] != created {
		t.Errorf("ListRecords = %+v, want [%+v]", records, created)
	}
}

func TestMemoryStore_CreateRejects(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	if _, err := m.CreateRecord(ctx, core.Record{core.FieldName: core.StringValue("Widget")}); err != nil {
		t.Fatalf("CreateRecord failed: %v", err)
	}

	tests := []struct {
		name    string
		rec     core.Record
		wantMsg string
	}{
		{"missing name", core.Record{core.FieldBaseRate: core.NumberValue(1)}, "not-null"},
		{"duplicate name ignores case", core.Record{core.FieldName: core.StringValue("  WIDGET ")}, "duplicate key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.CreateRecord(ctx, tt.rec)
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("CreateRecord error = %v, want containing %q", err, tt.wantMsg)
			}
		})
	}

	// The duplicate error maps to the user-facing duplicate code.
	_, err := m.CreateRecord(ctx, core.Record{core.FieldName: core.StringValue("widget")})
	if got := core.MapError(err).Code; got != "DB001" {
		t.Errorf("MapError code = %q, want DB001", got)
	}
}

func TestMemoryStore_UpdateRecord(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	created, _ := m.CreateRecord(ctx, core.Record{
		core.FieldName:     core.StringValue("Widget"),
		core.FieldBaseRate: core.NumberValue(10),
		core.FieldNotes:    core.StringValue("keep me"),
	})

	updated, err := m.UpdateRecord(ctx, created.ID, core.Record{
		core.FieldName:     core.StringValue("Widget"),
		core.FieldBaseRate: core.NumberValue(12),
		core.FieldNotes:    core.NullValue(),
	})
	if err != nil {
		t.Fatalf("UpdateRecord failed: %v", err)
	}
	if updated.ID != created.ID {
		t.Errorf("ID changed: %q -> %q", created.ID, updated.ID)
	}

	rec, ok := m.Record(created.ID)
	if !ok {
		t.Fatal("record missing after update")
	}
	if f, _ := rec[core.FieldBaseRate].Float(); f != 12 {
		t.Errorf("base_rate = %v, want 12", f)
	}
	if rec[core.FieldNotes].Text() != "keep me" {
		t.Errorf("null patch value should not overwrite notes, got %q", rec[core.FieldNotes].Text())
	}

	_, err = m.UpdateRecord(ctx, "missing", core.Record{})
	if !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("UpdateRecord(missing) error = %v, want ErrRecordNotFound", err)
	}
}

// ============================================================================
// Branches
// ============================================================================

func TestMemoryStore_Branches(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	north := m.AddBranch("North")
	m.AddBranch("East")
	again, err := m.EnsureBranch(ctx, "North")
	if err != nil {
		t.Fatalf("EnsureBranch failed: %v", err)
	}
	if again != north {
		t.Errorf("EnsureBranch returned %+v, want existing %+v", again, north)
	}

	branches, _ := m.ListBranches(ctx)
	if len(branches) != 2 || branches[0].Name != "East" || branches[1].Name != "North" {
		t.Errorf("ListBranches = %+v, want East then North", branches)
	}
}

// ============================================================================
// Import runs and retention
// ============================================================================

func TestMemoryStore_ImportRuns(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	now := time.Now()

	for i, age := range []time.Duration{200 * 24 * time.Hour, 48 * time.Hour, time.Hour} {
		err := m.RecordImportRun(ctx, core.ImportRun{
			FileName:     "batch.csv",
			TotalRows:    i + 1,
			SuccessCount: i + 1,
			Outcome:      core.OutcomeComplete,
			CreatedAt:    now.Add(-age),
		})
		if err != nil {
			t.Fatalf("RecordImportRun failed: %v", err)
		}
	}

	runs, _ := m.ListImportRuns(ctx, 2)
	if len(runs) != 2 {
		t.Fatalf("len(runs) = %d, want 2", len(runs))
	}
	if runs[0].TotalRows != 3 || runs[1].TotalRows != 2 {
		t.Errorf("runs not newest first: %+v", runs)
	}
	if runs[0].ID == "" {
		t.Error("RecordImportRun should assign an ID")
	}

	pruned := runRetentionJob(ctx, m, RetentionConfig{}.withDefaults(), now)
	if pruned != 1 {
		t.Errorf("pruned = %d, want 1", pruned)
	}
	runs, _ = m.ListImportRuns(ctx, 0)
	if len(runs) != 2 {
		t.Errorf("len(runs) after prune = %d, want 2", len(runs))
	}
}

func TestRetentionConfig_Defaults(t *testing.T) {
	cfg := RetentionConfig{}.withDefaults()
	if cfg.RetentionDays != 90 || cfg.CheckInterval != 24*time.Hour {
		t.Errorf("defaults = %+v", cfg)
	}

	cfg = RetentionConfig{RetentionDays: 7, CheckInterval: time.Minute}.withDefaults()
	if cfg.RetentionDays != 7 || cfg.CheckInterval != time.Minute {
		t.Errorf("explicit values overridden: %+v", cfg)
	}
}

func TestStartRetentionScheduler_StopsOnCancel(t *testing.T) {
	m := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		StartRetentionScheduler(ctx, m, RetentionConfig{CheckInterval: 10 * time.Millisecond})
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

// ============================================================================
// Interface conformance
// ============================================================================

var (
	_ core.RecordStore     = (*MemoryStore)(nil)
	_ core.BranchDirectory = (*MemoryStore)(nil)
	_ core.ImportHistory   = (*MemoryStore)(nil)
	_ Pruner               = (*MemoryStore)(nil)
	_ core.RecordStore     = (*PostgresStore)(nil)
	_ core.BranchDirectory = (*PostgresStore)(nil)
	_ core.ImportHistory   = (*PostgresStore)(nil)
	_ Pruner               = (*PostgresStore)(nil)
)
