// Package store provides the record store and branch directory used by the
// import pipeline: a PostgreSQL implementation on pgx and an in-memory one
// for development and tests.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/ArticleImport/internal/core"
)

// ErrRecordNotFound is returned when an update targets a missing article.
var ErrRecordNotFound = errors.New("record not found")

// DefaultHistoryLimit bounds ListImportRuns when no limit is given.
const DefaultHistoryLimit = 50

// DBTX is the subset of pgxpool.Pool, pgx.Conn and pgx.Tx used by the store.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// articleColumns are the writable article columns. Column names equal the
// target field names.
var articleColumns = []string{
	core.FieldName,
	core.FieldDescription,
	core.FieldBaseRate,
	core.FieldHSNCode,
	core.FieldTaxRate,
	core.FieldUnitOfMeasure,
	core.FieldMinQuantity,
	core.FieldIsFragile,
	core.FieldRequiresSpecialHandling,
	core.FieldNotes,
	core.FieldBranchID,
}

// PostgresStore implements core.RecordStore, core.BranchDirectory and
// core.ImportHistory on PostgreSQL.
type PostgresStore struct {
	db DBTX
}

// NewPostgresStore wraps db, typically a *pgxpool.Pool.
func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// ListRecords returns the id, name and branch of every article.
func (s *PostgresStore) ListRecords(ctx context.Context) ([]core.ExistingRecord, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, branch_id FROM articles ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	var records []core.ExistingRecord
	for rows.Next() {
		var id, branch pgtype.UUID
		var name string
		if err := rows.Scan(&id, &name, &branch); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		records = append(records, core.ExistingRecord{
			ID:       pgUUIDToString(id),
			Name:     name,
			BranchID: pgUUIDToString(branch),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	return records, nil
}

// CreateRecord inserts one article. Boolean flags default to false.
func (s *PostgresStore) CreateRecord(ctx context.Context, rec core.Record) (core.ExistingRecord, error) {
	id := uuid.New()

	cols := make([]string, 0, len(articleColumns)+1)
	placeholders := make([]string, 0, len(articleColumns)+1)
	args := make([]any, 0, len(articleColumns)+1)

	cols = append(cols, "id")
	placeholders = append(placeholders, "$1")
	args = append(args, pgtype.UUID{Bytes: id, Valid: true})

	for _, col := range articleColumns {
		v := rec[col]
		if v.IsNull() && (col == core.FieldIsFragile || col == core.FieldRequiresSpecialHandling) {
			continue
		}
		args = append(args, columnValue(col, v))
		cols = append(cols, col)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	query := fmt.Sprintf(
		"INSERT INTO articles (%s) VALUES (%s) RETURNING id, name, branch_id",
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
	)
	return s.scanArticle(s.db.QueryRow(ctx, query, args...))
}

// UpdateRecord overwrites the columns that patch carries a value for.
// Null values in patch leave the stored column unchanged.
func (s *PostgresStore) UpdateRecord(ctx context.Context, id string, patch core.Record) (core.ExistingRecord, error) {
	pgID := toPgUUID(id)
	if !pgID.Valid {
		return core.ExistingRecord{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}

	sets := make([]string, 0, len(articleColumns)+1)
	args := []any{pgID}
	for _, col := range articleColumns {
		v, ok := patch[col]
		if !ok || v.IsNull() {
			continue
		}
		args = append(args, columnValue(col, v))
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	sets = append(sets, "updated_at = now()")

	query := fmt.Sprintf(
		"UPDATE articles SET %s WHERE id = $1 RETURNING id, name, branch_id",
		strings.Join(sets, ", "),
	)
	rec, err := s.scanArticle(s.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ExistingRecord{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return rec, err
}

func (s *PostgresStore) scanArticle(row pgx.Row) (core.ExistingRecord, error) {
	var id, branch pgtype.UUID
	var name string
	if err := row.Scan(&id, &name, &branch); err != nil {
		return core.ExistingRecord{}, err
	}
	return core.ExistingRecord{
		ID:       pgUUIDToString(id),
		Name:     name,
		BranchID: pgUUIDToString(branch),
	}, nil
}

// RecordImportRun appends an entry to the import audit trail.
func (s *PostgresStore) RecordImportRun(ctx context.Context, run core.ImportRun) error {
	id := run.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO import_runs (
			id, file_name, branch_id, total_rows, success_count, skipped_count,
			updated_count, failed_count, outcome, duration_ms, ip_address, user_agent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		toPgUUID(id),
		run.FileName,
		toPgUUID(run.BranchID),
		int32(run.TotalRows),
		int32(run.SuccessCount),
		int32(run.SkippedCount),
		int32(run.UpdatedCount),
		int32(run.FailedCount),
		string(run.Outcome),
		run.Duration.Milliseconds(),
		toPgText(core.StringValue(run.IPAddress)),
		toPgText(core.StringValue(run.UserAgent)),
		pgtype.Timestamptz{Time: createdAt, Valid: true},
	)
	if err != nil {
		return fmt.Errorf("insert import run: %w", err)
	}
	return nil
}

// ListImportRuns returns the most recent import runs, newest first.
func (s *PostgresStore) ListImportRuns(ctx context.Context, limit int) ([]core.ImportRun, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, file_name, branch_id, total_rows, success_count, skipped_count,
		       updated_count, failed_count, outcome, duration_ms, ip_address, user_agent, created_at
		FROM import_runs
		ORDER BY created_at DESC
		LIMIT $1`, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("list import runs: %w", err)
	}
	defer rows.Close()

	runs := make([]core.ImportRun, 0, limit)
	for rows.Next() {
		var (
			id, branch                           pgtype.UUID
			fileName, outcome                    string
			total, success, skipped, upd, failed int32
			durationMs                           int64
			ip, agent                            pgtype.Text
			createdAt                            pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &fileName, &branch, &total, &success, &skipped,
			&upd, &failed, &outcome, &durationMs, &ip, &agent, &createdAt); err != nil {
			return nil, fmt.Errorf("scan import run: %w", err)
		}
		runs = append(runs, core.ImportRun{
			ID:           pgUUIDToString(id),
			FileName:     fileName,
			BranchID:     pgUUIDToString(branch),
			TotalRows:    int(total),
			SuccessCount: int(success),
			SkippedCount: int(skipped),
			UpdatedCount: int(upd),
			FailedCount:  int(failed),
			Outcome:      core.CommitOutcome(outcome),
			Duration:     time.Duration(durationMs) * time.Millisecond,
			IPAddress:    ip.String,
			UserAgent:    agent.String,
			CreatedAt:    createdAt.Time,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list import runs: %w", err)
	}
	return runs, nil
}

// PruneImportRuns deletes import runs older than the cutoff.
func (s *PostgresStore) PruneImportRuns(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM import_runs WHERE created_at < $1`,
		pgtype.Timestamptz{Time: olderThan, Valid: true})
	if err != nil {
		return 0, fmt.Errorf("prune import runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListBranches returns every branch ordered by name.
func (s *PostgresStore) ListBranches(ctx context.Context) ([]core.Branch, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name FROM branches ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	defer rows.Close()

	branches := []core.Branch{}
	for rows.Next() {
		var id pgtype.UUID
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan branch: %w", err)
		}
		branches = append(branches, core.Branch{ID: pgUUIDToString(id), Name: name})
	}
	return branches, rows.Err()
}

// EnsureBranch returns the branch with name, creating it if needed.
func (s *PostgresStore) EnsureBranch(ctx context.Context, name string) (core.Branch, error) {
	var id pgtype.UUID
	var got string
	err := s.db.QueryRow(ctx, `
		INSERT INTO branches (id, name) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name`,
		pgtype.UUID{Bytes: uuid.New(), Valid: true}, name,
	).Scan(&id, &got)
	if err != nil {
		return core.Branch{}, fmt.Errorf("ensure branch %q: %w", name, err)
	}
	return core.Branch{ID: pgUUIDToString(id), Name: got}, nil
}
