package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driven"
)

// runStore implements driven.RunStore.
type runStore struct {
	store *Store
}

var _ driven.RunStore = (*runStore)(nil)

const runColumns = `id, title, outline, max_iterations, confidence_threshold, status,
	stop_reason, iterations, versions, cost, error, created_at, updated_at`

// SaveRun stores or updates a run.
func (s *runStore) SaveRun(ctx context.Context, run *domain.Run) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("%w: run id is required", domain.ErrInvalidInput)
	}

	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	if run.UpdatedAt.IsZero() {
		run.UpdatedAt = now
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			outline = excluded.outline,
			max_iterations = excluded.max_iterations,
			confidence_threshold = excluded.confidence_threshold,
			status = excluded.status,
			stop_reason = excluded.stop_reason,
			iterations = excluded.iterations,
			versions = excluded.versions,
			cost = excluded.cost,
			error = excluded.error,
			updated_at = excluded.updated_at
	`, run.ID, run.Title, run.Outline, run.MaxIterations, run.ConfidenceThreshold,
		string(run.Status), string(run.StopReason), run.Iterations, run.Versions, run.Cost,
		run.Error, formatTime(run.CreatedAt), formatTime(run.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *runStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning run: %w", err)
	}
	return run, nil
}

// ListRuns returns all runs, most recent first.
func (s *runStore) ListRuns(ctx context.Context) ([]domain.Run, error) {
	rows, err := s.store.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	runs := []domain.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// DeleteRun removes a run; its versions are removed by cascade.
func (s *runStore) DeleteRun(ctx context.Context, id string) error {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// AppendVersion stores the next history entry of a run. seq must equal
// the number of entries already stored.
func (s *runStore) AppendVersion(ctx context.Context, runID string, seq int, doc *domain.Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is required", domain.ErrInvalidInput)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshalling document: %w", err)
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var exists int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs WHERE id = ?", runID).Scan(&exists); err != nil {
		return fmt.Errorf("checking run: %w", err)
	}
	if exists == 0 {
		return domain.ErrNotFound
	}

	var next int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM run_versions WHERE run_id = ?", runID).Scan(&next); err != nil {
		return fmt.Errorf("counting versions: %w", err)
	}
	if seq != next {
		return fmt.Errorf("%w: version %d out of sequence (next is %d)", domain.ErrInvalidInput, seq, next)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO run_versions (run_id, seq, version, document, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, runID, seq, doc.Version, string(data), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("inserting version: %w", err)
	}
	return tx.Commit()
}

// GetVersion retrieves one history entry.
func (s *runStore) GetVersion(ctx context.Context, runID string, seq int) (*domain.Document, error) {
	var data string
	err := s.store.db.QueryRowContext(ctx,
		"SELECT document FROM run_versions WHERE run_id = ? AND seq = ?", runID, seq).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("querying version: %w", err)
	}
	return decodeDocument(data)
}

// ListVersions returns the full history of a run.
func (s *runStore) ListVersions(ctx context.Context, runID string) ([]*domain.Document, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.store.db.QueryContext(ctx,
		"SELECT document FROM run_versions WHERE run_id = ? ORDER BY seq", runID)
	if err != nil {
		return nil, fmt.Errorf("querying versions: %w", err)
	}
	defer rows.Close()

	docs := []*domain.Document{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning version: %w", err)
		}
		doc, err := decodeDocument(data)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating versions: %w", err)
	}
	return docs, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*domain.Run, error) {
	var run domain.Run
	var status, stopReason, createdAt, updatedAt string
	if err := row.Scan(&run.ID, &run.Title, &run.Outline, &run.MaxIterations, &run.ConfidenceThreshold,
		&status, &stopReason, &run.Iterations, &run.Versions, &run.Cost, &run.Error,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	run.Status = domain.RunStatus(status)
	run.StopReason = domain.StopReason(stopReason)
	run.CreatedAt = parseTime(createdAt)
	run.UpdatedAt = parseTime(updatedAt)
	return &run, nil
}

func decodeDocument(data string) (*domain.Document, error) {
	var doc domain.Document
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("unmarshalling document: %w", err)
	}
	return &doc, nil
}

// Timestamps are stored as fixed-width UTC text so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
