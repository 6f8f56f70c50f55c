package tables

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/skridlevsky/membership-tracker/internal/roster"
)

// RunStatus is the lifecycle state of a tracker run
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is one row of run history
type Run struct {
	ID           uuid.UUID  `json:"id"`
	Status       RunStatus  `json:"status"`
	StartedAt    time.Time  `json:"startedAt"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
	Teams        int        `json:"teams"`
	Members      int        `json:"members"`
	Added        int        `json:"added"`
	Removed      int        `json:"removed"`
	ReportFileID *uuid.UUID `json:"reportFileId,omitempty"`
	TableUpdated bool       `json:"tableUpdated"`
	Error        *string    `json:"error,omitempty"`
}

const runColumns = `id, status, started_at, finished_at, teams, members,
			added, removed, report_file_id, table_updated, error`

// RecordRun inserts a run or overwrites the stored row with the same id
func (s *Store) RecordRun(ctx context.Context, r *Run) error {
	query := fmt.Sprintf(`
		INSERT INTO runs (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			finished_at = EXCLUDED.finished_at,
			teams = EXCLUDED.teams,
			members = EXCLUDED.members,
			added = EXCLUDED.added,
			removed = EXCLUDED.removed,
			report_file_id = EXCLUDED.report_file_id,
			table_updated = EXCLUDED.table_updated,
			error = EXCLUDED.error
	`, runColumns)

	_, err := s.pool.Exec(ctx, query,
		r.ID, r.Status, r.StartedAt, r.FinishedAt, r.Teams, r.Members,
		r.Added, r.Removed, r.ReportFileID, r.TableUpdated, r.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

func scanRun(row pgx.Row) (*Run, error) {
	r := &Run{}
	err := row.Scan(
		&r.ID, &r.Status, &r.StartedAt, &r.FinishedAt, &r.Teams, &r.Members,
		&r.Added, &r.Removed, &r.ReportFileID, &r.TableUpdated, &r.Error,
	)
	return r, err
}

// GetRun retrieves a run by its id
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	query := fmt.Sprintf(`SELECT %s FROM runs WHERE id = $1`, runColumns)

	r, err := scanRun(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", id, roster.ErrLookup)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs first
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := fmt.Sprintf(`SELECT %s FROM runs ORDER BY started_at DESC LIMIT $1`, runColumns)
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
