package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a run id is not in the ledger.
var ErrNotFound = errors.New("run not found")

// Run is one summary row of the ledger.
type Run struct {
	ID          string
	Worklist    string
	StartedAt   time.Time
	FinishedAt  time.Time
	Items       int
	Succeeded   int
	Failed      int
	Interrupted bool
}

// Elapsed is the wall time of the run.
func (r Run) Elapsed() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// StageResult is one stored stage outcome.
type StageResult struct {
	Item     string
	Stage    string
	Status   string
	Message  string
	Duration time.Duration
}

// TitleResult is one stored title conversion.
type TitleResult struct {
	Item     string
	Ordinal  int
	Length   string
	Output   string
	Status   string
	Message  string
	Duration time.Duration
}

// RunDetail is a run with all of its stage and title rows.
type RunDetail struct {
	Run
	Stages []StageResult
	Titles []TitleResult
}

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, worklist, started_at, finished_at, item_count, succeeded, failed, interrupted
		FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun loads one run. id may be a unique prefix of the run id.
func (s *Store) GetRun(ctx context.Context, id string) (*RunDetail, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, worklist, started_at, finished_at, item_count, succeeded, failed, interrupted
		 FROM runs WHERE id = ? OR id LIKE ? ORDER BY (id = ?) DESC LIMIT 2`,
		id, id+"%", id)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	var matches []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		matches = append(matches, run)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch {
	case len(matches) == 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case len(matches) > 1 && matches[0].ID != id:
		return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
	}

	detail := &RunDetail{Run: matches[0]}
	if detail.Stages, err = s.stageResults(ctx, detail.ID); err != nil {
		return nil, err
	}
	if detail.Titles, err = s.titleResults(ctx, detail.ID); err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *Store) stageResults(ctx context.Context, runID string) ([]StageResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_path, stage, status, message, duration_ms FROM stage_results
		 WHERE run_id = ? ORDER BY position, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("load stage results: %w", err)
	}
	defer rows.Close()

	var out []StageResult
	for rows.Next() {
		var (
			r  StageResult
			ms int64
		)
		if err := rows.Scan(&r.Item, &r.Stage, &r.Status, &r.Message, &ms); err != nil {
			return nil, fmt.Errorf("scan stage result: %w", err)
		}
		r.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) titleResults(ctx context.Context, runID string) ([]TitleResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_path, ordinal, length, output, status, message, duration_ms FROM titles
		 WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("load titles: %w", err)
	}
	defer rows.Close()

	var out []TitleResult
	for rows.Next() {
		var (
			r  TitleResult
			ms int64
		)
		if err := rows.Scan(&r.Item, &r.Ordinal, &r.Length, &r.Output, &r.Status, &r.Message, &ms); err != nil {
			return nil, fmt.Errorf("scan title: %w", err)
		}
		r.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		r                 Run
		started, finished string
		interrupted       int
	)
	if err := row.Scan(&r.ID, &r.Worklist, &started, &finished, &r.Items, &r.Succeeded, &r.Failed, &interrupted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrNotFound
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	r.StartedAt, _ = time.Parse(timeLayout, started)
	r.FinishedAt, _ = time.Parse(timeLayout, finished)
	r.Interrupted = interrupted != 0
	return r, nil
}
