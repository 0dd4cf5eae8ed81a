package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"isoconvert/internal/workflow"
)

// timeLayout keeps a fixed width so started_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Record stores report under its run id. worklist is the source file the
// items were read from and may be empty.
func (s *Store) Record(ctx context.Context, worklist string, report *workflow.Report) error {
	if report == nil {
		return fmt.Errorf("record run: nil report")
	}
	succeeded, failed := report.Tally()
	finished := report.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	return retryOnBusy(ctx, func() error {
		return s.withTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO runs (id, worklist, started_at, finished_at, item_count, succeeded, failed, interrupted)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				report.RunID, worklist,
				report.StartedAt.UTC().Format(timeLayout), finished.UTC().Format(timeLayout),
				len(report.Items), succeeded, failed, boolInt(report.Interrupted),
			); err != nil {
				return fmt.Errorf("insert run: %w", err)
			}

			for pos, item := range report.Items {
				if err := insertItem(ctx, tx, report.RunID, pos, item); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

func insertItem(ctx context.Context, tx *sql.Tx, runID string, pos int, item *workflow.ItemReport) error {
	for _, name := range []string{workflow.StagePreload, workflow.StageScan, workflow.StageConvert} {
		outcome := item.Stage(name)
		if outcome.Status == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stage_results (run_id, position, item_path, stage, status, message, duration_ms)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, pos, item.Path, name, outcome.Status, outcome.Message(), outcome.Duration.Milliseconds(),
		); err != nil {
			return fmt.Errorf("insert %s result for %s: %w", name, item.Path, err)
		}
	}
	for _, title := range item.Titles {
		message := ""
		if title.Err != nil {
			message = title.Err.Error()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO titles (run_id, item_path, ordinal, length, output, status, message, duration_ms)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, item.Path, title.Ordinal, title.Length, title.Output, title.Status, message, title.Elapsed.Milliseconds(),
		); err != nil {
			return fmt.Errorf("insert title %d for %s: %w", title.Ordinal, item.Path, err)
		}
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
