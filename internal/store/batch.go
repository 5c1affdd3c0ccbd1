package store

import (
	"context"
	"fmt"
	"time"
)

// BatchRun is one stage 5 delivery run for one chat.
type BatchRun struct {
	ID          int64
	RunID       string
	BatchDate   time.Time
	BatchNumber int
	ChatID      string
}

// StartBatchRun opens a batch_runs row numbered within the current day.
func (s *Store) StartBatchRun(ctx context.Context, runID, chatID string) (BatchRun, error) {
	var b BatchRun
	err := s.pool.QueryRow(ctx,
		`INSERT INTO batch_runs (run_id, batch_date, batch_number, chat_id, started_at, status)
		 SELECT $1, CURRENT_DATE,
			COALESCE(MAX(batch_number), 0) + 1, $2, NOW(), 'running'
		 FROM batch_runs WHERE batch_date = CURRENT_DATE
		 RETURNING id, run_id, batch_date, batch_number, chat_id`,
		runID, chatID).Scan(&b.ID, &b.RunID, &b.BatchDate, &b.BatchNumber, &b.ChatID)
	if err != nil {
		return BatchRun{}, fmt.Errorf("start batch run: %w", err)
	}
	return b, nil
}

// FinishBatchRun closes the row with final counts.
func (s *Store) FinishBatchRun(ctx context.Context, id int64, sent, noDescSent, blocked, errCount int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE batch_runs SET finished_at = NOW(), listings_sent = $1,
			no_desc_sent = $2, blocked_count = $3, error_count = $4,
			status = 'completed'
		 WHERE id = $5`,
		sent, noDescSent, blocked, errCount, id)
	if err != nil {
		return fmt.Errorf("finish batch run %d: %w", id, err)
	}
	return nil
}
