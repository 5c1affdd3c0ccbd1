package store

import (
	"context"
	"fmt"
)

// PipelineStats is the cumulative stage breakdown used by the /stats
// command and batch reports.
type PipelineStats struct {
	ListingsTotal int
	NonRelevant   int
	Early         int // stage1 / stage1_new / stage2
	FilterFailed  int // stage2_failed
	LLMFailed     int // stage3_failed
	RoomOnly      int // stage3_room_only
	Waiting       int // stage4, passed everything
	Duplicates    int // stage4_duplicate
	Sent          int // stage5_sent
}

// Stats computes the pipeline breakdown in two queries.
func (s *Store) Stats(ctx context.Context) (PipelineStats, error) {
	var st PipelineStats
	err := s.pool.QueryRow(ctx,
		`SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status IN ('new', 'stage1', 'stage1_new', 'stage2')),
			COUNT(*) FILTER (WHERE status = 'stage2_failed'),
			COUNT(*) FILTER (WHERE status = 'stage3_failed'),
			COUNT(*) FILTER (WHERE status = 'stage3_room_only'),
			COUNT(*) FILTER (WHERE status = 'stage4'),
			COUNT(*) FILTER (WHERE status = 'stage4_duplicate'),
			COUNT(*) FILTER (WHERE status = 'stage5_sent')
		 FROM listings`).Scan(
		&st.ListingsTotal, &st.Early, &st.FilterFailed, &st.LLMFailed,
		&st.RoomOnly, &st.Waiting, &st.Duplicates, &st.Sent)
	if err != nil {
		return PipelineStats{}, fmt.Errorf("stats: %w", err)
	}
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM listing_non_relevant`).Scan(&st.NonRelevant); err != nil {
		return PipelineStats{}, fmt.Errorf("stats non_relevant: %w", err)
	}
	return st, nil
}
