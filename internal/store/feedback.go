package store

import (
	"context"
	"fmt"
)

// InsertReaction appends one feedback reaction. The table is append-only;
// repeat reactions on the same message are separate rows.
func (s *Store) InsertReaction(ctx context.Context, messageID int64, fbID, chatID, emoji string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO feedback_reactions (telegram_message_id, fb_id, chat_id, emoji)
		 VALUES ($1, $2, $3, $4)`,
		messageID, fbID, chatID, emoji)
	if err != nil {
		return fmt.Errorf("insert reaction: %w", err)
	}
	return nil
}

// ReactionTally is the per-emoji feedback count.
type ReactionTally struct {
	Emoji     string
	Listings  int
	Reactions int
}

// ReactionStats tallies reactions per emoji, distinct listings and totals.
func (s *Store) ReactionStats(ctx context.Context) ([]ReactionTally, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT emoji, COUNT(DISTINCT fb_id), COUNT(*)
		 FROM feedback_reactions GROUP BY emoji ORDER BY emoji`)
	if err != nil {
		return nil, fmt.Errorf("reaction stats: %w", err)
	}
	defer rows.Close()

	var out []ReactionTally
	for rows.Next() {
		var t ReactionTally
		if err := rows.Scan(&t.Emoji, &t.Listings, &t.Reactions); err != nil {
			return nil, fmt.Errorf("scan reaction tally: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
