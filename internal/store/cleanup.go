package store

import (
	"context"
	"fmt"
)

// Move reasons written to listing_non_relevant.move_reason.
const (
	MoveReasonEmpty         = "Empty description and title"
	MoveReasonStage2Failed  = "Failed stage 2 filters"
	MoveReasonDuplicate     = "Duplicate listing"
	MoveReasonLLMFailed     = "Failed LLM analysis"
	MoveReasonNoDescription = "No description available"
)

// MoveToNonRelevant archives matching rows into listing_non_relevant and
// removes them from the live table. One transaction per row keeps a failed
// copy from deleting the original.
func (s *Store) MoveToNonRelevant(ctx context.Context, fbID, reason string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("move %s: begin: %w", fbID, err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO listing_non_relevant
			(fb_id, title, description, price, price_extracted, location,
			 listing_url, source, group_id, phone_number, bedrooms, kitchen_type,
			 has_ac, has_wifi, has_pool, has_parking, utilities, furniture,
			 rental_term, created_at, moved_at, move_reason)
		 SELECT fb_id, title, description, price, price_extracted, location,
			listing_url, source, group_id, phone_number, bedrooms, kitchen_type,
			has_ac, has_wifi, has_pool, has_parking, utilities, furniture,
			rental_term, created_at, NOW(), $2
		 FROM listings WHERE fb_id = $1
		 ON CONFLICT (fb_id) DO NOTHING`,
		fbID, reason)
	if err != nil {
		return fmt.Errorf("move %s: copy: %w", fbID, err)
	}
	if tag.RowsAffected() == 0 {
		// Already archived earlier; still drop the live row.
		var exists int
		if err := tx.QueryRow(ctx,
			`SELECT 1 FROM listing_non_relevant WHERE fb_id = $1`, fbID).Scan(&exists); err != nil {
			return fmt.Errorf("move %s: verify: %w", fbID, err)
		}
	}
	if _, err := tx.Exec(ctx, `DELETE FROM listings WHERE fb_id = $1`, fbID); err != nil {
		return fmt.Errorf("move %s: delete: %w", fbID, err)
	}
	return tx.Commit(ctx)
}

// SelectArchivable returns rows eligible for the non-relevant archive under
// the given SQL condition over the listings table. Conditions are fixed
// strings chosen by the caller, never user input.
func (s *Store) SelectArchivable(ctx context.Context, condition string) ([]Listing, error) {
	q := `SELECT ` + listingColumns + ` FROM listings WHERE ` + condition + ` ORDER BY created_at ASC`
	return s.selectListings(ctx, q)
}
