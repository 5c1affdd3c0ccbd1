package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ProfileResult is one row of listing_profiles: one audience's decision for
// one listing.
type ProfileResult struct {
	FBID              string
	ChatID            string
	Passed            bool
	Reason            string
	EvaluatedAt       time.Time
	SentAt            *time.Time
	TelegramMessageID *int64
}

// UpsertProfileResult records an evaluation. A re-evaluation overwrites the
// verdict and reason but never resets sent_at.
func (s *Store) UpsertProfileResult(ctx context.Context, fbID, chatID string, passed bool, reason string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO listing_profiles (fb_id, chat_id, passed, reason, evaluated_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (fb_id, chat_id) DO UPDATE
		 SET passed = EXCLUDED.passed, reason = EXCLUDED.reason, evaluated_at = NOW()`,
		fbID, chatID, passed, reason)
	if err != nil {
		return fmt.Errorf("upsert profile result %s/%s: %w", fbID, chatID, err)
	}
	return nil
}

// MarkProfileRejected flips an existing evaluation to rejected. Stage 5's
// guard uses it to demote rows it refuses to send.
func (s *Store) MarkProfileRejected(ctx context.Context, fbID, chatID, reason string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE listing_profiles SET passed = FALSE, reason = $1
		 WHERE fb_id = $2 AND chat_id = $3`,
		reason, fbID, chatID)
	if err != nil {
		return fmt.Errorf("mark profile rejected %s/%s: %w", fbID, chatID, err)
	}
	return nil
}

// MarkProfileSent stamps the delivery for one audience.
func (s *Store) MarkProfileSent(ctx context.Context, fbID, chatID string, messageID int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE listing_profiles SET sent_at = NOW(), telegram_message_id = $1
		 WHERE fb_id = $2 AND chat_id = $3`,
		messageID, fbID, chatID)
	if err != nil {
		return fmt.Errorf("mark profile sent %s/%s: %w", fbID, chatID, err)
	}
	return nil
}

// SelectForProfileEvaluation returns listings stage 4 should look at for a
// chat: rows in stage3 or stage4 that either have no evaluation for this
// chat yet, or passed earlier and are still unsent. Sent rows are final.
func (s *Store) SelectForProfileEvaluation(ctx context.Context, chatID string, includeRejected bool) ([]Listing, error) {
	cond := `(lp.id IS NULL OR (lp.passed AND lp.sent_at IS NULL))`
	if includeRejected {
		cond = `(lp.id IS NULL OR lp.sent_at IS NULL)`
	}
	q := `SELECT ` + listingColumns + ` FROM listings
		LEFT JOIN listing_profiles lp ON lp.fb_id = listings.fb_id AND lp.chat_id = $1
		WHERE listings.status IN ('stage3', 'stage4')
		  AND listings.disposition = ''
		  AND ` + cond + `
		ORDER BY listings.created_at ASC`
	return s.selectListings(ctx, q, chatID)
}

// SelectUnsentPassed returns the oldest PASS rows not yet delivered to a
// chat, capped at limit.
func (s *Store) SelectUnsentPassed(ctx context.Context, chatID string, limit int) ([]Listing, error) {
	q := `SELECT ` + listingColumns + ` FROM listings
		JOIN listing_profiles lp ON lp.fb_id = listings.fb_id
		WHERE lp.chat_id = $1 AND lp.passed AND lp.sent_at IS NULL
		  AND listings.status IN ('stage4', 'stage5_sent')
		  AND listings.disposition = ''
		ORDER BY listings.created_at ASC
		LIMIT $2`
	return s.selectListings(ctx, q, chatID, limit)
}

// DuplicateSentExists reports whether another listing with the same phone,
// location and bedroom count was already delivered to this chat.
func (s *Store) DuplicateSentExists(ctx context.Context, chatID, fbID, phone, location string, bedrooms *int) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1
		 FROM listing_profiles lp
		 JOIN listings l ON l.fb_id = lp.fb_id
		 WHERE lp.chat_id = $1
		   AND lp.sent_at IS NOT NULL
		   AND l.fb_id <> $2
		   AND COALESCE(l.phone_number, '') = $3
		   AND COALESCE(l.location, '') = $4
		   AND COALESCE(l.bedrooms, -1) = COALESCE($5, -1)
		 LIMIT 1`,
		chatID, fbID, phone, location, bedrooms).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("duplicate check %s/%s: %w", fbID, chatID, err)
	}
	return true, nil
}

// CountSentForChat counts deliveries to one chat.
func (s *Store) CountSentForChat(ctx context.Context, chatID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM listing_profiles WHERE chat_id = $1 AND sent_at IS NOT NULL`,
		chatID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count sent for chat %s: %w", chatID, err)
	}
	return n, nil
}
