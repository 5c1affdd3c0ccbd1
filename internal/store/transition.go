package store

import (
	"context"
	"fmt"
)

// Transition advances one listing from an expected status to a new one.
// Returns false when the row was not in the expected status, which means
// another run already moved it.
func (s *Store) Transition(ctx context.Context, fbID string, from, to Status) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE listings SET status = $1, updated_at = NOW()
		 WHERE fb_id = $2 AND status = $3`,
		string(to), fbID, string(from))
	if err != nil {
		return false, fmt.Errorf("transition %s %s->%s: %w", fbID, from, to, err)
	}
	return tag.RowsAffected() == 1, nil
}

// TransitionWithReason is Transition plus a pass_reason write. A nil reason
// clears the column.
func (s *Store) TransitionWithReason(ctx context.Context, fbID string, from, to Status, reason *string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE listings SET status = $1, pass_reason = $2, updated_at = NOW()
		 WHERE fb_id = $3 AND status = $4`,
		string(to), reason, fbID, string(from))
	if err != nil {
		return false, fmt.Errorf("transition %s %s->%s: %w", fbID, from, to, err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetDisposition parks or unparks a listing administratively without
// touching its pipeline status.
func (s *Store) SetDisposition(ctx context.Context, fbID string, d Disposition) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE listings SET disposition = $1, updated_at = NOW() WHERE fb_id = $2`,
		string(d), fbID)
	if err != nil {
		return fmt.Errorf("set disposition %s: %w", fbID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Extraction is the set of parsed fields stage 2 writes back. The update
// uses COALESCE so re-runs never blank a previously filled column.
type Extraction struct {
	Title       *string
	PhoneNumber *string
	Bedrooms    *int
	PriceIDR    *float64
	KitchenType *string
	HasAC       bool
	HasWiFi     bool
	HasPool     bool
	HasParking  bool
	Utilities   *string
	Furniture   *string
	RentalTerm  *string
	Location    *string
}

// ApplyExtraction writes parsed fields and moves the row to the given
// status, conditional on the expected current status.
func (s *Store) ApplyExtraction(ctx context.Context, fbID string, from Status, ex Extraction, to Status, reason *string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE listings SET
			title           = COALESCE(NULLIF($1, ''), title),
			phone_number    = COALESCE($2, phone_number),
			bedrooms        = COALESCE($3, bedrooms),
			price_extracted = COALESCE($4, price_extracted),
			kitchen_type    = COALESCE($5, kitchen_type),
			has_ac          = $6,
			has_wifi        = $7,
			has_pool        = $8,
			has_parking     = $9,
			utilities       = COALESCE($10, utilities),
			furniture       = COALESCE($11, furniture),
			rental_term     = COALESCE($12, rental_term),
			location        = COALESCE(NULLIF($13, ''), location),
			status          = $14,
			pass_reason     = $15,
			updated_at      = NOW()
		 WHERE fb_id = $16 AND status = $17`,
		strOrEmpty(ex.Title), ex.PhoneNumber, ex.Bedrooms, ex.PriceIDR,
		ex.KitchenType, ex.HasAC, ex.HasWiFi, ex.HasPool, ex.HasParking,
		ex.Utilities, ex.Furniture, ex.RentalTerm, strOrEmpty(ex.Location),
		string(to), reason, fbID, string(from))
	if err != nil {
		return false, fmt.Errorf("apply extraction %s: %w", fbID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkLLMResult records a relevance verdict and the resulting transition.
func (s *Store) MarkLLMResult(ctx context.Context, fbID string, from Status, passed bool, reason string, to Status) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE listings SET status = $1, llm_passed = $2, llm_reason = $3,
			llm_analyzed_at = NOW(), updated_at = NOW()
		 WHERE fb_id = $4 AND status = $5`,
		string(to), passed, reason, fbID, string(from))
	if err != nil {
		return false, fmt.Errorf("mark llm result %s: %w", fbID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetSummaryRU stores the generated summary only once; a second call with a
// different text is a no-op thanks to COALESCE.
func (s *Store) SetSummaryRU(ctx context.Context, fbID, summary string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE listings SET summary_ru = COALESCE(summary_ru, $1), updated_at = NOW()
		 WHERE fb_id = $2`,
		summary, fbID)
	if err != nil {
		return fmt.Errorf("set summary %s: %w", fbID, err)
	}
	return nil
}

// SetDescription replaces the description text. Used by the no-description
// flow when a group post's title has to stand in for the body.
func (s *Store) SetDescription(ctx context.Context, fbID, description string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE listings SET description = $1, updated_at = NOW() WHERE fb_id = $2`,
		description, fbID)
	if err != nil {
		return fmt.Errorf("set description %s: %w", fbID, err)
	}
	return nil
}

// MarkSent records a successful Telegram delivery. First-send fields keep
// their original values on re-sends to other chats.
func (s *Store) MarkSent(ctx context.Context, fbID string, messageID int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE listings SET
			status              = 'stage5_sent',
			telegram_sent       = TRUE,
			telegram_sent_at    = COALESCE(telegram_sent_at, NOW()),
			telegram_message_id = COALESCE(telegram_message_id, $1),
			updated_at          = NOW()
		 WHERE fb_id = $2`,
		messageID, fbID)
	if err != nil {
		return fmt.Errorf("mark sent %s: %w", fbID, err)
	}
	return nil
}

func strOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
