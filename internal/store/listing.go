package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const listingColumns = `fb_id, title, description, price, price_extracted, location,
	listing_url, source, group_id, phone_number, bedrooms, kitchen_type,
	has_ac, has_wifi, has_pool, has_parking, utilities, furniture, rental_term,
	status, disposition, pass_reason, llm_passed, llm_reason, llm_analyzed_at,
	summary_ru, telegram_sent, telegram_sent_at, telegram_message_id,
	scraped_at, created_at, updated_at`

func scanListing(row pgx.Row) (Listing, error) {
	var l Listing
	err := row.Scan(
		&l.FBID, &l.Title, &l.Description, &l.PriceRaw, &l.PriceIDR, &l.Location,
		&l.ListingURL, &l.Source, &l.GroupID, &l.PhoneNumber, &l.Bedrooms, &l.KitchenType,
		&l.HasAC, &l.HasWiFi, &l.HasPool, &l.HasParking, &l.Utilities, &l.Furniture, &l.RentalTerm,
		&l.Status, &l.Disposition, &l.PassReason, &l.LLMPassed, &l.LLMReason, &l.LLMAnalyzedAt,
		&l.SummaryRU, &l.TelegramSent, &l.TelegramSentAt, &l.TelegramMessageID,
		&l.ScrapedAt, &l.CreatedAt, &l.UpdatedAt,
	)
	return l, err
}

// InsertListings inserts rows in one batch with conflict-ignore on fb_id, so
// re-imports are no-ops. Returns the count of actually inserted rows.
func (s *Store) InsertListings(ctx context.Context, rows []Listing) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	const q = `INSERT INTO listings
		(fb_id, title, description, price, location, listing_url, source, group_id,
		 status, disposition, pass_reason, scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (fb_id) DO NOTHING`

	batch := &pgx.Batch{}
	for _, l := range rows {
		batch.Queue(q,
			l.FBID, l.Title, l.Description, l.PriceRaw, l.Location, l.ListingURL,
			l.Source, l.GroupID, string(l.Status), string(l.Disposition),
			l.PassReason, l.ScrapedAt)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for range rows {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("insert listing: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// Get loads one listing by fb_id.
func (s *Store) Get(ctx context.Context, fbID string) (Listing, error) {
	q := `SELECT ` + listingColumns + ` FROM listings WHERE fb_id = $1`
	l, err := scanListing(s.pool.QueryRow(ctx, q, fbID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Listing{}, ErrNotFound
	}
	if err != nil {
		return Listing{}, fmt.Errorf("get listing %s: %w", fbID, err)
	}
	return l, nil
}

// GetByMessageID resolves a listing from a delivered Telegram message.
// The per-profile message id is checked first since every send records one
// there; the listings column only holds the first send.
func (s *Store) GetByMessageID(ctx context.Context, messageID int64) (Listing, error) {
	q := `SELECT ` + listingColumns + ` FROM listings
		WHERE fb_id IN (SELECT fb_id FROM listing_profiles WHERE telegram_message_id = $1)
		   OR telegram_message_id = $1
		LIMIT 1`
	l, err := scanListing(s.pool.QueryRow(ctx, q, messageID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Listing{}, ErrNotFound
	}
	if err != nil {
		return Listing{}, fmt.Errorf("get listing by message %d: %w", messageID, err)
	}
	return l, nil
}

// SelectByStatus returns normal-disposition rows in a status, oldest first.
// limit <= 0 means no limit.
func (s *Store) SelectByStatus(ctx context.Context, status Status, limit int) ([]Listing, error) {
	q := `SELECT ` + listingColumns + ` FROM listings
		WHERE status = $1 AND disposition = '' ORDER BY created_at ASC`
	args := []any{string(status)}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	return s.selectListings(ctx, q, args...)
}

// SelectByStatuses is SelectByStatus over several states.
func (s *Store) SelectByStatuses(ctx context.Context, statuses []Status, limit int) ([]Listing, error) {
	vals := make([]string, len(statuses))
	for i, st := range statuses {
		vals[i] = string(st)
	}
	q := `SELECT ` + listingColumns + ` FROM listings
		WHERE status = ANY($1) AND disposition = '' ORDER BY created_at ASC`
	args := []any{vals}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	return s.selectListings(ctx, q, args...)
}

// SelectByDisposition returns rows parked in an administrative state,
// grouped by source for stable processing order.
func (s *Store) SelectByDisposition(ctx context.Context, d Disposition) ([]Listing, error) {
	q := `SELECT ` + listingColumns + ` FROM listings
		WHERE disposition = $1 ORDER BY source, created_at ASC`
	return s.selectListings(ctx, q, string(d))
}

func (s *Store) selectListings(ctx context.Context, q string, args ...any) ([]Listing, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select listings: %w", err)
	}
	defer rows.Close()

	var out []Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
