// Package store is the Postgres persistence layer. One listings table keyed
// by fb_id carries every record through the pipeline; the status column is a
// closed state machine advanced only through conditional updates.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Status is the pipeline state of a listing. Only these values appear in
// listings.status.
type Status string

const (
	StatusNew             Status = "new"
	StatusStage1New       Status = "stage1_new"
	StatusStage1          Status = "stage1"
	StatusStage2          Status = "stage2"
	StatusStage2Failed    Status = "stage2_failed"
	StatusStage3          Status = "stage3"
	StatusStage3Failed    Status = "stage3_failed"
	StatusStage3RoomOnly  Status = "stage3_room_only"
	StatusStage4          Status = "stage4"
	StatusStage4Duplicate Status = "stage4_duplicate"
	StatusStage5Sent      Status = "stage5_sent"
)

// Disposition is the administrative side-channel, kept apart from Status so
// stage selection stays exhaustive over pipeline states.
type Disposition string

const (
	DispositionNone              Disposition = ""
	DispositionNoDescription     Disposition = "no_description"
	DispositionRejectedByCleanup Disposition = "rejected_by_cleanup"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// Listing mirrors one row of the listings table. Pointer fields are
// nullable columns.
type Listing struct {
	FBID        string
	Title       *string
	Description *string
	PriceRaw    *string // raw scraped price text
	PriceIDR    *float64
	Location    *string
	ListingURL  *string
	Source      string
	GroupID     *string
	PhoneNumber *string
	Bedrooms    *int
	KitchenType *string
	HasAC       bool
	HasWiFi     bool
	HasPool     bool
	HasParking  bool
	Utilities   *string
	Furniture   *string
	RentalTerm  *string

	Status      Status
	Disposition Disposition
	PassReason  *string

	LLMPassed     *bool
	LLMReason     *string
	LLMAnalyzedAt *time.Time

	SummaryRU *string

	TelegramSent      bool
	TelegramSentAt    *time.Time
	TelegramMessageID *int64

	ScrapedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store wraps a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to Postgres and pings it.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

// Init creates all tables when they do not exist yet.
func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS listings (
			fb_id               TEXT PRIMARY KEY,
			title               TEXT,
			description         TEXT,
			price               TEXT,
			price_extracted     DOUBLE PRECISION,
			location            TEXT,
			listing_url         TEXT,
			source              TEXT NOT NULL DEFAULT 'marketplace',
			group_id            TEXT,
			phone_number        TEXT,
			bedrooms            INTEGER,
			kitchen_type        TEXT,
			has_ac              BOOLEAN NOT NULL DEFAULT FALSE,
			has_wifi            BOOLEAN NOT NULL DEFAULT FALSE,
			has_pool            BOOLEAN NOT NULL DEFAULT FALSE,
			has_parking         BOOLEAN NOT NULL DEFAULT FALSE,
			utilities           TEXT,
			furniture           TEXT,
			rental_term         TEXT,
			status              TEXT NOT NULL DEFAULT 'new',
			disposition         TEXT NOT NULL DEFAULT '',
			pass_reason         TEXT,
			llm_passed          BOOLEAN,
			llm_reason          TEXT,
			llm_analyzed_at     TIMESTAMPTZ,
			summary_ru          TEXT,
			telegram_sent       BOOLEAN NOT NULL DEFAULT FALSE,
			telegram_sent_at    TIMESTAMPTZ,
			telegram_message_id BIGINT,
			scraped_at          TIMESTAMPTZ,
			created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_listings_status ON listings (status, disposition, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_listings_message_id ON listings (telegram_message_id)`,
		`CREATE TABLE IF NOT EXISTS listing_profiles (
			id           BIGSERIAL PRIMARY KEY,
			fb_id        TEXT NOT NULL REFERENCES listings (fb_id) ON DELETE CASCADE,
			chat_id      TEXT NOT NULL,
			passed       BOOLEAN NOT NULL,
			reason       TEXT,
			evaluated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			sent_at      TIMESTAMPTZ,
			telegram_message_id BIGINT,
			UNIQUE (fb_id, chat_id)
		)`,
		`CREATE TABLE IF NOT EXISTS feedback_reactions (
			id                  BIGSERIAL PRIMARY KEY,
			telegram_message_id BIGINT NOT NULL,
			fb_id               TEXT NOT NULL,
			chat_id             TEXT NOT NULL,
			emoji               TEXT NOT NULL,
			reacted_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS batch_runs (
			id            BIGSERIAL PRIMARY KEY,
			run_id        TEXT NOT NULL,
			batch_date    DATE NOT NULL,
			batch_number  INTEGER NOT NULL,
			chat_id       TEXT NOT NULL,
			started_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			finished_at   TIMESTAMPTZ,
			listings_sent INTEGER NOT NULL DEFAULT 0,
			no_desc_sent  INTEGER NOT NULL DEFAULT 0,
			blocked_count INTEGER NOT NULL DEFAULT 0,
			error_count   INTEGER NOT NULL DEFAULT 0,
			status        TEXT NOT NULL DEFAULT 'running'
		)`,
		`CREATE TABLE IF NOT EXISTS listing_non_relevant (
			fb_id           TEXT PRIMARY KEY,
			title           TEXT,
			description     TEXT,
			price           TEXT,
			price_extracted DOUBLE PRECISION,
			location        TEXT,
			listing_url     TEXT,
			source          TEXT,
			group_id        TEXT,
			phone_number    TEXT,
			bedrooms        INTEGER,
			kitchen_type    TEXT,
			has_ac          BOOLEAN,
			has_wifi        BOOLEAN,
			has_pool        BOOLEAN,
			has_parking     BOOLEAN,
			utilities       TEXT,
			furniture       TEXT,
			rental_term     TEXT,
			created_at      TIMESTAMPTZ,
			moved_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			move_reason     TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
