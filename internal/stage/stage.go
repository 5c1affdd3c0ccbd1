// Package stage implements the pipeline runners. Each stage is one
// synchronous pass over its candidate set: select rows in the expected
// status, classify, advance via conditional updates. Side flows (the
// no-description reprocessor, the cleanup sweep, the feedback listener)
// live here too.
package stage

import (
	"context"

	"github.com/PollyDrive/estate-sub000/internal/llm"
	"github.com/PollyDrive/estate-sub000/internal/store"
)

// DB is the persistence surface the runners use. *store.Store satisfies
// it; tests substitute an in-memory fake.
type DB interface {
	InsertListings(ctx context.Context, rows []store.Listing) (int, error)
	Get(ctx context.Context, fbID string) (store.Listing, error)
	GetByMessageID(ctx context.Context, messageID int64) (store.Listing, error)
	SelectByStatus(ctx context.Context, status store.Status, limit int) ([]store.Listing, error)
	SelectByStatuses(ctx context.Context, statuses []store.Status, limit int) ([]store.Listing, error)
	SelectByDisposition(ctx context.Context, d store.Disposition) ([]store.Listing, error)

	Transition(ctx context.Context, fbID string, from, to store.Status) (bool, error)
	TransitionWithReason(ctx context.Context, fbID string, from, to store.Status, reason *string) (bool, error)
	SetDisposition(ctx context.Context, fbID string, d store.Disposition) error
	ApplyExtraction(ctx context.Context, fbID string, from store.Status, ex store.Extraction, to store.Status, reason *string) (bool, error)
	MarkLLMResult(ctx context.Context, fbID string, from store.Status, passed bool, reason string, to store.Status) (bool, error)
	SetSummaryRU(ctx context.Context, fbID, summary string) error
	SetDescription(ctx context.Context, fbID, description string) error
	MarkSent(ctx context.Context, fbID string, messageID int64) error

	UpsertProfileResult(ctx context.Context, fbID, chatID string, passed bool, reason string) error
	MarkProfileRejected(ctx context.Context, fbID, chatID, reason string) error
	MarkProfileSent(ctx context.Context, fbID, chatID string, messageID int64) error
	SelectForProfileEvaluation(ctx context.Context, chatID string, includeRejected bool) ([]store.Listing, error)
	SelectUnsentPassed(ctx context.Context, chatID string, limit int) ([]store.Listing, error)
	DuplicateSentExists(ctx context.Context, chatID, fbID, phone, location string, bedrooms *int) (bool, error)

	StartBatchRun(ctx context.Context, runID, chatID string) (store.BatchRun, error)
	FinishBatchRun(ctx context.Context, id int64, sent, noDescSent, blocked, errCount int) error

	InsertReaction(ctx context.Context, messageID int64, fbID, chatID, emoji string) error
	ReactionStats(ctx context.Context) ([]store.ReactionTally, error)
	Stats(ctx context.Context) (store.PipelineStats, error)

	MoveToNonRelevant(ctx context.Context, fbID, reason string) error
	SelectArchivable(ctx context.Context, condition string) ([]store.Listing, error)
}

// RelevanceChecker is the stage 3 model surface.
type RelevanceChecker interface {
	CheckGeo(ctx context.Context, text string) (llm.GeoVerdict, error)
	CheckRelevance(ctx context.Context, text string) (llm.Verdict, error)
}

// SummaryGenerator produces the Russian delivery summary.
type SummaryGenerator interface {
	SummarizeRU(ctx context.Context, in llm.SummaryInput) (string, error)
}

// MessageSender is the delivery surface, satisfied by *telegram.Client.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) (int64, error)
}

func strp(s string) *string { return &s }

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
