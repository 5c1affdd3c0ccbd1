package stage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PollyDrive/estate-sub000/internal/store"
)

// fakeDB is an in-memory DB for runner tests. Selection and transition
// semantics mirror the SQL layer closely enough to exercise the runners'
// ordering and idempotence behavior.
type fakeDB struct {
	listings map[string]*store.Listing
	order    []string

	profiles   map[string]*store.ProfileResult // fb_id|chat_id
	reactions  []fakeReaction
	duplicates map[string]bool // fb_id -> already sent elsewhere
	archived   map[string]string

	batchSeq int64
	batches  []*fakeBatch

	stats   store.PipelineStats
	tallies []store.ReactionTally
}

type fakeReaction struct {
	messageID int64
	fbID      string
	chatID    string
	emoji     string
}

type fakeBatch struct {
	run      store.BatchRun
	finished bool
	sent     int
	noDesc   int
	blocked  int
	errs     int
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		listings:   map[string]*store.Listing{},
		profiles:   map[string]*store.ProfileResult{},
		duplicates: map[string]bool{},
		archived:   map[string]string{},
	}
}

func (f *fakeDB) add(l store.Listing) {
	cp := l
	f.listings[l.FBID] = &cp
	f.order = append(f.order, l.FBID)
}

func pkey(fbID, chatID string) string { return fbID + "|" + chatID }

func (f *fakeDB) InsertListings(_ context.Context, rows []store.Listing) (int, error) {
	n := 0
	for _, l := range rows {
		if _, ok := f.listings[l.FBID]; ok {
			continue
		}
		f.add(l)
		n++
	}
	return n, nil
}

func (f *fakeDB) Get(_ context.Context, fbID string) (store.Listing, error) {
	l, ok := f.listings[fbID]
	if !ok {
		return store.Listing{}, store.ErrNotFound
	}
	return *l, nil
}

func (f *fakeDB) GetByMessageID(_ context.Context, messageID int64) (store.Listing, error) {
	for _, p := range f.profiles {
		if p.TelegramMessageID != nil && *p.TelegramMessageID == messageID {
			return *f.listings[p.FBID], nil
		}
	}
	for _, id := range f.order {
		l := f.listings[id]
		if l.TelegramMessageID != nil && *l.TelegramMessageID == messageID {
			return *l, nil
		}
	}
	return store.Listing{}, store.ErrNotFound
}

func (f *fakeDB) SelectByStatus(ctx context.Context, status store.Status, limit int) ([]store.Listing, error) {
	return f.SelectByStatuses(ctx, []store.Status{status}, limit)
}

func (f *fakeDB) SelectByStatuses(_ context.Context, statuses []store.Status, limit int) ([]store.Listing, error) {
	var out []store.Listing
	for _, id := range f.order {
		l := f.listings[id]
		if l.Disposition != store.DispositionNone {
			continue
		}
		for _, st := range statuses {
			if l.Status == st {
				out = append(out, *l)
				break
			}
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeDB) SelectByDisposition(_ context.Context, d store.Disposition) ([]store.Listing, error) {
	var out []store.Listing
	for _, id := range f.order {
		if l := f.listings[id]; l.Disposition == d {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (f *fakeDB) Transition(_ context.Context, fbID string, from, to store.Status) (bool, error) {
	l, ok := f.listings[fbID]
	if !ok || l.Status != from {
		return false, nil
	}
	l.Status = to
	return true, nil
}

func (f *fakeDB) TransitionWithReason(ctx context.Context, fbID string, from, to store.Status, reason *string) (bool, error) {
	ok, err := f.Transition(ctx, fbID, from, to)
	if ok {
		f.listings[fbID].PassReason = reason
	}
	return ok, err
}

func (f *fakeDB) SetDisposition(_ context.Context, fbID string, d store.Disposition) error {
	l, ok := f.listings[fbID]
	if !ok {
		return store.ErrNotFound
	}
	l.Disposition = d
	return nil
}

func (f *fakeDB) ApplyExtraction(_ context.Context, fbID string, from store.Status, ex store.Extraction, to store.Status, reason *string) (bool, error) {
	l, ok := f.listings[fbID]
	if !ok || l.Status != from {
		return false, nil
	}
	if ex.Title != nil && deref(l.Title) == "" {
		l.Title = ex.Title
	}
	if ex.PhoneNumber != nil {
		l.PhoneNumber = ex.PhoneNumber
	}
	if ex.Bedrooms != nil {
		l.Bedrooms = ex.Bedrooms
	}
	if ex.PriceIDR != nil {
		l.PriceIDR = ex.PriceIDR
	}
	if ex.KitchenType != nil {
		l.KitchenType = ex.KitchenType
	}
	l.HasAC, l.HasWiFi, l.HasPool, l.HasParking = ex.HasAC, ex.HasWiFi, ex.HasPool, ex.HasParking
	if ex.Location != nil && deref(l.Location) == "" {
		l.Location = ex.Location
	}
	l.Status = to
	l.PassReason = reason
	return true, nil
}

func (f *fakeDB) MarkLLMResult(_ context.Context, fbID string, from store.Status, passed bool, reason string, to store.Status) (bool, error) {
	l, ok := f.listings[fbID]
	if !ok || l.Status != from {
		return false, nil
	}
	now := time.Now()
	l.Status = to
	l.LLMPassed = &passed
	l.LLMReason = &reason
	l.LLMAnalyzedAt = &now
	return true, nil
}

func (f *fakeDB) SetSummaryRU(_ context.Context, fbID, summary string) error {
	l, ok := f.listings[fbID]
	if !ok {
		return store.ErrNotFound
	}
	if l.SummaryRU == nil {
		l.SummaryRU = &summary
	}
	return nil
}

func (f *fakeDB) SetDescription(_ context.Context, fbID, description string) error {
	l, ok := f.listings[fbID]
	if !ok {
		return store.ErrNotFound
	}
	l.Description = &description
	return nil
}

func (f *fakeDB) MarkSent(_ context.Context, fbID string, messageID int64) error {
	l, ok := f.listings[fbID]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now()
	l.Status = store.StatusStage5Sent
	l.TelegramSent = true
	if l.TelegramSentAt == nil {
		l.TelegramSentAt = &now
	}
	if l.TelegramMessageID == nil {
		l.TelegramMessageID = &messageID
	}
	return nil
}

func (f *fakeDB) UpsertProfileResult(_ context.Context, fbID, chatID string, passed bool, reason string) error {
	k := pkey(fbID, chatID)
	if p, ok := f.profiles[k]; ok {
		p.Passed = passed
		p.Reason = reason
		p.EvaluatedAt = time.Now()
		return nil
	}
	f.profiles[k] = &store.ProfileResult{
		FBID: fbID, ChatID: chatID, Passed: passed, Reason: reason, EvaluatedAt: time.Now(),
	}
	return nil
}

func (f *fakeDB) MarkProfileRejected(_ context.Context, fbID, chatID, reason string) error {
	if p, ok := f.profiles[pkey(fbID, chatID)]; ok {
		p.Passed = false
		p.Reason = reason
	}
	return nil
}

func (f *fakeDB) MarkProfileSent(_ context.Context, fbID, chatID string, messageID int64) error {
	p, ok := f.profiles[pkey(fbID, chatID)]
	if !ok {
		return fmt.Errorf("no profile row %s/%s", fbID, chatID)
	}
	now := time.Now()
	p.SentAt = &now
	p.TelegramMessageID = &messageID
	return nil
}

func (f *fakeDB) SelectForProfileEvaluation(_ context.Context, chatID string, includeRejected bool) ([]store.Listing, error) {
	var out []store.Listing
	for _, id := range f.order {
		l := f.listings[id]
		if l.Disposition != store.DispositionNone ||
			(l.Status != store.StatusStage3 && l.Status != store.StatusStage4) {
			continue
		}
		p, ok := f.profiles[pkey(id, chatID)]
		switch {
		case !ok:
			out = append(out, *l)
		case p.SentAt == nil && (p.Passed || includeRejected):
			out = append(out, *l)
		}
	}
	return out, nil
}

func (f *fakeDB) SelectUnsentPassed(_ context.Context, chatID string, limit int) ([]store.Listing, error) {
	var out []store.Listing
	for _, id := range f.order {
		l := f.listings[id]
		if l.Status != store.StatusStage4 && l.Status != store.StatusStage5Sent {
			continue
		}
		p, ok := f.profiles[pkey(id, chatID)]
		if !ok || !p.Passed || p.SentAt != nil {
			continue
		}
		out = append(out, *l)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeDB) DuplicateSentExists(_ context.Context, _, fbID, _, _ string, _ *int) (bool, error) {
	return f.duplicates[fbID], nil
}

func (f *fakeDB) StartBatchRun(_ context.Context, runID, chatID string) (store.BatchRun, error) {
	f.batchSeq++
	b := &fakeBatch{run: store.BatchRun{
		ID: f.batchSeq, RunID: runID, BatchNumber: int(f.batchSeq), ChatID: chatID,
	}}
	f.batches = append(f.batches, b)
	return b.run, nil
}

func (f *fakeDB) FinishBatchRun(_ context.Context, id int64, sent, noDescSent, blocked, errCount int) error {
	for _, b := range f.batches {
		if b.run.ID == id {
			b.finished = true
			b.sent, b.noDesc, b.blocked, b.errs = sent, noDescSent, blocked, errCount
			return nil
		}
	}
	return fmt.Errorf("no batch %d", id)
}

func (f *fakeDB) InsertReaction(_ context.Context, messageID int64, fbID, chatID, emoji string) error {
	f.reactions = append(f.reactions, fakeReaction{messageID, fbID, chatID, emoji})
	return nil
}

func (f *fakeDB) ReactionStats(_ context.Context) ([]store.ReactionTally, error) {
	return f.tallies, nil
}

func (f *fakeDB) Stats(_ context.Context) (store.PipelineStats, error) {
	return f.stats, nil
}

func (f *fakeDB) MoveToNonRelevant(_ context.Context, fbID, reason string) error {
	if _, ok := f.listings[fbID]; !ok {
		return store.ErrNotFound
	}
	f.archived[fbID] = reason
	delete(f.listings, fbID)
	for i, id := range f.order {
		if id == fbID {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeDB) SelectArchivable(_ context.Context, condition string) ([]store.Listing, error) {
	var out []store.Listing
	for _, id := range f.order {
		l := f.listings[id]
		switch {
		case strings.Contains(condition, "title IS NULL"):
			if deref(l.Title) == "" && deref(l.Description) == "" {
				out = append(out, *l)
			}
		case strings.Contains(condition, "stage2_failed"):
			if l.Status == store.StatusStage2Failed {
				out = append(out, *l)
			}
		case strings.Contains(condition, "stage4_duplicate"):
			if l.Status == store.StatusStage4Duplicate {
				out = append(out, *l)
			}
		case strings.Contains(condition, "stage3_failed"):
			if l.Status == store.StatusStage3Failed {
				out = append(out, *l)
			}
		case strings.Contains(condition, "no_description"):
			if l.Disposition == store.DispositionNoDescription {
				out = append(out, *l)
			}
		}
	}
	return out, nil
}

var _ DB = (*fakeDB)(nil)
