package stage

import (
	"context"
	"fmt"
	"strings"

	"github.com/phuslu/log"

	"github.com/PollyDrive/estate-sub000/internal/config"
	"github.com/PollyDrive/estate-sub000/internal/parser"
	"github.com/PollyDrive/estate-sub000/internal/store"
)

// Cleanup is the administrative sweep: it reclassifies stage1_new rows
// that slipped past the title filter, then archives dead rows into
// listing_non_relevant.
type Cleanup struct {
	db        DB
	extractor *parser.Extractor
	filters   config.FiltersConfig

	// Optional archive passes, off by default since both destroy
	// reprocessing opportunities.
	ArchiveLLMFailed     bool
	ArchiveNoDescription bool
}

func NewCleanup(db DB, extractor *parser.Extractor, filters config.FiltersConfig) *Cleanup {
	return &Cleanup{db: db, extractor: extractor, filters: filters}
}

type CleanupResult struct {
	Reclassified int
	Archived     int
}

func (c *Cleanup) Run(ctx context.Context) (CleanupResult, error) {
	var res CleanupResult

	reclassified, err := c.sweepStage1New(ctx)
	if err != nil {
		return res, err
	}
	res.Reclassified = reclassified

	archived, err := c.archive(ctx)
	if err != nil {
		return res, err
	}
	res.Archived = archived

	log.Info().Int("reclassified", res.Reclassified).Int("archived", res.Archived).
		Msg("cleanup done")
	return res, nil
}

// sweepStage1New re-checks stage1_new rows against the current stop lists.
// Rules added after the original import catch older rows here.
func (c *Cleanup) sweepStage1New(ctx context.Context) (int, error) {
	rows, err := c.db.SelectByStatus(ctx, store.StatusStage1New, 0)
	if err != nil {
		return 0, fmt.Errorf("cleanup: select: %w", err)
	}

	count := 0
	for _, l := range rows {
		if !c.shouldReject(l) {
			continue
		}
		if err := c.db.SetDisposition(ctx, l.FBID, store.DispositionRejectedByCleanup); err != nil {
			log.Error().Err(err).Str("fb_id", l.FBID).Msg("cleanup reclassify failed")
			continue
		}
		count++
	}
	return count, nil
}

func (c *Cleanup) shouldReject(l store.Listing) bool {
	if title := deref(l.Title); title != "" && c.extractor.HasStopWord(title) {
		return true
	}
	loc := strings.ToLower(deref(l.Location))
	if loc == "" {
		return false
	}
	for _, stop := range c.filters.StopLocations {
		if stop != "" && strings.Contains(loc, strings.ToLower(stop)) {
			return true
		}
	}
	return false
}

// archive moves terminal rows out of the live table, one transaction per
// row.
func (c *Cleanup) archive(ctx context.Context) (int, error) {
	passes := []struct {
		condition string
		reason    string
	}{
		{`(title IS NULL OR title = '') AND (description IS NULL OR description = '')`, store.MoveReasonEmpty},
		{`status = 'stage2_failed'`, store.MoveReasonStage2Failed},
		{`status = 'stage4_duplicate'`, store.MoveReasonDuplicate},
	}
	if c.ArchiveLLMFailed {
		passes = append(passes, struct {
			condition string
			reason    string
		}{`status = 'stage3_failed'`, store.MoveReasonLLMFailed})
	}
	if c.ArchiveNoDescription {
		passes = append(passes, struct {
			condition string
			reason    string
		}{`disposition = 'no_description'`, store.MoveReasonNoDescription})
	}

	moved := 0
	for _, p := range passes {
		rows, err := c.db.SelectArchivable(ctx, p.condition)
		if err != nil {
			return moved, fmt.Errorf("cleanup: select archivable: %w", err)
		}
		for _, l := range rows {
			if err := c.db.MoveToNonRelevant(ctx, l.FBID, p.reason); err != nil {
				log.Error().Err(err).Str("fb_id", l.FBID).Msg("archive move failed")
				continue
			}
			moved++
		}
	}
	return moved, nil
}
