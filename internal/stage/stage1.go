package stage

import (
	"context"
	"fmt"
	"time"

	"github.com/phuslu/log"

	"github.com/PollyDrive/estate-sub000/internal/config"
	"github.com/PollyDrive/estate-sub000/internal/criteria"
	"github.com/PollyDrive/estate-sub000/internal/parser"
	"github.com/PollyDrive/estate-sub000/internal/source"
	"github.com/PollyDrive/estate-sub000/internal/store"
)

// Stage1 pulls raw items from the scrape source, runs the cheap title-only
// filter and inserts the survivors. Re-imports of known ids are no-ops.
type Stage1 struct {
	db        DB
	src       source.ItemSource
	extractor *parser.Extractor
	criteria  criteria.Criteria
}

func NewStage1(db DB, src source.ItemSource, extractor *parser.Extractor, c criteria.Criteria) *Stage1 {
	return &Stage1{db: db, src: src, extractor: extractor, criteria: c}
}

// DeriveCriteria builds the global early filter. Explicit config values
// win; otherwise the widest profile bounds apply, so stage 1 never drops a
// listing some profile would have taken.
func DeriveCriteria(cfg config.CriteriaConfig, profiles []criteria.Profile) criteria.Criteria {
	var c criteria.Criteria
	if cfg.BedroomsMin > 0 {
		v := cfg.BedroomsMin
		c.BedroomsMin = &v
	}
	if cfg.PriceMax > 0 {
		v := cfg.PriceMax
		c.PriceMax = &v
	}
	for _, p := range profiles {
		if c.BedroomsMin == nil || p.BedroomsMin < *c.BedroomsMin {
			v := p.BedroomsMin
			c.BedroomsMin = &v
		}
		if c.PriceMax == nil || p.PriceMax > *c.PriceMax {
			v := p.PriceMax
			c.PriceMax = &v
		}
	}
	return c
}

// Stage1Result summarizes one run.
type Stage1Result struct {
	Fetched  int
	Filtered int
	Inserted int
}

func (s *Stage1) Run(ctx context.Context) (Stage1Result, error) {
	items, err := s.src.Fetch(ctx)
	if err != nil {
		return Stage1Result{}, fmt.Errorf("stage1: fetch: %w", err)
	}

	rows := source.Normalize(items, time.Now().UTC())
	res := Stage1Result{Fetched: len(rows)}

	var pass []store.Listing
	for _, l := range rows {
		text := deref(l.Title)
		if text == "" {
			text = deref(l.Description)
		}
		attrs := s.extractor.Parse(text)
		ok, reason := criteria.Match(attrs, s.criteria)
		if !ok {
			res.Filtered++
			log.Debug().Str("fb_id", l.FBID).Str("reason", reason).Msg("title filter rejected")
			continue
		}
		l.Status = store.StatusStage1New
		l.PassReason = strp(reason)
		pass = append(pass, l)
	}

	inserted, err := s.db.InsertListings(ctx, pass)
	if err != nil {
		return res, fmt.Errorf("stage1: insert: %w", err)
	}
	res.Inserted = inserted

	log.Info().Int("fetched", res.Fetched).Int("filtered", res.Filtered).
		Int("inserted", res.Inserted).Msg("stage 1 done")
	return res, nil
}
