package stage

import (
	"context"
	"fmt"
	"strings"

	"github.com/phuslu/log"

	"github.com/PollyDrive/estate-sub000/internal/config"
	"github.com/PollyDrive/estate-sub000/internal/criteria"
	"github.com/PollyDrive/estate-sub000/internal/parser"
	"github.com/PollyDrive/estate-sub000/internal/source"
	"github.com/PollyDrive/estate-sub000/internal/store"
)

// Stage2 runs the full-text extraction pass. It selects stage1/stage1_new
// rows, fills missing descriptions from the detail source when one is
// configured, extracts structured fields and applies the full filter set.
type Stage2 struct {
	db        DB
	details   source.DetailSource // optional
	extractor *parser.Extractor
	criteria  criteria.Criteria
	filters   config.FiltersConfig
}

func NewStage2(db DB, details source.DetailSource, extractor *parser.Extractor, c criteria.Criteria, filters config.FiltersConfig) *Stage2 {
	return &Stage2{db: db, details: details, extractor: extractor, criteria: c, filters: filters}
}

type Stage2Result struct {
	Processed     int
	Passed        int
	Failed        int
	NoDescription int
	BackToStage1  int
}

func (s *Stage2) Run(ctx context.Context) (Stage2Result, error) {
	rows, err := s.db.SelectByStatuses(ctx, []store.Status{store.StatusStage1New, store.StatusStage1}, 0)
	if err != nil {
		return Stage2Result{}, fmt.Errorf("stage2: select: %w", err)
	}

	var res Stage2Result
	for _, l := range rows {
		res.Processed++
		if err := s.processOne(ctx, l, &res); err != nil {
			log.Error().Err(err).Str("fb_id", l.FBID).Msg("stage 2 record failed")
		}
	}

	log.Info().Int("processed", res.Processed).Int("passed", res.Passed).
		Int("failed", res.Failed).Int("no_description", res.NoDescription).
		Msg("stage 2 done")
	return res, nil
}

func (s *Stage2) processOne(ctx context.Context, l store.Listing, res *Stage2Result) error {
	desc := deref(l.Description)

	if desc == "" && s.details != nil && l.ListingURL != nil {
		it, err := s.details.FetchDetail(ctx, *l.ListingURL)
		if err != nil {
			log.Warn().Err(err).Str("fb_id", l.FBID).Msg("detail fetch failed")
		} else if t := strings.TrimSpace(it.Text); t != "" {
			if err := s.db.SetDescription(ctx, l.FBID, t); err != nil {
				return err
			}
			desc = t
		}
	}

	if desc == "" {
		return s.handleNoDescription(ctx, l, res)
	}

	combined := deref(l.Title) + "\n" + desc
	if reason := s.hardStops(combined, deref(l.Location)); reason != "" {
		ex := s.extraction(l, combined, desc)
		if _, err := s.db.ApplyExtraction(ctx, l.FBID, l.Status, ex, store.StatusStage2Failed, strp(reason)); err != nil {
			return err
		}
		res.Failed++
		return nil
	}

	attrs := s.extractor.Parse(combined)
	ok, reason := criteria.Match(attrs, s.criteria)
	ex := s.extraction(l, combined, desc)
	to := store.StatusStage2
	if !ok {
		to = store.StatusStage2Failed
		res.Failed++
	} else {
		res.Passed++
	}
	_, err := s.db.ApplyExtraction(ctx, l.FBID, l.Status, ex, to, strp(reason))
	return err
}

// handleNoDescription parks group posts for the substitution flow and
// sends marketplace rows back to stage1 to wait for a richer scrape.
func (s *Stage2) handleNoDescription(ctx context.Context, l store.Listing, res *Stage2Result) error {
	if l.Source == source.SourceMarketplace {
		if _, err := s.db.TransitionWithReason(ctx, l.FBID, l.Status, store.StatusStage1, nil); err != nil {
			return err
		}
		res.BackToStage1++
		return nil
	}
	if err := s.db.SetDisposition(ctx, l.FBID, store.DispositionNoDescription); err != nil {
		return err
	}
	res.NoDescription++
	return nil
}

// hardStops applies the configured stop lists before any criteria math.
// Returns the rejection reason or "".
func (s *Stage2) hardStops(combined, location string) string {
	lower := strings.ToLower(combined)

	if s.extractor.HasStopWord(combined) {
		return "Stop word: tanah/dijual/sale"
	}
	for _, w := range s.filters.StopWordsDetailed {
		if w != "" && strings.Contains(lower, strings.ToLower(w)) {
			return fmt.Sprintf("Stop word (detailed): %s", w)
		}
	}
	locText := strings.ToLower(location) + " " + lower
	for _, loc := range s.filters.StopLocations {
		if loc != "" && strings.Contains(locText, strings.ToLower(loc)) {
			return fmt.Sprintf("Stop location: %s", loc)
		}
	}
	if len(s.filters.RequiredWords) > 0 {
		found := false
		for _, w := range s.filters.RequiredWords {
			if w != "" && strings.Contains(lower, strings.ToLower(w)) {
				found = true
				break
			}
		}
		if !found {
			return "No required words found"
		}
	}
	return ""
}

func (s *Stage2) extraction(l store.Listing, combined, desc string) store.Extraction {
	attrs := s.extractor.Parse(combined)

	var ex store.Extraction
	if deref(l.Title) == "" {
		if t := parser.TitleFromDescription(desc, 100); t != "" {
			ex.Title = &t
		}
	}
	if phones := parser.ExtractPhones(combined); len(phones) > 0 {
		ex.PhoneNumber = &phones[0]
	}
	ex.Bedrooms = attrs.Bedrooms
	ex.PriceIDR = attrs.Price
	if attrs.KitchenType != "" {
		ex.KitchenType = &attrs.KitchenType
	}
	ex.HasAC = attrs.HasAC
	ex.HasWiFi = attrs.HasWiFi
	ex.HasPool = attrs.HasPool
	ex.HasParking = attrs.HasParking
	if attrs.Utilities != "" {
		ex.Utilities = &attrs.Utilities
	}
	if attrs.Furniture != "" {
		ex.Furniture = &attrs.Furniture
	}
	if attrs.RentalTerm != "" {
		ex.RentalTerm = &attrs.RentalTerm
	}
	if deref(l.Location) == "" {
		if loc := parser.ExtractLocation(combined); loc != "" {
			ex.Location = &loc
		}
	}
	return ex
}
