package stage

import (
	"context"
	"fmt"

	"github.com/phuslu/log"

	"github.com/PollyDrive/estate-sub000/internal/criteria"
	"github.com/PollyDrive/estate-sub000/internal/llm"
	"github.com/PollyDrive/estate-sub000/internal/store"
)

// Stage4 evaluates candidates against one audience profile. The summary is
// generated once per listing no matter how many profiles evaluate it, and
// every evaluation writes a listing_profiles row whether it passed or not.
type Stage4 struct {
	db         DB
	summarizer SummaryGenerator // optional
	profile    criteria.Profile
}

func NewStage4(db DB, summarizer SummaryGenerator, profile criteria.Profile) *Stage4 {
	return &Stage4{db: db, summarizer: summarizer, profile: profile}
}

type Stage4Result struct {
	Evaluated int
	Passed    int
	Rejected  int
}

func (s *Stage4) Run(ctx context.Context) (Stage4Result, error) {
	rows, err := s.db.SelectForProfileEvaluation(ctx, s.profile.ChatID, s.profile.ReevaluateRejected)
	if err != nil {
		return Stage4Result{}, fmt.Errorf("stage4 %s: select: %w", s.profile.Name, err)
	}

	var res Stage4Result
	for _, l := range rows {
		res.Evaluated++
		pass, reason := criteria.MatchProfile(criteria.ListingFacts{
			Bedrooms: l.Bedrooms,
			Price:    l.PriceIDR,
			Location: deref(l.Location),
		}, s.profile, deref(l.Description))

		if pass {
			if err := s.ensureSummary(ctx, l); err != nil {
				// The selection query picks this row up again next run,
				// so a failed summary only delays delivery.
				log.Warn().Err(err).Str("fb_id", l.FBID).Msg("summary generation failed")
			}
			if _, err := s.db.Transition(ctx, l.FBID, store.StatusStage3, store.StatusStage4); err != nil {
				return res, fmt.Errorf("stage4 %s: promote %s: %w", s.profile.Name, l.FBID, err)
			}
			res.Passed++
		} else {
			res.Rejected++
		}

		if err := s.db.UpsertProfileResult(ctx, l.FBID, s.profile.ChatID, pass, reason); err != nil {
			return res, fmt.Errorf("stage4 %s: %w", s.profile.Name, err)
		}
	}

	log.Info().Str("profile", s.profile.Name).Int("evaluated", res.Evaluated).
		Int("passed", res.Passed).Int("rejected", res.Rejected).Msg("stage 4 done")
	return res, nil
}

func (s *Stage4) ensureSummary(ctx context.Context, l store.Listing) error {
	if l.SummaryRU != nil || s.summarizer == nil {
		return nil
	}
	summary, err := s.summarizer.SummarizeRU(ctx, llm.SummaryInput{
		Title:       deref(l.Title),
		PriceRaw:    deref(l.PriceRaw),
		Location:    deref(l.Location),
		Description: deref(l.Description),
	})
	if err != nil {
		return err
	}
	return s.db.SetSummaryRU(ctx, l.FBID, summary)
}
