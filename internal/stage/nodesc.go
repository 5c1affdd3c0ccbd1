package stage

import (
	"context"
	"fmt"

	"github.com/phuslu/log"

	"github.com/PollyDrive/estate-sub000/internal/source"
	"github.com/PollyDrive/estate-sub000/internal/store"
)

// NoDescription reprocesses parked description-less rows. Marketplace rows
// go back to stage1 to wait for a richer scrape; group posts get their
// title substituted as the description and go through the stage 2 filters
// immediately.
type NoDescription struct {
	db     DB
	stage2 *Stage2
}

func NewNoDescription(db DB, stage2 *Stage2) *NoDescription {
	return &NoDescription{db: db, stage2: stage2}
}

type NoDescriptionResult struct {
	Processed    int
	BackToStage1 int
	Substituted  int
	Skipped      int
}

func (n *NoDescription) Run(ctx context.Context) (NoDescriptionResult, error) {
	rows, err := n.db.SelectByDisposition(ctx, store.DispositionNoDescription)
	if err != nil {
		return NoDescriptionResult{}, fmt.Errorf("nodesc: select: %w", err)
	}

	var res NoDescriptionResult
	for _, l := range rows {
		res.Processed++
		if l.TelegramSent {
			// Already delivered through the link digest.
			res.Skipped++
			continue
		}
		if err := n.processOne(ctx, l, &res); err != nil {
			log.Error().Err(err).Str("fb_id", l.FBID).Msg("nodesc record failed")
		}
	}

	log.Info().Int("processed", res.Processed).Int("back_to_stage1", res.BackToStage1).
		Int("substituted", res.Substituted).Int("skipped", res.Skipped).
		Msg("no-description pass done")
	return res, nil
}

func (n *NoDescription) processOne(ctx context.Context, l store.Listing, res *NoDescriptionResult) error {
	if l.Source == source.SourceMarketplace {
		if _, err := n.db.TransitionWithReason(ctx, l.FBID, l.Status, store.StatusStage1, nil); err != nil {
			return err
		}
		if err := n.db.SetDisposition(ctx, l.FBID, store.DispositionNone); err != nil {
			return err
		}
		res.BackToStage1++
		return nil
	}

	title := deref(l.Title)
	if title == "" {
		res.Skipped++
		return nil
	}
	if err := n.db.SetDescription(ctx, l.FBID, title); err != nil {
		return err
	}
	if err := n.db.SetDisposition(ctx, l.FBID, store.DispositionNone); err != nil {
		return err
	}
	l.Description = &title

	var s2res Stage2Result
	if err := n.stage2.processOne(ctx, l, &s2res); err != nil {
		return err
	}
	res.Substituted++
	return nil
}
