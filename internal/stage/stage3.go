package stage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/phuslu/log"

	"github.com/PollyDrive/estate-sub000/internal/config"
	"github.com/PollyDrive/estate-sub000/internal/llm"
	"github.com/PollyDrive/estate-sub000/internal/store"
)

// Stage3 runs the model classification pass over stage2 rows. Cheap
// deterministic gates run first so obvious rejects never spend a model
// call. A model transport error aborts the whole run; unprocessed rows
// stay at stage2 and the next run picks them up.
type Stage3 struct {
	db       DB
	checker  RelevanceChecker
	filters  config.FiltersConfig
	floor    int
	priceMax float64
}

func NewStage3(db DB, checker RelevanceChecker, filters config.FiltersConfig, llmCfg config.LLMConfig, priceMax float64) *Stage3 {
	return &Stage3{db: db, checker: checker, filters: filters, floor: llmCfg.BedroomsFloor, priceMax: priceMax}
}

type Stage3Result struct {
	Processed int
	Passed    int
	Rejected  int
	PreGated  int
}

// shortPricePattern matches a bare "IDR 150" style price with no
// separators. Such values are almost always millions with the zeros
// dropped, far over any sane monthly budget.
var shortPricePattern = regexp.MustCompile(`^IDR\s*(\d{1,3})(\s|$)`)

func (s *Stage3) Run(ctx context.Context) (Stage3Result, error) {
	rows, err := s.db.SelectByStatus(ctx, store.StatusStage2, 0)
	if err != nil {
		return Stage3Result{}, fmt.Errorf("stage3: select: %w", err)
	}

	var res Stage3Result
	for _, l := range rows {
		res.Processed++
		if err := s.processOne(ctx, l, &res); err != nil {
			// Transport failures stop the run so every unprocessed row
			// keeps its stage2 status for the next attempt.
			return res, fmt.Errorf("stage3: %s: %w", l.FBID, err)
		}
	}

	log.Info().Int("processed", res.Processed).Int("passed", res.Passed).
		Int("rejected", res.Rejected).Int("pre_gated", res.PreGated).
		Msg("stage 3 done")
	return res, nil
}

func (s *Stage3) processOne(ctx context.Context, l store.Listing, res *Stage3Result) error {
	if reason := s.preGate(l); reason != "" {
		if _, err := s.db.MarkLLMResult(ctx, l.FBID, store.StatusStage2, false, reason, store.StatusStage3Failed); err != nil {
			return err
		}
		res.PreGated++
		return nil
	}

	text := strings.TrimSpace(deref(l.Title) + "\n" + deref(l.Description))
	if loc := deref(l.Location); loc != "" {
		text += "\nLocation: " + loc
	}

	geo, err := s.checker.CheckGeo(ctx, text)
	if err != nil {
		return err
	}
	if geo == llm.GeoNotBali {
		if _, err := s.db.MarkLLMResult(ctx, l.FBID, store.StatusStage2, false, "REJECT_NOT_BALI", store.StatusStage3Failed); err != nil {
			return err
		}
		res.Rejected++
		return nil
	}

	v, err := s.checker.CheckRelevance(ctx, text)
	if errors.Is(err, llm.ErrUnparseableVerdict) {
		// Fail closed: an unreadable reply rejects the listing but does
		// not stop the run.
		reason := "REJECT_UNPARSEABLE: " + truncate(v.Raw, 200)
		if _, err := s.db.MarkLLMResult(ctx, l.FBID, store.StatusStage2, false, reason, store.StatusStage3Failed); err != nil {
			return err
		}
		res.Rejected++
		return nil
	}
	if err != nil {
		return err
	}

	pass, reason := llm.ApplyOverrides(v, l.Bedrooms, l.PriceIDR, s.floor, s.priceMax)
	switch {
	case pass:
		if _, err := s.db.MarkLLMResult(ctx, l.FBID, store.StatusStage2, true, reason, store.StatusStage3); err != nil {
			return err
		}
		res.Passed++
	case v.Category == "ROOM_ONLY":
		if _, err := s.db.MarkLLMResult(ctx, l.FBID, store.StatusStage2, false, reason, store.StatusStage3RoomOnly); err != nil {
			return err
		}
		res.Rejected++
	default:
		if _, err := s.db.MarkLLMResult(ctx, l.FBID, store.StatusStage2, false, reason, store.StatusStage3Failed); err != nil {
			return err
		}
		res.Rejected++
	}
	return nil
}

// preGate applies the deterministic rejections that need no model call.
// Returns the rejection reason or "".
func (s *Stage3) preGate(l store.Listing) string {
	if l.Bedrooms != nil && s.floor > 0 && *l.Bedrooms < s.floor {
		return fmt.Sprintf("REJECT_BEDROOMS (%d < %d)", *l.Bedrooms, s.floor)
	}

	text := strings.ToLower(deref(l.Location) + " " + deref(l.Title) + " " + deref(l.Description))
	for _, stop := range s.filters.StopLocations {
		token := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(stop, "in ")))
		if token != "" && strings.Contains(text, token) {
			return fmt.Sprintf("REJECT_STOP_LOCATION (%s)", token)
		}
	}

	if s.filters.ShortPrice.Enabled {
		if reason := s.shortPriceGate(l); reason != "" {
			return reason
		}
	}
	return ""
}

// shortPriceGate flags a raw price like "IDR 150": one to three digits, no
// separators, over the threshold, with nothing in the description backing
// it up as a real number.
func (s *Stage3) shortPriceGate(l store.Listing) string {
	raw := strings.TrimSpace(deref(l.PriceRaw))
	m := shortPricePattern.FindStringSubmatch(raw)
	if m == nil || strings.ContainsAny(raw, ",.") {
		return ""
	}
	value, err := strconv.Atoi(m[1])
	if err != nil || value <= s.filters.ShortPrice.Threshold {
		return ""
	}
	// A matching extracted price means the description corroborates the
	// number and it is probably genuine.
	if l.PriceIDR != nil {
		return ""
	}
	return fmt.Sprintf("REJECT_PRICE (suspicious short price %q)", raw)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
