// Package llm holds the model-backed filters: the relevance classifier with
// its strict verdict vocabulary, the Bali geo gate, and the Russian summary
// generator.
package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/PollyDrive/estate-sub000/internal/config"
)

// Completer is a single-prompt chat completion. Satisfied by the
// OpenAI-compatible client; tests inject fakes.
type Completer interface {
	Complete(ctx context.Context, model, prompt string, temperature float32, maxTokens int) (string, error)
}

const relevancePromptTemplate = `You are a strict real-estate listing filter for long-term family rentals in Bali.

Evaluate the listing below. Reply with EXACTLY ONE token and nothing else:
- PASS if it is a long-term monthly rental of a full house or villa with %d or more bedrooms
- REJECT_BEDROOMS if it has fewer bedrooms
- REJECT_PRICE if the monthly price clearly exceeds %.0f IDR
- REJECT_ROOM_ONLY if it rents a single room, kos/kost, or shared accommodation
- REJECT_TERM if it is a daily, weekly or yearly-only rental
- REJECT_SALE if the property is for sale, not rent
- REJECT_OTHER for anything else that does not fit

Listing:
%s`

const geoPromptTemplate = `Where is this rental property located? Reply with EXACTLY ONE token:
- BALI if it is located in Bali, Indonesia
- NOT_BALI if it is clearly located somewhere else
- UNKNOWN if the text does not say

Listing:
%s`

// Classifier runs the stage 3 model calls. Each instance owns its rate
// limiter, so concurrent jobs with separate classifiers do not share a
// delay budget.
type Classifier struct {
	completer Completer
	limiter   *rate.Limiter

	model       string
	geoModel    string
	temperature float32
	maxTokens   int

	bedroomsFloor int
	priceMax      float64
}

// NewClassifier builds a classifier from config. priceMax feeds the
// relevance prompt; zero disables the price wording.
func NewClassifier(c Completer, cfg config.LLMConfig, priceMax float64) *Classifier {
	limit := rate.Inf
	if cfg.RequestDelayMS > 0 {
		limit = rate.Every(time.Duration(cfg.RequestDelayMS) * time.Millisecond)
	}
	geoModel := cfg.GeoModel
	if geoModel == "" {
		geoModel = cfg.Model
	}
	return &Classifier{
		completer:     c,
		limiter:       rate.NewLimiter(limit, 1),
		model:         cfg.Model,
		geoModel:      geoModel,
		temperature:   cfg.Temperature,
		maxTokens:     cfg.MaxTokens,
		bedroomsFloor: cfg.BedroomsFloor,
		priceMax:      priceMax,
	}
}

// CheckGeo asks the geo gate for one listing. Transport errors propagate.
func (c *Classifier) CheckGeo(ctx context.Context, text string) (GeoVerdict, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return GeoUnknown, err
	}
	raw, err := c.completer.Complete(ctx, c.geoModel,
		fmt.Sprintf(geoPromptTemplate, text), c.temperature, c.maxTokens)
	if err != nil {
		return GeoUnknown, fmt.Errorf("geo check: %w", err)
	}
	return ParseGeoVerdict(raw), nil
}

// CheckRelevance asks for a relevance verdict. A transport error
// propagates unwrapped so the caller can fail-stop; an off-vocabulary reply
// returns ErrUnparseableVerdict, which callers treat as fail-closed.
func (c *Classifier) CheckRelevance(ctx context.Context, text string) (Verdict, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Verdict{}, err
	}
	raw, err := c.completer.Complete(ctx, c.model,
		fmt.Sprintf(relevancePromptTemplate, c.bedroomsFloor, c.priceMax, text),
		c.temperature, c.maxTokens)
	if err != nil {
		return Verdict{}, fmt.Errorf("relevance check: %w", err)
	}
	return ParseVerdict(raw)
}
