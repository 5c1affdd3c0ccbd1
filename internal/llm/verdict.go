package llm

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnparseableVerdict marks a model reply outside the closed vocabulary.
// Callers treat it as a fail-closed rejection, distinct from a transport
// error and distinct from an explicit REJECT.
var ErrUnparseableVerdict = errors.New("llm: unparseable verdict")

// Verdict is a parsed relevance reply.
type Verdict struct {
	Pass     bool
	Category string // REJECT category, empty on pass
	Raw      string
}

var rejectPattern = regexp.MustCompile(`^REJECT_([A-Z_]+)$`)

// ParseVerdict accepts exactly "PASS" or "REJECT_<CATEGORY>" after
// whitespace trimming. Everything else is unparseable: a verbose reply that
// merely contains the word PASS must not count as a pass.
func ParseVerdict(raw string) (Verdict, error) {
	token := strings.ToUpper(strings.TrimSpace(raw))
	if token == "PASS" {
		return Verdict{Pass: true, Raw: raw}, nil
	}
	if m := rejectPattern.FindStringSubmatch(token); m != nil {
		return Verdict{Category: m[1], Raw: raw}, nil
	}
	return Verdict{Raw: raw}, fmt.Errorf("%w: %q", ErrUnparseableVerdict, raw)
}

// GeoVerdict is the location gate's reply.
type GeoVerdict string

const (
	GeoBali    GeoVerdict = "BALI"
	GeoNotBali GeoVerdict = "NOT_BALI"
	GeoUnknown GeoVerdict = "UNKNOWN"
)

// ParseGeoVerdict accepts the three geo tokens. An off-vocabulary reply
// maps to UNKNOWN rather than an error: the geo gate only acts on an
// explicit NOT_BALI, so an unreadable reply must not block a listing.
func ParseGeoVerdict(raw string) GeoVerdict {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "BALI":
		return GeoBali
	case "NOT_BALI":
		return GeoNotBali
	default:
		return GeoUnknown
	}
}

// Override reasons for deterministic reversals of model rejects.
const (
	ReasonOverrideBedrooms = "PASS_OVERRIDE_BEDROOMS"
	ReasonOverridePrice    = "PASS_OVERRIDE_PRICE"
)

// ApplyOverrides reverses a REJECT_BEDROOMS or REJECT_PRICE verdict when
// the structured fields prove the model wrong. Only these two categories
// are overridable; explicit extracted values outrank the model's reading of
// the text. Returns the final pass decision and reason.
func ApplyOverrides(v Verdict, bedrooms *int, priceIDR *float64, bedroomsFloor int, priceMax float64) (bool, string) {
	if v.Pass {
		return true, "PASS"
	}
	reason := "REJECT_" + v.Category
	switch v.Category {
	case "BEDROOMS":
		if bedrooms != nil && *bedrooms >= bedroomsFloor {
			return true, ReasonOverrideBedrooms
		}
	case "PRICE":
		if priceIDR != nil && priceMax > 0 && *priceIDR <= priceMax {
			return true, ReasonOverridePrice
		}
	}
	return false, reason
}
