// Package criteria holds the deterministic filter predicates: the global
// early-stage matcher and the per-audience profile matcher. Both return a
// verdict plus a machine-parseable reason string.
package criteria

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PollyDrive/estate-sub000/internal/parser"
)

// Criteria is the global filter applied before any audience matching.
// Nil fields mean "no constraint".
type Criteria struct {
	BedroomsMin *int
	PriceMax    *float64
}

// Match runs the ordered early checks against extracted attributes. Unknown
// bedrooms and unknown price pass through here; only explicit violations
// reject. Checks short-circuit in a fixed order so the reason always names
// the first failing rule.
func Match(a parser.Attributes, c Criteria) (bool, string) {
	if a.HasStopWord {
		return false, "Stop word: tanah/dijual/sale"
	}
	if a.RentalTerm == "daily" || a.RentalTerm == "weekly" {
		return false, fmt.Sprintf("Rental term: %s", a.RentalTerm)
	}
	if c.BedroomsMin != nil && a.Bedrooms != nil && *a.Bedrooms < *c.BedroomsMin {
		return false, fmt.Sprintf("Bedrooms: %d (need %d+)", *a.Bedrooms, *c.BedroomsMin)
	}
	if c.PriceMax != nil && a.Price != nil && *a.Price > *c.PriceMax {
		return false, fmt.Sprintf("Price %.0f > %.0f", *a.Price, *c.PriceMax)
	}
	return true, "Passed filters"
}

// Profile is one audience's delivery rules.
type Profile struct {
	Name             string   `toml:"name" validate:"required"`
	ChatID           string   `toml:"chat_id" validate:"required"`
	BedroomsMin      int      `toml:"bedrooms_min" validate:"min=0"`
	BedroomsMax      *int     `toml:"bedrooms_max"`
	PriceMax         float64  `toml:"price_max" validate:"gt=0"`
	AllowedLocations []string `toml:"allowed_locations"`
	StopLocations    []string `toml:"stop_locations"`

	// Re-evaluate previously rejected listings on later runs. Off by
	// default so a recorded rejection stays an auditable decision.
	ReevaluateRejected bool `toml:"reevaluate_rejected"`
}

// ListingFacts is the slice of a stored listing the profile matcher needs.
type ListingFacts struct {
	Bedrooms *int
	Price    *float64
	Location string
}

// MatchProfile checks one listing against one profile. The description is
// the fallback location search text when the structured location is empty.
//
// Reason prefixes are stable: REJECT_BEDROOMS, REJECT_PRICE,
// REJECT_LOCATION, REJECT_STOP_LOCATION, or PASS.
func MatchProfile(l ListingFacts, p Profile, description string) (bool, string) {
	searchText := strings.ToLower(strings.TrimSpace(l.Location))
	if searchText == "" {
		searchText = strings.ToLower(description)
	}

	// Unknown bedrooms cannot be verified against a real constraint, so a
	// constrained profile rejects them. A profile that takes any bedroom
	// count (min 1, no max) lets unknowns through.
	if l.Bedrooms == nil {
		if p.BedroomsMin > 1 || p.BedroomsMax != nil {
			return false, fmt.Sprintf("REJECT_BEDROOMS (unknown, profile requires min=%d max=%s)",
				p.BedroomsMin, fmtIntp(p.BedroomsMax))
		}
	} else {
		if *l.Bedrooms < p.BedroomsMin {
			return false, fmt.Sprintf("REJECT_BEDROOMS (%d < %d)", *l.Bedrooms, p.BedroomsMin)
		}
		if p.BedroomsMax != nil && *l.Bedrooms > *p.BedroomsMax {
			return false, fmt.Sprintf("REJECT_BEDROOMS (%d > %d)", *l.Bedrooms, *p.BedroomsMax)
		}
	}

	// Unknown price passes; only a stated over-budget price rejects.
	if l.Price != nil && *l.Price > p.PriceMax {
		return false, fmt.Sprintf("REJECT_PRICE (%.0f > %.0f)", *l.Price, p.PriceMax)
	}

	// An allow-list demands a positive signal. No location text at all
	// means the area cannot be confirmed, which is a reject, not a pass.
	if len(p.AllowedLocations) > 0 {
		if searchText == "" {
			return false, fmt.Sprintf("REJECT_LOCATION (no location text, profile %q requires known area)", p.Name)
		}
		found := false
		for _, a := range p.AllowedLocations {
			if strings.Contains(searchText, strings.ToLower(a)) {
				found = true
				break
			}
		}
		if !found {
			return false, fmt.Sprintf("REJECT_LOCATION (not in profile %q locations)", p.Name)
		}
	}

	if searchText != "" {
		if hit := stopLocationHit(searchText, p.StopLocations); hit != "" {
			return false, fmt.Sprintf("REJECT_STOP_LOCATION (%q in profile %q)", hit, p.Name)
		}
	}

	return true, "PASS"
}

// stopLocationHit returns the first stop location found in text. Tokens of
// three characters or fewer only count on word boundaries so "CA" cannot
// fire inside "Canggu".
func stopLocationHit(text string, stops []string) string {
	for _, s := range stops {
		s = strings.ToLower(s)
		if s == "" {
			continue
		}
		if len(s) <= 3 {
			if regexp.MustCompile(`\b` + regexp.QuoteMeta(s) + `\b`).MatchString(text) {
				return s
			}
		} else if strings.Contains(text, s) {
			return s
		}
	}
	return ""
}

func fmtIntp(p *int) string {
	if p == nil {
		return "none"
	}
	return fmt.Sprintf("%d", *p)
}
