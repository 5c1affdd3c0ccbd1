// Package parser extracts structured rental attributes from free-form
// listing text (Facebook Marketplace / group posts, mixed English and
// Indonesian). All rules live in package-level tables so behavior changes
// are data edits, not logic edits.
package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// usdToIDR is an approximate conversion rate used only for filtering, so
// dollar-priced listings land on the same scale as IDR thresholds.
const usdToIDR = 16_300

// Attributes holds everything the extractor could read out of one listing.
// Nil pointers mean "not stated in the text", which downstream filters treat
// differently from a stated zero.
type Attributes struct {
	Bedrooms    *int
	Price       *float64 // monthly, IDR
	KitchenType string   // enclosed|outdoor|shared|kitchenette|none|unknown|""
	HasKitchen  bool
	HasAC       bool
	HasWiFi     bool
	HasPool     bool
	HasParking  bool
	Utilities   string // included|excluded|""
	Furniture   string // fully|semi|unfurnished|""
	RentalTerm  string // monthly|yearly|daily|weekly|""
	HasStopWord bool
}

var bedroomPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(\d{1,2})[\s-]*(?:br|bedroom|bedrooms|kamar tidur)\b`),
	regexp.MustCompile(`(?i)\b(\d{1,2})[\s-]*kt\b`), // KT = kamar tidur
	regexp.MustCompile(`(?i)\b(\d{1,2})[\s-]*beds?\b`),
}

var studioPattern = regexp.MustCompile(`(?i)\bstudio\b`)

var wordBedroomPattern = regexp.MustCompile(
	`(?i)\b(one|two|three|four|five|six|seven|eight|nine|ten)[\s-]*(?:bed(?:room)?s?|br)\b`)

var wordToNum = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

// USD checked before IDR so the IDR patterns do not grab a dollar amount.
var usdPricePattern = regexp.MustCompile(
	`(?i)(?:usd|\$|us\$)\s*(\d[\d,]*(?:\.\d+)?)|(\d[\d,]*(?:\.\d+)?)\s*(?:usd|dollars?)`)

var pricePatterns = []*regexp.Regexp{
	// 3.5 million, 10 juta, 3,5 juta
	regexp.MustCompile(`(?i)(\d+[.,]\d+)\s*(?:jt|juta|million|m)\b`),
	// 10 juta, 5jt
	regexp.MustCompile(`(?i)(\d+)\s*(?:jt|juta|million|m)\b`),
	// 180mln, 250mio, 90mill, 25mil
	regexp.MustCompile(`(?i)(\d+)\s*(?:mln|mio|mill|mil)\b`),
	// Rp/IDR prefix with optional million suffix
	regexp.MustCompile(`(?i)(?:rp|idr)[\s.]?(\d+(?:[.,]\d{3})*(?:[.,]\d+)?)\s*(?:jt|juta|jt/bln|juta/bulan|million|m)?`),
	// thousands-separated full amounts like 10.000.000
	regexp.MustCompile(`(\d{1,3}(?:[.,]\d{3})+)`),
}

// Broken separator formatting like "20. 000,000". RE2 has no lookbehind, so
// the leading digit is captured and put back.
var brokenSeparatorPattern = regexp.MustCompile(`(\d)([.,])\s+(\d)`)

var monthlyIndicators = []*regexp.Regexp{
	regexp.MustCompile(`monthly`),
	regexp.MustCompile(`/month`),
	regexp.MustCompile(`per month`),
	regexp.MustCompile(`\bmonth\b`),
	regexp.MustCompile(`/mo\b`),
	regexp.MustCompile(`bulanan`),
	regexp.MustCompile(`/bulan`),
	regexp.MustCompile(`per bulan`),
	regexp.MustCompile(`\bbln\b`),
}

var yearlyIndicators = []*regexp.Regexp{
	regexp.MustCompile(`yearly`),
	regexp.MustCompile(`/year`),
	regexp.MustCompile(`per year`),
	regexp.MustCompile(`\byear\b`),
	regexp.MustCompile(`tahunan`),
	regexp.MustCompile(`/tahun`),
	regexp.MustCompile(`per tahun`),
	regexp.MustCompile(`/yr`),
}

var kitchenPatterns = map[string][]*regexp.Regexp{
	"enclosed": compileAll(
		`closed kitchen`, `enclosed kitchen`, `indoor kitchen`, `private kitchen`,
		`full kitchen`, `western kitchen`, `dapur tertutup`, `dapur indoor`),
	"outdoor": compileAll(
		`outdoor kitchen`, `open kitchen`, `dapur outdoor`, `dapur terbuka`),
	"shared": compileAll(
		`shared kitchen`, `common kitchen`, `dapur bersama`),
	"kitchenette": compileAll(
		`kitchenette`, `mini kitchen`, `small kitchen`),
	"none": compileAll(
		`no kitchen`, `tanpa dapur`, `without kitchen`),
}

// Order matters when a text matches several kitchen categories.
var kitchenOrder = []string{"enclosed", "outdoor", "shared", "kitchenette", "none"}

var kitchenMentionPattern = regexp.MustCompile(`(?i)\b(?:kitchen|dapur|kitchenette)\b`)

var amenityPatterns = map[string][]*regexp.Regexp{
	"ac": compileAll(
		`\bac\b`, `air conditioning`, `air conditioner`, `air con`, `a/c`, `aircon`),
	"wifi": compileAll(
		`\bwifi\b`, `wi-fi`, `internet`, `wireless`),
	"pool": compileAll(
		`\bpool\b`, `swimming pool`, `kolam renang`),
	"parking": compileAll(
		`parking`, `parkir`, `garage`),
}

// Explicit negatives win over positive mentions ("no AC, fan only").
var negativeAmenityPatterns = map[string][]*regexp.Regexp{
	"ac": compileAll(
		`no ac\b`, `no air con`, `fan only`, `kipas saja`, `tanpa ac`),
	"wifi": compileAll(
		`no wifi`, `no internet`, `tanpa wifi`, `tanpa internet`),
}

var utilitiesPatterns = map[string][]*regexp.Regexp{
	"included": compileAll(
		`(?:bills?|utilities?|listrik|air)\s+(?:included|include|inc|sudah termasuk)`,
		`all\s+(?:bills?|utilities?)\s+included`,
		`include\s+(?:bills?|utilities?)`),
	"excluded": compileAll(
		`(?:bills?|utilities?|listrik|air)\s+(?:excluded|exclude|exc|belum termasuk|tidak termasuk)`,
		`(?:bills?|utilities?)\s+(?:not included|separate|extra)`,
		`plus\s+(?:bills?|utilities?)`),
}

var utilitiesOrder = []string{"included", "excluded"}

var furniturePatterns = map[string][]*regexp.Regexp{
	"fully": compileAll(
		`fully furnished`, `full furniture`, `completely furnished`, `lengkap perabotan`),
	"semi": compileAll(
		`semi furnished`, `partial furniture`, `sebagian perabotan`),
	"unfurnished": compileAll(
		`unfurnished`, `no furniture`, `tanpa perabotan`),
}

var furnitureOrder = []string{"fully", "semi", "unfurnished"}

var termPatterns = map[string][]*regexp.Regexp{
	"monthly": compileAll(
		`(?:per|/)\s*(?:month|bulan|bln)`, `monthly`, `bulanan`),
	"yearly": compileAll(
		`(?:per|/)\s*(?:year|tahun|thn)`, `yearly`, `tahunan`),
	"daily": compileAll(
		`(?:per|/)\s*(?:day|hari)`, `daily`, `harian`, `nightly`),
	"weekly": compileAll(
		`(?:per|/)\s*(?:week|minggu)`, `weekly`, `mingguan`),
}

var termOrder = []string{"monthly", "yearly", "daily", "weekly"}

// defaultStopWords reject land sales, for-sale posts, studios, commercial
// rentals and boarding houses before anything else runs.
var defaultStopWords = []string{
	`\btanah\b`,
	`dikontrakan tanah`,
	`\bdijual\b`,
	`for sale`,
	`\bsale\b`,
	`\bstudio\b`,
	`\b0\s*km\b`,
	`yearly`,
	`tahunan`,
	`over kontrak`,
	`\bsalon\b`,
	`\bkos\b`,
	`\bkost\b`,
}

// knownLocations is the Bali gazetteer. Allowed areas come first, then the
// rest of the commonly scraped areas.
var knownLocations = []string{
	"Ubud", "Abiansemal", "Singakerta", "Mengwi", "Gianyar",
	"Canggu", "Seminyak", "Kuta", "Legian", "Sanur",
	"Denpasar", "Uluwatu", "Jimbaran", "Nusa Dua",
	"Pererenan", "Berawa", "Echo Beach", "Batu Bolong",
	"Umalas", "Kerobokan", "Petitenget",
	"Bingin", "Padang Padang", "Balangan",
	"Candidasa", "Amed", "Lovina", "Singaraja",
	"Tabanan", "Kediri", "Munggu", "Tanah Lot",
	"Tegallalang", "Payangan", "Petulu", "Mas", "Lodtunduh",
	"Sukawati", "Celuk", "Batuan", "Blahbatuh",
}

var phonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\+?62\s?8\d{2}[\s-]?\d{3,4}[\s-]?\d{3,4}`),
	regexp.MustCompile(`08\d{2}[\s-]?\d{3,4}[\s-]?\d{3,4}`),
	regexp.MustCompile(`\+?62[\s-]?8\d{9,11}`),
}

var firstSentencePattern = regexp.MustCompile(`^([^.!?\n]+[.!?]?)`)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(`(?i)`+p))
	}
	return out
}

// Extractor parses listing text. Stop words are the only configurable rule
// table; everything else is fixed at compile time.
type Extractor struct {
	stopWords []*regexp.Regexp
}

// NewExtractor builds an extractor. stopWords are plain words from config;
// empty means the built-in defaults.
func NewExtractor(stopWords []string) *Extractor {
	e := &Extractor{}
	if len(stopWords) == 0 {
		for _, p := range defaultStopWords {
			e.stopWords = append(e.stopWords, regexp.MustCompile(`(?i)`+p))
		}
		return e
	}
	for _, w := range stopWords {
		e.stopWords = append(e.stopWords, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(strings.ToLower(w))+`\b`))
	}
	return e
}

// Parse extracts all attributes from one listing text.
func (e *Extractor) Parse(text string) Attributes {
	if text == "" {
		return Attributes{}
	}
	lower := strings.ToLower(text)
	return Attributes{
		Bedrooms:    extractBedrooms(lower),
		Price:       ExtractPrice(lower),
		KitchenType: extractKitchenType(lower),
		HasKitchen:  kitchenMentionPattern.MatchString(lower),
		HasAC:       checkAmenity(lower, "ac"),
		HasWiFi:     checkAmenity(lower, "wifi"),
		HasPool:     checkAmenity(lower, "pool"),
		HasParking:  checkAmenity(lower, "parking"),
		Utilities:   firstMatch(lower, utilitiesPatterns, utilitiesOrder),
		Furniture:   firstMatch(lower, furniturePatterns, furnitureOrder),
		RentalTerm:  firstMatch(lower, termPatterns, termOrder),
		HasStopWord: e.HasStopWord(lower),
	}
}

// HasStopWord reports whether any configured stop word appears in text.
func (e *Extractor) HasStopWord(text string) bool {
	for _, p := range e.stopWords {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func extractBedrooms(text string) *int {
	// Guard against postal codes and phone fragments: 0..20 only.
	sane := func(n int) bool { return n >= 0 && n <= 20 }

	for _, p := range bedroomPatterns {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			if sane(n) {
				return &n
			}
		}
	}
	if studioPattern.MatchString(text) {
		zero := 0
		return &zero
	}
	if m := wordBedroomPattern.FindStringSubmatch(text); m != nil {
		if n, ok := wordToNum[strings.ToLower(m[1])]; ok {
			return &n
		}
	}
	return nil
}

// ExtractPrice returns the monthly price in IDR, or nil when no price is
// stated. USD amounts are converted; a price surrounded by yearly wording
// (and no monthly wording) within 50 chars is divided by 12.
func ExtractPrice(text string) *float64 {
	text = normalizeSeparators(strings.ToLower(text))

	if loc := usdPricePattern.FindStringSubmatchIndex(text); loc != nil {
		m := usdPricePattern.FindStringSubmatch(text)
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		raw = strings.ReplaceAll(raw, ",", "")
		if usd, err := strconv.ParseFloat(raw, 64); err == nil {
			price := usd * usdToIDR
			if isYearlyContext(contextWindow(text, loc[0], loc[1])) {
				price /= 12
			}
			return &price
		}
	}

	for _, p := range pricePatterns {
		loc := p.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		matched := text[loc[0]:loc[1]]
		raw := text[loc[2]:loc[3]]

		var price float64
		if hasMillionMarker(matched) {
			// 3,5 juta means 3.5 juta
			v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
			if err != nil {
				continue
			}
			price = v * 1_000_000
		} else {
			clean := strings.NewReplacer(",", "", ".", "").Replace(raw)
			v, err := strconv.ParseFloat(clean, 64)
			if err != nil {
				continue
			}
			// No implicit millions for bare small numbers: "17" stays 17.
			// Only explicit jt/juta/million markers scale the value.
			price = v
		}

		if isYearlyContext(contextWindow(text, loc[0], loc[1])) {
			price /= 12
		}
		return &price
	}
	return nil
}

func normalizeSeparators(text string) string {
	// Two passes cover chains like "20. 000, 000" where the first rewrite
	// exposes the second break.
	for i := 0; i < 2; i++ {
		next := brokenSeparatorPattern.ReplaceAllString(text, "$1$2$3")
		if next == text {
			break
		}
		text = next
	}
	return text
}

func contextWindow(text string, start, end int) string {
	lo := start - 50
	if lo < 0 {
		lo = 0
	}
	hi := end + 50
	if hi > len(text) {
		hi = len(text)
	}
	return text[lo:hi]
}

func isYearlyContext(ctx string) bool {
	yearly := false
	for _, p := range yearlyIndicators {
		if p.MatchString(ctx) {
			yearly = true
			break
		}
	}
	if !yearly {
		return false
	}
	// Both terms nearby means the yearly figure is not the one matched.
	for _, p := range monthlyIndicators {
		if p.MatchString(ctx) {
			return false
		}
	}
	return true
}

func hasMillionMarker(matched string) bool {
	for _, marker := range []string{"jt", "juta", "million", "mln", "mio", "mill", "mil"} {
		if strings.Contains(matched, marker) {
			return true
		}
	}
	return strings.HasSuffix(strings.TrimSpace(matched), "m")
}

func extractKitchenType(text string) string {
	for _, kind := range kitchenOrder {
		for _, p := range kitchenPatterns[kind] {
			if p.MatchString(text) {
				return kind
			}
		}
	}
	if kitchenMentionPattern.MatchString(text) {
		return "unknown"
	}
	return ""
}

func checkAmenity(text, amenity string) bool {
	for _, p := range negativeAmenityPatterns[amenity] {
		if p.MatchString(text) {
			return false
		}
	}
	for _, p := range amenityPatterns[amenity] {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func firstMatch(text string, table map[string][]*regexp.Regexp, order []string) string {
	for _, key := range order {
		for _, p := range table[key] {
			if p.MatchString(text) {
				return key
			}
		}
	}
	return ""
}

// ExtractLocation finds a known Bali area in text. Preposition patterns
// ("in Ubud", "di Canggu", "Ubud area") are tried for every gazetteer entry
// first; a bare mention only counts when it opens the text or a line.
func ExtractLocation(text string) string {
	if text == "" {
		return ""
	}
	lower := strings.ToLower(text)

	for _, location := range knownLocations {
		ll := regexp.QuoteMeta(strings.ToLower(location))
		for _, pat := range []string{
			`\bin\s+` + ll + `\b`,
			`\bat\s+` + ll + `\b`,
			`\bdi\s+` + ll + `\b`,
			ll + `\s+area\b`,
			ll + `\s+location\b`,
		} {
			if regexp.MustCompile(pat).MatchString(lower) {
				return location
			}
		}
	}
	for _, location := range knownLocations {
		ll := regexp.QuoteMeta(strings.ToLower(location))
		if regexp.MustCompile(`(?:^|\n)\s*` + ll + `\b`).MatchString(lower) {
			return location
		}
	}
	return ""
}

// KnownLocations returns the gazetteer, allowed areas first.
func KnownLocations() []string {
	out := make([]string, len(knownLocations))
	copy(out, knownLocations)
	return out
}

// TitleFromDescription derives a short title: the first sentence, or the
// first line, truncated at a word break past maxLength.
func TitleFromDescription(text string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = 100
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	title := ""
	if m := firstSentencePattern.FindStringSubmatch(text); m != nil {
		title = strings.TrimSpace(m[1])
	} else {
		title = strings.TrimSpace(strings.SplitN(text, "\n", 2)[0])
	}
	if len(title) > maxLength {
		cut := title[:maxLength]
		if i := strings.LastIndex(cut, " "); i > 0 {
			cut = cut[:i]
		}
		title = cut + "..."
	}
	return title
}

// ExtractPhones finds Indonesian phone numbers, normalized (no spaces or
// dashes) and deduplicated in order of first appearance.
func ExtractPhones(text string) []string {
	seen := map[string]bool{}
	var phones []string
	for _, p := range phonePatterns {
		for _, m := range p.FindAllString(text, -1) {
			clean := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(m))
			if !seen[clean] {
				seen[clean] = true
				phones = append(phones, clean)
			}
		}
	}
	return phones
}
