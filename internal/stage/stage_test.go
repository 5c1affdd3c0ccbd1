package stage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PollyDrive/estate-sub000/internal/config"
	"github.com/PollyDrive/estate-sub000/internal/criteria"
	"github.com/PollyDrive/estate-sub000/internal/llm"
	"github.com/PollyDrive/estate-sub000/internal/parser"
	"github.com/PollyDrive/estate-sub000/internal/source"
	"github.com/PollyDrive/estate-sub000/internal/store"
)

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

func testCriteria() criteria.Criteria {
	return criteria.Criteria{BedroomsMin: intp(3), PriceMax: floatp(30_000_000)}
}

func TestDeriveCriteria(t *testing.T) {
	profiles := []criteria.Profile{
		{Name: "a", ChatID: "1", BedroomsMin: 4, PriceMax: 25_000_000},
		{Name: "b", ChatID: "2", BedroomsMin: 2, PriceMax: 40_000_000},
	}
	c := DeriveCriteria(config.CriteriaConfig{}, profiles)
	require.NotNil(t, c.BedroomsMin)
	assert.Equal(t, 2, *c.BedroomsMin)
	require.NotNil(t, c.PriceMax)
	assert.Equal(t, 40_000_000.0, *c.PriceMax)

	// Explicit config loses to a wider profile but beats a narrower one.
	c = DeriveCriteria(config.CriteriaConfig{BedroomsMin: 3, PriceMax: 50_000_000}, profiles)
	assert.Equal(t, 2, *c.BedroomsMin)
	assert.Equal(t, 50_000_000.0, *c.PriceMax)
}

func TestStage1(t *testing.T) {
	db := newFakeDB()
	src := source.NewMockSource([]source.Item{
		{
			URL:   "https://www.facebook.com/marketplace/item/111/",
			Title: "4 bedroom villa in Ubud, 25 juta monthly",
		},
		{
			URL:   "https://www.facebook.com/marketplace/item/222/",
			Title: "Tanah dijual di Canggu",
		},
		{
			Link:  "https://www.facebook.com/groups/9/permalink/333/",
			Title: "5 bedroom house Mengwi",
		},
	})

	s1 := NewStage1(db, src, parser.NewExtractor(nil), testCriteria())
	res, err := s1.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, res.Fetched)
	assert.Equal(t, 1, res.Filtered)
	assert.Equal(t, 2, res.Inserted)

	l, err := db.Get(context.Background(), "111")
	require.NoError(t, err)
	assert.Equal(t, store.StatusStage1New, l.Status)
	require.NotNil(t, l.PassReason)
	assert.Equal(t, "Passed filters", *l.PassReason)

	_, err = db.Get(context.Background(), "222")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Re-run inserts nothing new.
	res, err = s1.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Inserted)
}

func newStage2(db DB, details source.DetailSource) *Stage2 {
	return NewStage2(db, details, parser.NewExtractor(nil), testCriteria(), config.FiltersConfig{
		StopWordsDetailed: []string{"guesthouse"},
		StopLocations:     []string{"nusa penida"},
	})
}

func TestStage2(t *testing.T) {
	db := newFakeDB()
	db.add(store.Listing{
		FBID: "pass", Source: source.SourceMarketplace, Status: store.StatusStage1New,
		Title:       strp("4BR villa"),
		Description: strp("Spacious 4 bedroom villa in Ubud, 25 juta per month, private pool. Call 081234567890"),
	})
	db.add(store.Listing{
		FBID: "stopword", Source: source.SourceMarketplace, Status: store.StatusStage1New,
		Title:       strp("Great land"),
		Description: strp("Tanah dijual near the beach"),
	})
	db.add(store.Listing{
		FBID: "detailed", Source: source.SourceMarketplace, Status: store.StatusStage1New,
		Title:       strp("Nice place"),
		Description: strp("Lovely guesthouse room with shared kitchen"),
	})
	db.add(store.Listing{
		FBID: "mkt-nodesc", Source: source.SourceMarketplace, Status: store.StatusStage1New,
		Title: strp("4 bedroom villa"),
	})
	db.add(store.Listing{
		FBID: "grp-nodesc", Source: source.SourceGroup, Status: store.StatusStage1New,
		Title: strp("4 bedroom villa"),
	})

	res, err := newStage2(db, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, res.Processed)
	assert.Equal(t, 1, res.Passed)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 1, res.BackToStage1)
	assert.Equal(t, 1, res.NoDescription)

	l, _ := db.Get(context.Background(), "pass")
	assert.Equal(t, store.StatusStage2, l.Status)
	require.NotNil(t, l.Bedrooms)
	assert.Equal(t, 4, *l.Bedrooms)
	require.NotNil(t, l.PriceIDR)
	assert.Equal(t, 25_000_000.0, *l.PriceIDR)
	require.NotNil(t, l.PhoneNumber)
	assert.Equal(t, "081234567890", *l.PhoneNumber)
	require.NotNil(t, l.Location)
	assert.Equal(t, "Ubud", *l.Location)

	l, _ = db.Get(context.Background(), "stopword")
	assert.Equal(t, store.StatusStage2Failed, l.Status)

	l, _ = db.Get(context.Background(), "detailed")
	assert.Equal(t, store.StatusStage2Failed, l.Status)
	assert.Contains(t, deref(l.PassReason), "guesthouse")

	l, _ = db.Get(context.Background(), "mkt-nodesc")
	assert.Equal(t, store.StatusStage1, l.Status)
	assert.Nil(t, l.PassReason)

	l, _ = db.Get(context.Background(), "grp-nodesc")
	assert.Equal(t, store.DispositionNoDescription, l.Disposition)
}

func TestStage2DetailFetch(t *testing.T) {
	db := newFakeDB()
	db.add(store.Listing{
		FBID: "42", Source: source.SourceMarketplace, Status: store.StatusStage1,
		Title:      strp("Villa"),
		ListingURL: strp("https://www.facebook.com/marketplace/item/42/"),
	})

	res, err := newStage2(db, source.NewMockSource(nil)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Passed)

	l, _ := db.Get(context.Background(), "42")
	assert.Equal(t, store.StatusStage2, l.Status)
	assert.Contains(t, deref(l.Description), "4 bedroom villa")
}

type fakeChecker struct {
	geo       []llm.GeoVerdict
	geoErr    error
	verdicts  []string
	verdErr   []error
	geoCalls  int
	relvCalls int
}

func (f *fakeChecker) CheckGeo(context.Context, string) (llm.GeoVerdict, error) {
	if f.geoErr != nil {
		return llm.GeoUnknown, f.geoErr
	}
	g := f.geo[f.geoCalls]
	f.geoCalls++
	return g, nil
}

func (f *fakeChecker) CheckRelevance(context.Context, string) (llm.Verdict, error) {
	i := f.relvCalls
	f.relvCalls++
	if i < len(f.verdErr) && f.verdErr[i] != nil {
		if errors.Is(f.verdErr[i], llm.ErrUnparseableVerdict) {
			return llm.Verdict{Raw: f.verdicts[i]}, f.verdErr[i]
		}
		return llm.Verdict{}, f.verdErr[i]
	}
	v, err := llm.ParseVerdict(f.verdicts[i])
	return v, err
}

func newStage3(db DB, checker RelevanceChecker) *Stage3 {
	return NewStage3(db, checker, config.FiltersConfig{
		StopLocations: []string{"in Nusa Penida"},
		ShortPrice:    config.ShortPriceConfig{Enabled: true, Threshold: 50},
	}, config.LLMConfig{BedroomsFloor: 4}, 30_000_000)
}

func stage2Row(id string, bedrooms *int) store.Listing {
	return store.Listing{
		FBID: id, Source: source.SourceMarketplace, Status: store.StatusStage2,
		Title:       strp("Villa " + id),
		Description: strp("Villa with garden in Ubud, monthly rental"),
		Bedrooms:    bedrooms,
	}
}

func TestStage3PreGates(t *testing.T) {
	db := newFakeDB()
	db.add(stage2Row("small", intp(2)))

	penida := stage2Row("penida", intp(4))
	penida.Location = strp("Nusa Penida")
	db.add(penida)

	short := stage2Row("shortprice", intp(4))
	short.PriceRaw = strp("IDR 150")
	db.add(short)

	checker := &fakeChecker{}
	res, err := newStage3(db, checker).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.PreGated)
	assert.Zero(t, checker.geoCalls)
	assert.Zero(t, checker.relvCalls)

	l, _ := db.Get(context.Background(), "small")
	assert.Equal(t, store.StatusStage3Failed, l.Status)
	assert.Contains(t, deref(l.LLMReason), "REJECT_BEDROOMS")

	l, _ = db.Get(context.Background(), "penida")
	assert.Contains(t, deref(l.LLMReason), "REJECT_STOP_LOCATION")

	l, _ = db.Get(context.Background(), "shortprice")
	assert.Contains(t, deref(l.LLMReason), "suspicious short price")
}

func TestStage3Verdicts(t *testing.T) {
	db := newFakeDB()
	db.add(stage2Row("ok", intp(4)))
	db.add(stage2Row("room", intp(4)))
	db.add(stage2Row("abroad", intp(4)))

	checker := &fakeChecker{
		geo:      []llm.GeoVerdict{llm.GeoBali, llm.GeoUnknown, llm.GeoNotBali},
		verdicts: []string{"PASS", "REJECT_ROOM_ONLY"},
	}
	res, err := newStage3(db, checker).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Passed)
	assert.Equal(t, 2, res.Rejected)

	l, _ := db.Get(context.Background(), "ok")
	assert.Equal(t, store.StatusStage3, l.Status)
	require.NotNil(t, l.LLMPassed)
	assert.True(t, *l.LLMPassed)

	l, _ = db.Get(context.Background(), "room")
	assert.Equal(t, store.StatusStage3RoomOnly, l.Status)

	l, _ = db.Get(context.Background(), "abroad")
	assert.Equal(t, store.StatusStage3Failed, l.Status)
	assert.Equal(t, "REJECT_NOT_BALI", deref(l.LLMReason))
}

func TestStage3Overrides(t *testing.T) {
	db := newFakeDB()
	row := stage2Row("override", intp(5))
	db.add(row)

	checker := &fakeChecker{
		geo:      []llm.GeoVerdict{llm.GeoBali},
		verdicts: []string{"REJECT_BEDROOMS"},
	}
	res, err := newStage3(db, checker).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Passed)

	l, _ := db.Get(context.Background(), "override")
	assert.Equal(t, store.StatusStage3, l.Status)
	assert.Equal(t, llm.ReasonOverrideBedrooms, deref(l.LLMReason))
}

func TestStage3UnparseableFailsClosed(t *testing.T) {
	db := newFakeDB()
	db.add(stage2Row("weird", intp(4)))
	db.add(stage2Row("after", intp(4)))

	checker := &fakeChecker{
		geo:      []llm.GeoVerdict{llm.GeoBali, llm.GeoBali},
		verdicts: []string{"Sure, this looks fine to me!", "PASS"},
		verdErr:  []error{llm.ErrUnparseableVerdict, nil},
	}
	res, err := newStage3(db, checker).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rejected)
	assert.Equal(t, 1, res.Passed)

	l, _ := db.Get(context.Background(), "weird")
	assert.Equal(t, store.StatusStage3Failed, l.Status)
	assert.Contains(t, deref(l.LLMReason), "REJECT_UNPARSEABLE")
}

func TestStage3TransportErrorStopsRun(t *testing.T) {
	db := newFakeDB()
	db.add(stage2Row("first", intp(4)))
	db.add(stage2Row("second", intp(4)))

	transport := errors.New("connection refused")
	checker := &fakeChecker{
		geo:      []llm.GeoVerdict{llm.GeoBali, llm.GeoBali},
		verdicts: []string{"PASS", ""},
		verdErr:  []error{nil, transport},
	}
	_, err := newStage3(db, checker).Run(context.Background())
	require.ErrorIs(t, err, transport)

	l, _ := db.Get(context.Background(), "first")
	assert.Equal(t, store.StatusStage3, l.Status)

	// Unprocessed rows keep their status for the next run.
	l, _ = db.Get(context.Background(), "second")
	assert.Equal(t, store.StatusStage2, l.Status)
}
