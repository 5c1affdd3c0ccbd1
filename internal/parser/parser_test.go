package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBedrooms(t *testing.T) {
	e := NewExtractor(nil)

	cases := []struct {
		name string
		text string
		want *int
	}{
		{"digit br", "cozy 3 br villa in ubud", intp(3)},
		{"bedroom word", "2 bedroom house with garden", intp(2)},
		{"indonesian kt", "villa 4 kt dekat pantai", intp(4)},
		{"kamar tidur", "rumah 3 kamar tidur", intp(3)},
		{"beds", "5 beds available", intp(5)},
		{"studio is zero", "studio apartment near beach", intp(0)},
		{"spelled out", "Four bedroom villa with pool", intp(4)},
		{"spelled out hyphen", "two-bed guesthouse", intp(2)},
		{"insane count ignored", "80361 bedroom", nil},
		{"sanity guard rejects 99", "99 br complex", nil},
		{"no mention", "beautiful villa with rice field view", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := e.Parse(tc.text).Bedrooms
			if tc.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tc.want, *got)
		})
	}
}

func TestExtractPrice(t *testing.T) {
	cases := []struct {
		name string
		text string
		want float64
	}{
		{"juta", "harga 10 juta per bulan", 10_000_000},
		{"jt no space", "5jt/bulan nego", 5_000_000},
		{"decimal juta", "sewa 3,5 juta sebulan", 3_500_000},
		{"decimal point million", "3.5 million monthly", 3_500_000},
		{"mln suffix", "180mln per year", 15_000_000},
		{"mio suffix", "price 250mio", 250_000_000},
		{"thousand separated", "Rp 10.000.000 / month", 10_000_000},
		{"comma separated", "IDR 12,500,000 monthly", 12_500_000},
		{"broken separator", "price 20. 000,000 per month", 20_000_000},
		{"yearly divided", "200 juta per year", 200_000_000.0 / 12},
		{"yearly and monthly nearby keeps value", "17 juta monthly or pay per year", 17_000_000},
		{"usd converted", "$1,000 per month", 1000 * 16_300},
		{"usd yearly", "USD 12,000 per year", 12_000 * 16_300 / 12.0},
		{"trailing usd", "price 500 usd monthly", 500 * 16_300},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractPrice(tc.text)
			require.NotNil(t, got)
			assert.InDelta(t, tc.want, *got, 0.01)
		})
	}

	t.Run("bare small number is not millions", func(t *testing.T) {
		// "17" with no marker must stay 17, not 17 million.
		got := ExtractPrice("contact after 17 pm")
		assert.Nil(t, got)
	})
	t.Run("no price", func(t *testing.T) {
		assert.Nil(t, ExtractPrice("charming villa, contact for price"))
	})
}

func TestAmenitiesAndNegation(t *testing.T) {
	e := NewExtractor(nil)

	a := e.Parse("villa with AC, wifi and swimming pool, parking available")
	assert.True(t, a.HasAC)
	assert.True(t, a.HasWiFi)
	assert.True(t, a.HasPool)
	assert.True(t, a.HasParking)

	// Negation beats the positive mention.
	b := e.Parse("room with fan only, no wifi, shared pool access")
	assert.False(t, b.HasAC)
	assert.False(t, b.HasWiFi)
	assert.True(t, b.HasPool)
}

func TestKitchenUtilitiesFurnitureTerm(t *testing.T) {
	e := NewExtractor(nil)

	a := e.Parse("fully furnished villa, enclosed kitchen, all bills included, per month")
	assert.Equal(t, "enclosed", a.KitchenType)
	assert.True(t, a.HasKitchen)
	assert.Equal(t, "included", a.Utilities)
	assert.Equal(t, "fully", a.Furniture)
	assert.Equal(t, "monthly", a.RentalTerm)

	b := e.Parse("unfurnished house, outdoor kitchen, plus bills, tahunan")
	assert.Equal(t, "outdoor", b.KitchenType)
	assert.Equal(t, "excluded", b.Utilities)
	assert.Equal(t, "unfurnished", b.Furniture)
	assert.Equal(t, "yearly", b.RentalTerm)

	c := e.Parse("nightly rate available")
	assert.Equal(t, "daily", c.RentalTerm)

	d := e.Parse("ada dapur luas")
	assert.Equal(t, "unknown", d.KitchenType)
	assert.True(t, d.HasKitchen)
}

func TestStopWords(t *testing.T) {
	e := NewExtractor(nil)
	assert.True(t, e.Parse("dijual tanah kavling").HasStopWord)
	assert.True(t, e.Parse("villa for sale in canggu").HasStopWord)
	assert.True(t, e.Parse("kost putri dekat kampus").HasStopWord)
	assert.False(t, e.Parse("disewakan villa 4 kamar tidur").HasStopWord)

	custom := NewExtractor([]string{"warehouse"})
	assert.True(t, custom.Parse("warehouse space for rent").HasStopWord)
	assert.False(t, custom.Parse("villa for sale").HasStopWord)
}

func TestExtractLocation(t *testing.T) {
	assert.Equal(t, "Ubud", ExtractLocation("beautiful villa in Ubud with rice field view"))
	assert.Equal(t, "Canggu", ExtractLocation("disewakan rumah di Canggu"))
	assert.Equal(t, "Seminyak", ExtractLocation("seminyak area, walk to beach"))
	assert.Equal(t, "Pererenan", ExtractLocation("Pererenan\n3 bedroom villa"))
	// Bare mid-sentence mention without preposition is not trusted.
	assert.Equal(t, "", ExtractLocation("better than anything kerobokan style"))
	assert.Equal(t, "", ExtractLocation(""))
}

func TestTitleFromDescription(t *testing.T) {
	assert.Equal(t, "Cozy villa for rent.", TitleFromDescription("Cozy villa for rent. 3 bedrooms, pool.", 100))
	assert.Equal(t, "First line", TitleFromDescription("First line\nsecond line", 100))

	long := "word word word word word word word word word word word word word word word word word word word word word"
	title := TitleFromDescription(long, 30)
	assert.LessOrEqual(t, len(title), 34)
	assert.True(t, len(title) > 3)
}

func TestExtractPhones(t *testing.T) {
	phones := ExtractPhones("hubungi 0812 3456 7890 atau +62 812-3456-7890")
	require.NotEmpty(t, phones)
	assert.Contains(t, phones, "081234567890")

	// Deduplicated.
	dup := ExtractPhones("08123456789 08123456789")
	assert.Len(t, dup, 1)

	assert.Empty(t, ExtractPhones("no contact info here"))
}

func intp(n int) *int { return &n }
