package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantPass bool
		wantCat  string
		wantErr  bool
	}{
		{name: "pass", raw: "PASS", wantPass: true},
		{name: "pass with whitespace", raw: "  pass\n", wantPass: true},
		{name: "reject bedrooms", raw: "REJECT_BEDROOMS", wantCat: "BEDROOMS"},
		{name: "reject room only", raw: "reject_room_only", wantCat: "ROOM_ONLY"},
		{name: "reject other", raw: "REJECT_OTHER", wantCat: "OTHER"},
		{name: "verbose reply", raw: "Based on the description, I would say PASS.", wantErr: true},
		{name: "reject with trailing text", raw: "REJECT_PRICE because it is too expensive", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
		{name: "bare reject", raw: "REJECT", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseVerdict(tt.raw)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnparseableVerdict)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPass, v.Pass)
			assert.Equal(t, tt.wantCat, v.Category)
		})
	}
}

func TestParseGeoVerdict(t *testing.T) {
	assert.Equal(t, GeoBali, ParseGeoVerdict("BALI"))
	assert.Equal(t, GeoBali, ParseGeoVerdict(" bali\n"))
	assert.Equal(t, GeoNotBali, ParseGeoVerdict("NOT_BALI"))
	assert.Equal(t, GeoUnknown, ParseGeoVerdict("UNKNOWN"))
	// Anything off-vocabulary must not block a listing.
	assert.Equal(t, GeoUnknown, ParseGeoVerdict("The listing appears to be in Lombok"))
	assert.Equal(t, GeoUnknown, ParseGeoVerdict(""))
}

func TestApplyOverrides(t *testing.T) {
	four := 4
	two := 2
	low := 9_000_000.0
	high := 40_000_000.0

	rejBed := Verdict{Category: "BEDROOMS", Raw: "REJECT_BEDROOMS"}
	rejPrice := Verdict{Category: "PRICE", Raw: "REJECT_PRICE"}
	rejOther := Verdict{Category: "OTHER", Raw: "REJECT_OTHER"}

	pass, reason := ApplyOverrides(rejBed, &four, nil, 4, 30_000_000)
	assert.True(t, pass)
	assert.Equal(t, ReasonOverrideBedrooms, reason)

	pass, _ = ApplyOverrides(rejBed, &two, nil, 4, 30_000_000)
	assert.False(t, pass)

	pass, _ = ApplyOverrides(rejBed, nil, nil, 4, 30_000_000)
	assert.False(t, pass)

	pass, reason = ApplyOverrides(rejPrice, nil, &low, 4, 30_000_000)
	assert.True(t, pass)
	assert.Equal(t, ReasonOverridePrice, reason)

	pass, _ = ApplyOverrides(rejPrice, nil, &high, 4, 30_000_000)
	assert.False(t, pass)

	// Only bedroom and price rejections are overridable.
	pass, _ = ApplyOverrides(rejOther, &four, &low, 4, 30_000_000)
	assert.False(t, pass)

	pass, reason = ApplyOverrides(Verdict{Pass: true, Raw: "PASS"}, nil, nil, 4, 30_000_000)
	assert.True(t, pass)
	assert.Equal(t, "PASS", reason)
}
