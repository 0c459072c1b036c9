package facet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		expect string
		keep   bool
	}{
		{name: "collapses internal whitespace", input: "ab  cd", expect: "ab-cd", keep: true},
		{name: "trims", input: "  go  ", expect: "go", keep: true},
		{name: "tabs and newlines", input: "senior\t\nengineer", expect: "senior-engineer", keep: true},
		{name: "empty", input: "", keep: false},
		{name: "blank", input: " \t ", keep: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := NormalizeText(tt.input)
			assert.Equal(t, tt.keep, ok)
			assert.Equal(t, tt.expect, got)
		})
	}
}

func TestNormalizeOmitsBlankInputs(t *testing.T) {
	t.Parallel()

	blanks := []Value{
		Text("   "),
		List{},
		List{"", "  "},
		Range{},
		Range{Min: " ", Max: "abc"},
		Bool(false),
		Geo{},
		Geo{Lat: Float(10)},
		Geo{Lat: Float(100), Lon: Float(0)},
	}

	for _, v := range blanks {
		_, ok := Normalize(v)
		assert.Falsef(t, ok, "expected %#v to be omitted", v)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	t.Parallel()

	values := []Value{
		Text("  data   science "),
		List{" United States", "", "CA  "},
		Range{Min: " 03 ", Max: "10.50"},
		Range{Max: "7"},
		Bool(true),
		Geo{Lat: Float(37.7), Lon: Float(-122.4), Distance: Float(50)},
		Geo{Lat: Float(1), Lon: Float(2), Distance: Float(-5)},
	}

	for _, v := range values {
		once, ok := Normalize(v)
		require.Truef(t, ok, "expected %#v to be kept", v)

		twice, ok := Normalize(once)
		require.True(t, ok)
		assert.True(t, valueEqual(once, twice), "normalize is not idempotent for %#v", v)
	}
}

func TestNormalizeRangeKeepsOpenBounds(t *testing.T) {
	t.Parallel()

	r, ok := NormalizeRange(Range{Min: "2", Max: ""})
	require.True(t, ok)
	assert.Equal(t, Range{Min: "2"}, r)

	r, ok = NormalizeRange(Range{Min: "x", Max: "05"})
	require.True(t, ok)
	assert.Equal(t, Range{Max: "5"}, r)
}

func TestNormalizeGeoDropsInvalidDistance(t *testing.T) {
	t.Parallel()

	g, ok := NormalizeGeo(Geo{Lat: Float(10), Lon: Float(20), Distance: Float(0)})
	require.True(t, ok)
	assert.Nil(t, g.Distance)
	assert.Equal(t, 10.0, *g.Lat)
}

func TestEqualUsesCanonicalForm(t *testing.T) {
	t.Parallel()

	a := Set{Skills: List{" go ", "rust"}, Industry: List{}}
	b := Set{Skills: List{"go", "rust"}}

	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, Set{Skills: List{"rust", "go"}}))
}

func TestCloneCopiesLists(t *testing.T) {
	t.Parallel()

	s := Set{Skills: List{"go"}}
	c := s.Clone()
	c[Skills].(List)[0] = "java"

	assert.Equal(t, "go", s[Skills].(List)[0])
}
