package facet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsEncodesCanonicalFacets(t *testing.T) {
	t.Parallel()

	set := Set{
		CountryList:     List{"US", " CA "},
		Skills:          List{"machine  learning", ""},
		ExperienceRange: Range{Min: "3"},
		HasEmail:        Bool(true),
		HasPhone:        Bool(false),
		Industry:        List{" "},
	}

	q, err := Params("  data engineer ", set).Values()
	require.NoError(t, err)

	assert.Equal(t, "data-engineer", q.Get("query"))
	assert.Equal(t, "US,CA", q.Get("countries"))
	assert.Equal(t, "machine-learning", q.Get("skills"))
	assert.Equal(t, "3", q.Get("experienceMin"))
	assert.Equal(t, "true", q.Get("hasEmail"))

	for _, omitted := range []string{"experienceMax", "hasPhone", "industries", "lat", "lon", "radius", "page", "sortField"} {
		_, ok := q[omitted]
		assert.Falsef(t, ok, "expected %s to be omitted", omitted)
	}
}

func TestParamsGeoRadius(t *testing.T) {
	t.Parallel()

	set := Set{
		GeoRadius: Geo{Lat: Float(37.7), Lon: Float(-122.4), Distance: Float(50)},
	}

	q, err := Params("", set).Values()
	require.NoError(t, err)

	assert.Equal(t, "37.7", q.Get("lat"))
	assert.Equal(t, "-122.4", q.Get("lon"))
	assert.Equal(t, "50km", q.Get("radius"))
	_, ok := q["query"]
	assert.False(t, ok)
}

func TestParamsNeverSendsGeoAndCountries(t *testing.T) {
	t.Parallel()

	set := Set{
		GeoRadius:   Geo{Lat: Float(1), Lon: Float(2)},
		CountryList: List{"US"},
	}

	p := Params("", set)
	assert.Empty(t, p.Countries)
	assert.Equal(t, "1", p.Lat)
}

func TestParamsPagingAndSort(t *testing.T) {
	t.Parallel()

	p := Params("go", nil)
	p.Page = 2
	p.PageSize = 25
	p.SortField = "experience"
	p.SortDirection = "desc"

	q, err := p.Values()
	require.NoError(t, err)

	assert.Equal(t, "2", q.Get("page"))
	assert.Equal(t, "25", q.Get("pageSize"))
	assert.Equal(t, "experience", q.Get("sortField"))
	assert.Equal(t, "desc", q.Get("sortDirection"))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	set := Set{
		CountryList:      List{"US", "CA"},
		ConnectionsRange: Range{Min: "100", Max: "500"},
		OpenToWork:       Bool(true),
		GeoRadius:        Geo{Lat: Float(51.5), Lon: Float(-0.12), Distance: Float(25)},
	}

	decoded, errs := Decode(Encode(set))
	assert.Empty(t, errs)
	assert.True(t, Equal(set, decoded))
}

func TestDecodeFromJSONShapes(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"skills":           []any{"go", " sql "},
		"experience-range": map[string]any{"min": 2.0},
		"geo-radius":       map[string]any{"lat": 10.0, "lon": 20.0, "distance": 5.0},
		"has-email":        "yes",
	}

	set, errs := Decode(raw)
	require.Len(t, errs, 1)

	assert.Equal(t, List{"go", "sql"}, set[Skills])
	assert.Equal(t, Range{Min: "2"}, set[ExperienceRange])
	assert.Equal(t, "10,20 5km", String(set[GeoRadius]))
	_, ok := set[HasEmail]
	assert.False(t, ok)
}
