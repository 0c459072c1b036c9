package session

import (
	"github.com/spigell/cvtabs/internal/facet"
)

// ApplyGeo sets the geo-radius facet and clears the country list. A nil or
// incomplete geo value only clears the geo-radius facet. It reports whether
// the facets changed.
func ApplyGeo(s *Session, g *facet.Geo) bool {
	before := s.Facets.Clone()

	if g == nil {
		delete(s.Facets, facet.GeoRadius)
		return !facet.Equal(before, s.Facets)
	}

	if _, ok := facet.NormalizeGeo(*g); !ok {
		delete(s.Facets, facet.GeoRadius)
		return !facet.Equal(before, s.Facets)
	}

	s.ensureFacets()
	s.Facets[facet.GeoRadius] = facet.Set{facet.GeoRadius: *g}.Clone()[facet.GeoRadius]
	delete(s.Facets, facet.CountryList)

	return !facet.Equal(before, s.Facets)
}

// ApplyCountries sets the country list and clears the geo-radius facet. An
// empty list only clears the country list.
func ApplyCountries(s *Session, countries []string) bool {
	before := s.Facets.Clone()

	if _, ok := facet.NormalizeList(countries); !ok {
		delete(s.Facets, facet.CountryList)
		return !facet.Equal(before, s.Facets)
	}

	s.ensureFacets()
	s.Facets[facet.CountryList] = append(facet.List(nil), countries...)
	delete(s.Facets, facet.GeoRadius)

	return !facet.Equal(before, s.Facets)
}

// SetFacet is the only way facets are written. Geo-radius and country-list
// values go through ApplyGeo and ApplyCountries; a nil value or a value that
// normalizes to nothing removes the facet.
func SetFacet(s *Session, key facet.Key, v facet.Value) bool {
	switch key {
	case facet.GeoRadius:
		switch typed := v.(type) {
		case facet.Geo:
			return ApplyGeo(s, &typed)
		case *facet.Geo:
			return ApplyGeo(s, typed)
		default:
			return ApplyGeo(s, nil)
		}
	case facet.CountryList:
		switch typed := v.(type) {
		case facet.List:
			return ApplyCountries(s, typed)
		case facet.Text:
			return ApplyCountries(s, []string{string(typed)})
		default:
			return ApplyCountries(s, nil)
		}
	}

	before := s.Facets.Clone()
	if v == nil {
		delete(s.Facets, key)
		return !facet.Equal(before, s.Facets)
	}

	if _, ok := facet.Normalize(v); !ok {
		delete(s.Facets, key)
		return !facet.Equal(before, s.Facets)
	}

	s.ensureFacets()
	s.Facets[key] = facet.Set{key: v}.Clone()[key]

	return !facet.Equal(before, s.Facets)
}

func (s *Session) ensureFacets() {
	if s.Facets == nil {
		s.Facets = facet.Set{}
	}
}
