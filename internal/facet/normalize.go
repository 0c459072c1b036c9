package facet

import (
	"math"
	"strconv"
	"strings"
)

// Normalize returns the canonical form of v. The second result is false when
// the value must be omitted from the request (blank, empty or invalid input).
func Normalize(v Value) (Value, bool) {
	switch typed := v.(type) {
	case Text:
		s, ok := NormalizeText(string(typed))
		return Text(s), ok
	case List:
		l, ok := NormalizeList(typed)
		return l, ok
	case Range:
		return NormalizeRange(typed)
	case Bool:
		// false means the filter is off.
		return typed, bool(typed)
	case Geo:
		return NormalizeGeo(typed)
	default:
		return nil, false
	}
}

// NormalizeText trims s and collapses every internal whitespace run to a dash.
func NormalizeText(s string) (string, bool) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return "", false
	}
	return strings.Join(fields, "-"), true
}

// NormalizeList normalizes each element and drops the blank ones.
func NormalizeList(values []string) (List, bool) {
	out := make(List, 0, len(values))
	for _, v := range values {
		if s, ok := NormalizeText(v); ok {
			out = append(out, s)
		}
	}

	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// NormalizeRange keeps the bounds that parse as finite numbers.
func NormalizeRange(r Range) (Range, bool) {
	out := Range{
		Min: normalizeBound(r.Min),
		Max: normalizeBound(r.Max),
	}
	if out.Min == "" && out.Max == "" {
		return Range{}, false
	}
	return out, true
}

func normalizeBound(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}

	return strconv.FormatFloat(f, 'f', -1, 64)
}

// NormalizeGeo keeps a geo value only when both coordinates are present and
// valid. A non-positive distance is dropped and the center is kept.
func NormalizeGeo(g Geo) (Geo, bool) {
	if g.Lat == nil || g.Lon == nil {
		return Geo{}, false
	}

	lat, lon := *g.Lat, *g.Lon
	if !finite(lat) || !finite(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Geo{}, false
	}

	out := Geo{Lat: Float(lat), Lon: Float(lon)}
	if g.Distance != nil && finite(*g.Distance) && *g.Distance > 0 {
		out.Distance = Float(*g.Distance)
	}

	return out, true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Canonical returns a normalized copy of s without omitted facets.
func Canonical(s Set) Set {
	out := make(Set, len(s))
	for k, v := range s {
		if n, ok := Normalize(v); ok {
			out[k] = n
		}
	}
	return out
}

// FormatDistance renders a radius with its kilometer suffix.
func FormatDistance(km float64) string {
	return strconv.FormatFloat(km, 'f', -1, 64) + "km"
}
