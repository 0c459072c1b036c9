package facet

import "slices"

// Key names a filter dimension of a search session.
type Key string

const (
	CountryList      Key = "country-list"
	Industry         Key = "industry"
	Skills           Key = "skills"
	EducationMajor   Key = "education-major"
	EducationDegree  Key = "education-degree"
	JobTitleRole     Key = "job-title-role"
	LanguageList     Key = "language-list"
	ExperienceRange  Key = "experience-range"
	ConnectionsRange Key = "connections-range"
	GeoRadius        Key = "geo-radius"
	HasEmail         Key = "has-email"
	HasPhone         Key = "has-phone"
	OpenToWork       Key = "open-to-work"
)

// Kind is the shape of a facet value.
type Kind int

const (
	KindText Kind = iota
	KindList
	KindRange
	KindBool
	KindGeo
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindList:
		return "list"
	case KindRange:
		return "range"
	case KindBool:
		return "bool"
	case KindGeo:
		return "geo"
	default:
		return "unknown"
	}
}

// Kinds lists the expected value kind of every canonical key.
var Kinds = map[Key]Kind{
	CountryList:      KindList,
	Industry:         KindList,
	Skills:           KindList,
	EducationMajor:   KindList,
	EducationDegree:  KindList,
	JobTitleRole:     KindList,
	LanguageList:     KindList,
	ExperienceRange:  KindRange,
	ConnectionsRange: KindRange,
	GeoRadius:        KindGeo,
	HasEmail:         KindBool,
	HasPhone:         KindBool,
	OpenToWork:       KindBool,
}

// Keys returns the canonical keys in alphabetical order.
func Keys() []Key {
	keys := make([]Key, 0, len(Kinds))
	for k := range Kinds {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Value is a raw or canonical facet value.
type Value interface {
	Kind() Kind
}

// Text is a single free-text value.
type Text string

// List is an ordered multi-select value.
type List []string

// Range is a numeric range. Bounds are kept as entered; an empty bound is open.
type Range struct {
	Min string `json:"min,omitempty" mapstructure:"min"`
	Max string `json:"max,omitempty" mapstructure:"max"`
}

// Bool is an on/off facet.
type Bool bool

// Geo is a radius around a center point. Distance is in kilometers.
type Geo struct {
	Lat      *float64 `json:"lat,omitempty" mapstructure:"lat"`
	Lon      *float64 `json:"lon,omitempty" mapstructure:"lon"`
	Distance *float64 `json:"distance,omitempty" mapstructure:"distance"`
}

func (Text) Kind() Kind  { return KindText }
func (List) Kind() Kind  { return KindList }
func (Range) Kind() Kind { return KindRange }
func (Bool) Kind() Kind  { return KindBool }
func (Geo) Kind() Kind   { return KindGeo }

// Set maps facet keys to values.
type Set map[Key]Value

// Clone returns a shallow copy with list and geo values copied.
func (s Set) Clone() Set {
	if s == nil {
		return Set{}
	}

	out := make(Set, len(s))
	for k, v := range s {
		switch typed := v.(type) {
		case List:
			out[k] = append(List(nil), typed...)
		case Geo:
			out[k] = typed.clone()
		default:
			out[k] = v
		}
	}

	return out
}

// Has reports whether key holds a value that survives normalization.
func (s Set) Has(key Key) bool {
	v, ok := s[key]
	if !ok {
		return false
	}
	_, keep := Normalize(v)
	return keep
}

// Equal compares the canonical forms of two sets.
func Equal(a, b Set) bool {
	ca, cb := Canonical(a), Canonical(b)
	if len(ca) != len(cb) {
		return false
	}

	for k, va := range ca {
		vb, ok := cb[k]
		if !ok || !valueEqual(va, vb) {
			return false
		}
	}

	return true
}

func valueEqual(a, b Value) bool {
	switch ta := a.(type) {
	case List:
		tb, ok := b.(List)
		if !ok || len(ta) != len(tb) {
			return false
		}
		for i := range ta {
			if ta[i] != tb[i] {
				return false
			}
		}
		return true
	case Geo:
		tb, ok := b.(Geo)
		return ok && floatPtrEqual(ta.Lat, tb.Lat) && floatPtrEqual(ta.Lon, tb.Lon) && floatPtrEqual(ta.Distance, tb.Distance)
	default:
		return a == b
	}
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (g Geo) clone() Geo {
	return Geo{Lat: copyFloat(g.Lat), Lon: copyFloat(g.Lon), Distance: copyFloat(g.Distance)}
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// Float is a helper for building Geo values.
func Float(v float64) *float64 {
	return &v
}
