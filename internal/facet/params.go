package facet

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/schema"
)

var encoder = schema.NewEncoder()

// QueryParams is the parameter set understood by the search service.
type QueryParams struct {
	Query            string `schema:"query,omitempty"`
	Countries        string `schema:"countries,omitempty"`
	Industries       string `schema:"industries,omitempty"`
	Skills           string `schema:"skills,omitempty"`
	EducationMajors  string `schema:"educationMajors,omitempty"`
	EducationDegrees string `schema:"educationDegrees,omitempty"`
	JobTitleRoles    string `schema:"jobTitleRoles,omitempty"`
	Languages        string `schema:"languages,omitempty"`
	ExperienceMin    string `schema:"experienceMin,omitempty"`
	ExperienceMax    string `schema:"experienceMax,omitempty"`
	ConnectionsMin   string `schema:"connectionsMin,omitempty"`
	ConnectionsMax   string `schema:"connectionsMax,omitempty"`
	Lat              string `schema:"lat,omitempty"`
	Lon              string `schema:"lon,omitempty"`
	Radius           string `schema:"radius,omitempty"`
	HasEmail         bool   `schema:"hasEmail,omitempty"`
	HasPhone         bool   `schema:"hasPhone,omitempty"`
	OpenToWork       bool   `schema:"openToWork,omitempty"`
	Page             int    `schema:"page,omitempty"`
	PageSize         int    `schema:"pageSize,omitempty"`
	SortField        string `schema:"sortField,omitempty"`
	SortDirection    string `schema:"sortDirection,omitempty"`
}

// Params builds the canonical request parameters from free text and facets.
// Facets that do not survive normalization are left out. When both a geo
// radius and a country list are present the geo radius wins.
func Params(query string, set Set) QueryParams {
	var p QueryParams

	if q, ok := NormalizeText(query); ok {
		p.Query = q
	}

	canonical := Canonical(set)
	for key, value := range canonical {
		switch typed := value.(type) {
		case List:
			assignList(&p, key, strings.Join(typed, ","))
		case Text:
			assignList(&p, key, string(typed))
		case Range:
			assignRange(&p, key, typed)
		case Bool:
			assignBool(&p, key, bool(typed))
		case Geo:
			if key != GeoRadius {
				continue
			}
			p.Lat = strconv.FormatFloat(*typed.Lat, 'f', -1, 64)
			p.Lon = strconv.FormatFloat(*typed.Lon, 'f', -1, 64)
			if typed.Distance != nil {
				p.Radius = FormatDistance(*typed.Distance)
			}
		}
	}

	if p.Lat != "" {
		p.Countries = ""
	}

	return p
}

// Values encodes the parameters as a query string set.
func (p QueryParams) Values() (url.Values, error) {
	q := url.Values{}
	if err := encoder.Encode(p, q); err != nil {
		return nil, fmt.Errorf("encoding query params: %w", err)
	}
	return q, nil
}

func assignList(p *QueryParams, key Key, joined string) {
	switch key {
	case CountryList:
		p.Countries = joined
	case Industry:
		p.Industries = joined
	case Skills:
		p.Skills = joined
	case EducationMajor:
		p.EducationMajors = joined
	case EducationDegree:
		p.EducationDegrees = joined
	case JobTitleRole:
		p.JobTitleRoles = joined
	case LanguageList:
		p.Languages = joined
	}
}

func assignRange(p *QueryParams, key Key, r Range) {
	switch key {
	case ExperienceRange:
		p.ExperienceMin, p.ExperienceMax = r.Min, r.Max
	case ConnectionsRange:
		p.ConnectionsMin, p.ConnectionsMax = r.Min, r.Max
	}
}

func assignBool(p *QueryParams, key Key, v bool) {
	switch key {
	case HasEmail:
		p.HasEmail = v
	case HasPhone:
		p.HasPhone = v
	case OpenToWork:
		p.OpenToWork = v
	}
}
