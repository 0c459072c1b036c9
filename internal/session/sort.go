package session

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/spigell/cvtabs/internal/search"
)

// SortMode tells whether a sort is applied by the search service or by
// reordering the cached page.
type SortMode int

const (
	ServerSort SortMode = iota
	LocalSort
)

func (m SortMode) String() string {
	if m == LocalSort {
		return "local"
	}
	return "server"
}

// Sort fields understood by the search service.
const (
	SortRelevance   = "relevance"
	SortExperience  = "experience"
	SortConnections = "connections"
	SortStartDate   = "start-date"
)

// Table columns sorted on the cached page only.
const (
	SortName            = "name"
	SortTitle           = "title"
	SortCompany         = "company"
	SortLocation        = "location"
	SortCountry         = "country"
	SortIndustry        = "industry"
	SortExperienceYears = "experience-years"
	SortConnectionCount = "connection-count"
	SortSocialPresence  = "social-presence"
)

var serverSortFields = map[string]struct{}{
	SortRelevance:   {},
	SortExperience:  {},
	SortConnections: {},
	SortStartDate:   {},
}

// SortFields lists every sortable field, server sorts first.
func SortFields() []string {
	return []string{
		SortRelevance, SortExperience, SortConnections, SortStartDate,
		SortName, SortTitle, SortCompany, SortLocation, SortCountry, SortIndustry,
		SortExperienceYears, SortConnectionCount, SortSocialPresence,
	}
}

type comparator func(a, b *search.Candidate) int

var localComparators = map[string]comparator{
	SortName:            byText(func(c *search.Candidate) string { return c.Name }),
	SortTitle:           byText(func(c *search.Candidate) string { return c.Title }),
	SortCompany:         byText(func(c *search.Candidate) string { return c.Company }),
	SortLocation:        byText(func(c *search.Candidate) string { return c.Location }),
	SortCountry:         byText(func(c *search.Candidate) string { return c.Country }),
	SortIndustry:        byText(func(c *search.Candidate) string { return c.Industry }),
	SortExperienceYears: byNumber(func(c *search.Candidate) float64 { return c.ExperienceYears }),
	SortConnectionCount: byNumber(func(c *search.Candidate) float64 { return float64(c.Connections) }),
	SortSocialPresence:  byNumber(func(c *search.Candidate) float64 { return float64(c.SocialPresence()) }),
}

// SortOutcome describes what a sort change requires from the caller.
type SortOutcome struct {
	Sort    Sort
	Mode    SortMode
	Refetch bool
}

// IsServerSort reports whether field is sorted by the search service.
func IsServerSort(field string) bool {
	_, ok := serverSortFields[field]
	return ok
}

// ModeOf returns the sort mode of field or ErrUnknownSortField.
func ModeOf(field string) (SortMode, error) {
	if IsServerSort(field) {
		return ServerSort, nil
	}
	if _, ok := localComparators[field]; ok {
		return LocalSort, nil
	}
	return ServerSort, fmt.Errorf("%w: %q", ErrUnknownSortField, field)
}

// SetSort toggles the direction when field is already active, otherwise it
// selects field in descending order.
func SetSort(s *Session, field string) (SortOutcome, error) {
	field = strings.TrimSpace(field)
	mode, err := ModeOf(field)
	if err != nil {
		return SortOutcome{}, err
	}

	if s.Sort.Field == field {
		s.Sort.Direction = s.Sort.Direction.flip()
	} else {
		s.Sort = Sort{Field: field, Direction: Descending}
	}

	return SortOutcome{Sort: s.Sort, Mode: mode, Refetch: mode == ServerSort}, nil
}

// SortCandidates reorders items in place for a local sort. Server sorts and
// unknown fields leave items untouched.
func SortCandidates(items []*search.Candidate, sort Sort) {
	compare, ok := localComparators[sort.Field]
	if !ok {
		return
	}

	slices.SortStableFunc(items, func(a, b *search.Candidate) int {
		if sort.Direction == Ascending {
			return compare(a, b)
		}
		return compare(b, a)
	})
}

func (d Direction) flip() Direction {
	if d == Descending {
		return Ascending
	}
	return Descending
}

func byText(get func(*search.Candidate) string) comparator {
	return func(a, b *search.Candidate) int {
		return strings.Compare(strings.ToLower(get(a)), strings.ToLower(get(b)))
	}
}

func byNumber(get func(*search.Candidate) float64) comparator {
	return func(a, b *search.Candidate) int {
		return cmp.Compare(get(a), get(b))
	}
}
