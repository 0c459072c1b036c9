package session

import (
	"errors"

	"github.com/spigell/cvtabs/internal/facet"
)

// Direction is the sort order of a session.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

const (
	DefaultPageSize  = 25
	DefaultSortField = "relevance"
)

var (
	ErrNotFound         = errors.New("session not found")
	ErrUnknownSortField = errors.New("unknown sort field")
)

// Sort is the active sort column and order.
type Sort struct {
	Field     string    `json:"field" mapstructure:"field"`
	Direction Direction `json:"direction" mapstructure:"direction"`
}

// Paging holds the requested page (1-based) and the page size.
type Paging struct {
	Page     int `json:"page" mapstructure:"page"`
	PageSize int `json:"pageSize" mapstructure:"pageSize"`
}

// Session is one search tab.
type Session struct {
	ID       string
	RemoteID string
	Name     string
	Query    string
	Facets   facet.Set
	Sort     Sort
	Paging   Paging
	Saved    bool

	// Generation changes whenever a field that affects the search request
	// (query, facets, server sort, paging) changes.
	Generation uint64
	// Revision changes whenever a persisted field changes.
	Revision uint64
}

// Snapshot is a detached copy of a session with display information.
type Snapshot struct {
	Session
	Active bool
	Index  int
}

// Definition is the persisted part of a session.
type Definition struct {
	RemoteID string
	Name     string
	Query    string
	Facets   facet.Set
	Sort     Sort
	Paging   Paging
}

func (s *Session) clone() Session {
	out := *s
	out.Facets = s.Facets.Clone()
	return out
}

// Definition returns the persisted part of the session.
func (s *Session) Definition() Definition {
	return Definition{
		RemoteID: s.RemoteID,
		Name:     s.Name,
		Query:    s.Query,
		Facets:   s.Facets.Clone(),
		Sort:     s.Sort,
		Paging:   s.Paging,
	}
}

// IsPristine reports whether the session was never edited nor saved.
func (s *Session) IsPristine() bool {
	return s.RemoteID == "" && s.Revision == 0
}

// touch records a change of persisted fields.
func (s *Session) touch() {
	s.Revision++
	s.Saved = false
}

// bump records a change of search parameters.
func (s *Session) bump() {
	s.Generation++
	s.touch()
}
