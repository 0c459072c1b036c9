package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/cvtabs/internal/cache"
	"github.com/spigell/cvtabs/internal/facet"
	"github.com/spigell/cvtabs/internal/logger"
	"github.com/spigell/cvtabs/internal/search"
	"github.com/spigell/cvtabs/internal/utils"
)

const maxLoggedQuery = 80

// Store is the ordered set of open sessions. It is the only writer of session
// state and keeps the result cache consistent with it.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	order    []string
	active   string

	results  *cache.Results
	pageSize int
	logger   *zap.Logger
	newID    func() string
}

// Patch lists the fields to change in Mutate. Nil fields are left alone; a
// nil facet value removes that facet.
type Patch struct {
	Query  *string
	Facets facet.Set
	Sort   *Sort
	Paging *Paging
}

// Change is returned by mutating operations.
type Change struct {
	Session Snapshot
	// Invalidated is set when the cached page was dropped and a fetch is
	// needed to show results again.
	Invalidated bool
}

// CommitStatus is the outcome of Commit.
type CommitStatus int

const (
	// Committed means the page was stored in the result cache.
	Committed CommitStatus = iota
	// Stale means the session changed after the request was built.
	Stale
	// PageAdjusted means the requested page was out of range; the session
	// now points at the last valid page and must be fetched again.
	PageAdjusted
)

// NewStore creates a store holding one fresh session.
func NewStore(results *cache.Results, pageSize int, logger *zap.Logger) *Store {
	if results == nil {
		results = cache.New(0)
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{
		sessions: make(map[string]*Session),
		results:  results,
		pageSize: pageSize,
		logger:   logger,
		newID:    uuid.NewString,
	}
	s.appendFresh()

	return s
}

// Results exposes the cache owned by the store for readers.
func (s *Store) Results() *cache.Results {
	return s.results
}

// Create opens a new empty session and makes it active.
func (s *Store) Create() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.appendFresh()
	s.active = sess.ID
	s.log(sess).Debug("session created")

	return s.snapshot(sess)
}

// Close removes a session. Closing the last session replaces it with a fresh
// one. When the active session is closed its right neighbour, or the left
// one for the last tab, becomes active. The closed session is returned.
func (s *Store) Close(id string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, idx, err := s.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}

	closed := s.snapshot(sess)

	delete(s.sessions, id)
	s.order = append(s.order[:idx], s.order[idx+1:]...)
	s.results.Invalidate(id)

	if len(s.order) == 0 {
		fresh := s.appendFresh()
		s.active = fresh.ID
	} else if s.active == id {
		s.active = s.order[min(idx, len(s.order)-1)]
	}

	s.log(sess).Debug("session closed", zap.String("active", s.active))

	return closed, nil
}

// Activate makes the session the current one.
func (s *Store) Activate(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, _, err := s.lookup(id); err != nil {
		return err
	}
	s.active = id

	return nil
}

// Rename changes the display label.
func (s *Store) Rename(id, name string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, _, err := s.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}

	name = strings.TrimSpace(name)
	if name != sess.Name {
		sess.Name = name
		sess.touch()
	}

	return s.snapshot(sess), nil
}

// Mutate applies a patch. Facets are written through SetFacet so the
// geo/country rule holds. Any change of query or facets resets the page to 1
// unless the patch also sets paging. The cached page is dropped when the
// request parameters changed.
func (s *Store) Mutate(id string, p Patch) (Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, _, err := s.lookup(id)
	if err != nil {
		return Change{}, err
	}

	if p.Sort != nil {
		if _, err := ModeOf(p.Sort.Field); err != nil {
			return Change{}, err
		}
	}

	filtersChanged := false

	if p.Query != nil && *p.Query != sess.Query {
		before, _ := facet.NormalizeText(sess.Query)
		after, _ := facet.NormalizeText(*p.Query)
		if before != after {
			filtersChanged = true
		}
		sess.Query = *p.Query
		sess.touch()
	}

	for key, value := range p.Facets {
		if SetFacet(sess, key, value) {
			filtersChanged = true
		}
	}

	invalidate := filtersChanged

	if p.Sort != nil && *p.Sort != sess.Sort {
		if s.applySort(sess, *p.Sort) {
			invalidate = true
		}
	}

	if p.Paging != nil {
		if s.applyPaging(sess, *p.Paging) {
			invalidate = true
		}
	} else if filtersChanged && sess.Paging.Page != 1 {
		sess.Paging.Page = 1
	}

	if invalidate {
		s.invalidate(sess)
		s.log(sess).Debug("session parameters changed",
			zap.String("query", utils.TruncateForLog(sess.Query, maxLoggedQuery)),
			zap.Int("facets", len(sess.Facets)),
			zap.Uint64("generation", sess.Generation),
		)
	}

	return Change{Session: s.snapshot(sess), Invalidated: invalidate}, nil
}

// SetQuery replaces the free-text query.
func (s *Store) SetQuery(id, query string) (Change, error) {
	return s.Mutate(id, Patch{Query: &query})
}

// SetFacet writes a single facet.
func (s *Store) SetFacet(id string, key facet.Key, v facet.Value) (Change, error) {
	return s.Mutate(id, Patch{Facets: facet.Set{key: v}})
}

// ApplyGeo sets the geo radius, clearing the country list.
func (s *Store) ApplyGeo(id string, g *facet.Geo) (Change, error) {
	var v facet.Value
	if g != nil {
		v = *g
	}
	return s.Mutate(id, Patch{Facets: facet.Set{facet.GeoRadius: v}})
}

// ApplyCountries sets the country list, clearing the geo radius.
func (s *Store) ApplyCountries(id string, countries []string) (Change, error) {
	return s.Mutate(id, Patch{Facets: facet.Set{facet.CountryList: facet.List(countries)}})
}

// SetSort handles a click on a sortable column. Server sorts drop the cached
// page; local sorts reorder it in place.
func (s *Store) SetSort(id, field string) (SortOutcome, Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, _, err := s.lookup(id)
	if err != nil {
		return SortOutcome{}, Change{}, err
	}

	prev := sess.Sort
	outcome, err := SetSort(sess, field)
	if err != nil {
		return SortOutcome{}, Change{}, err
	}
	sess.Sort = prev

	invalidate := s.applySort(sess, outcome.Sort)
	if invalidate {
		s.invalidate(sess)
	}

	s.log(sess).Debug("sort changed",
		zap.String("field", sess.Sort.Field),
		zap.String("direction", string(sess.Sort.Direction)),
		zap.Stringer("mode", outcome.Mode),
	)

	return outcome, Change{Session: s.snapshot(sess), Invalidated: invalidate}, nil
}

// SetPage moves to another page.
func (s *Store) SetPage(id string, page int) (Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, _, err := s.lookup(id)
	if err != nil {
		return Change{}, err
	}

	p := sess.Paging
	p.Page = page
	invalidate := s.applyPaging(sess, p)
	if invalidate {
		s.invalidate(sess)
	}

	return Change{Session: s.snapshot(sess), Invalidated: invalidate}, nil
}

// SetPageSize changes the page size and goes back to the first page.
func (s *Store) SetPageSize(id string, size int) (Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, _, err := s.lookup(id)
	if err != nil {
		return Change{}, err
	}

	invalidate := s.applyPaging(sess, Paging{Page: 1, PageSize: size})
	if invalidate {
		s.invalidate(sess)
	}

	return Change{Session: s.snapshot(sess), Invalidated: invalidate}, nil
}

// Get returns a snapshot of the session.
func (s *Store) Get(id string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, _, err := s.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}

	return s.snapshot(sess), nil
}

// Active returns the current session.
func (s *Store) Active() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshot(s.sessions[s.active])
}

// List returns all sessions in tab order.
func (s *Store) List() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Snapshot, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.snapshot(s.sessions[id]))
	}

	return out
}

// Len returns the number of open sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.order)
}

// Hydrate opens saved definitions as new sessions. Definitions whose remote
// id is already open are skipped. A single pristine session is replaced so a
// load at startup does not leave an empty tab behind. It returns the ids of
// the opened sessions.
func (s *Store) Hydrate(defs []Definition) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	open := make(map[string]struct{}, len(s.order))
	for _, id := range s.order {
		if remote := s.sessions[id].RemoteID; remote != "" {
			open[remote] = struct{}{}
		}
	}

	var placeholder string
	if len(s.order) == 1 && s.sessions[s.order[0]].IsPristine() {
		placeholder = s.order[0]
	}

	ids := make([]string, 0, len(defs))
	for _, def := range defs {
		if _, ok := open[def.RemoteID]; ok && def.RemoteID != "" {
			continue
		}

		sess := s.fromDefinition(def)
		s.sessions[sess.ID] = sess
		s.order = append(s.order, sess.ID)
		ids = append(ids, sess.ID)
		open[def.RemoteID] = struct{}{}
	}

	if placeholder != "" && len(ids) > 0 {
		delete(s.sessions, placeholder)
		s.order = s.order[1:]
		s.results.Invalidate(placeholder)
		s.active = s.order[0]
	}

	s.logger.Debug("sessions hydrated", zap.Int("count", len(ids)))

	return ids
}

// MarkSaved records a successful save. The session is flagged as saved only
// if it did not change since revision was read.
func (s *Store) MarkSaved(id, remoteID string, revision uint64) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, _, err := s.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}

	sess.RemoteID = remoteID
	sess.Saved = sess.Revision == revision

	return s.snapshot(sess), nil
}

// MarkUnsaved records a failed save.
func (s *Store) MarkUnsaved(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		sess.Saved = false
	}
}

// ClearRemote forgets the remote record of a session, e.g. after it was
// found missing on the server.
func (s *Store) ClearRemote(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		sess.RemoteID = ""
		sess.Saved = false
	}
}

// Commit stores a fetched page if generation still matches the session.
// The page is reconciled first; when the requested page is past the end the
// session is moved to the last page and nothing is cached.
func (s *Store) Commit(id string, generation uint64, res *search.Result) (Reconciliation, CommitStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, _, err := s.lookup(id)
	if err != nil {
		return Reconciliation{}, Stale, err
	}

	if sess.Generation != generation {
		return Reconciliation{}, Stale, nil
	}

	rec := Reconcile(sess.Paging, res.Total)
	if rec.Adjusted {
		sess.Paging.Page = rec.Page
		sess.bump()
		s.results.Invalidate(id)
		s.log(sess).Debug("page adjusted", zap.Int("page", rec.Page), zap.Int("total_pages", rec.TotalPages))
		return rec, PageAdjusted, nil
	}

	items := append([]*search.Candidate(nil), res.Items...)
	if mode, err := ModeOf(sess.Sort.Field); err == nil && mode == LocalSort {
		SortCandidates(items, sess.Sort)
	}

	s.results.Put(id, cache.Page{
		Items:      items,
		Total:      res.Total,
		TotalPages: rec.TotalPages,
	})

	return rec, Committed, nil
}

// applySort stores sort and reports whether the cached page must be dropped.
func (s *Store) applySort(sess *Session, sort Sort) bool {
	mode, _ := ModeOf(sort.Field)
	if sort.Direction != Ascending {
		sort.Direction = Descending
	}

	before := requestSort(sess.Sort)
	sess.Sort = sort
	sess.touch()

	if mode == LocalSort {
		// Leaving a server sort changes the request; responses built with
		// the old sort must not be committed or shared.
		if before != requestSort(sort) {
			sess.Generation++
		}
		s.results.Reorder(sess.ID, func(items []*search.Candidate) {
			SortCandidates(items, sort)
		})
		return false
	}

	return true
}

// requestSort is the part of sort sent to the search service.
func requestSort(sort Sort) Sort {
	if IsServerSort(sort.Field) {
		return sort
	}
	return Sort{}
}

// applyPaging stores paging and reports whether it changed.
func (s *Store) applyPaging(sess *Session, p Paging) bool {
	if p.PageSize < 1 {
		p.PageSize = s.pageSize
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p == sess.Paging {
		return false
	}

	sess.Paging = p
	sess.touch()

	return true
}

func (s *Store) invalidate(sess *Session) {
	sess.bump()
	s.results.Invalidate(sess.ID)
}

func (s *Store) appendFresh() *Session {
	sess := &Session{
		ID:     s.newID(),
		Facets: facet.Set{},
		Sort:   Sort{Field: DefaultSortField, Direction: Descending},
		Paging: Paging{Page: 1, PageSize: s.pageSize},
	}

	s.sessions[sess.ID] = sess
	s.order = append(s.order, sess.ID)
	if s.active == "" {
		s.active = sess.ID
	}

	return sess
}

func (s *Store) fromDefinition(def Definition) *Session {
	sess := &Session{
		ID:       s.newID(),
		RemoteID: def.RemoteID,
		Name:     strings.TrimSpace(def.Name),
		Query:    def.Query,
		Facets:   facet.Set{},
		Sort:     Sort{Field: DefaultSortField, Direction: Descending},
		Paging:   Paging{Page: 1, PageSize: s.pageSize},
		Saved:    def.RemoteID != "",
	}

	// Saved definitions may predate the geo/country rule; route them
	// through it. Geo goes last so it wins, as in facet.Params.
	for key, value := range def.Facets {
		if key != facet.CountryList && key != facet.GeoRadius {
			SetFacet(sess, key, value)
		}
	}
	for _, key := range []facet.Key{facet.CountryList, facet.GeoRadius} {
		if value, ok := def.Facets[key]; ok {
			SetFacet(sess, key, value)
		}
	}

	if _, err := ModeOf(def.Sort.Field); err == nil {
		sess.Sort = def.Sort
		if sess.Sort.Direction != Ascending {
			sess.Sort.Direction = Descending
		}
	}

	if def.Paging.PageSize > 0 {
		sess.Paging.PageSize = def.Paging.PageSize
	}
	if def.Paging.Page > 0 {
		sess.Paging.Page = def.Paging.Page
	}

	return sess
}

func (s *Store) lookup(id string) (*Session, int, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, -1, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	for i, v := range s.order {
		if v == id {
			return sess, i, nil
		}
	}

	return nil, -1, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *Store) snapshot(sess *Session) Snapshot {
	idx := -1
	for i, v := range s.order {
		if v == sess.ID {
			idx = i
			break
		}
	}

	return Snapshot{
		Session: sess.clone(),
		Active:  sess.ID == s.active,
		Index:   idx,
	}
}

func (s *Store) log(sess *Session) *zap.Logger {
	return logger.WithSession(s.logger, sess.ID, sess.Name, sess.RemoteID)
}
