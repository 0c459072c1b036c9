package cache

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/spigell/cvtabs/internal/search"
)

const cleanupInterval = 10 * time.Minute

// Page is the most recently fetched page of a session.
type Page struct {
	Items      []*search.Candidate
	Total      int
	TotalPages int
	FetchedAt  time.Time
}

// Results holds one page per session id. A missing entry means nothing was
// fetched for the session's current parameters, which is different from a
// fetched page with zero items.
type Results struct {
	// mu serializes writers so Reorder never resurrects a replaced page.
	mu    sync.Mutex
	cache *gocache.Cache
	now   func() time.Time
}

// New creates a result cache. A non-positive ttl keeps entries until they are
// invalidated.
func New(ttl time.Duration) *Results {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}

	return &Results{
		cache: gocache.New(ttl, cleanupInterval),
		now:   time.Now,
	}
}

// Get returns a copy of the cached page.
func (r *Results) Get(sessionID string) (*Page, bool) {
	x, found := r.cache.Get(sessionID)
	if !found {
		return nil, false
	}
	return x.(*Page).clone(), true
}

// Put stores the page and stamps it with the current time.
func (r *Results) Put(sessionID string, page Page) {
	r.mu.Lock()
	defer r.mu.Unlock()

	page.FetchedAt = r.now()
	r.cache.Set(sessionID, page.clone(), gocache.DefaultExpiration)
}

// Invalidate drops the session's entry.
func (r *Results) Invalidate(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache.Delete(sessionID)
}

// Reorder applies fn to the cached items in place. It reports false on a miss.
func (r *Results) Reorder(sessionID string, fn func(items []*search.Candidate)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	x, expiresAt, found := r.cache.GetWithExpiration(sessionID)
	if !found {
		return false
	}

	page := x.(*Page).clone()
	fn(page.Items)

	ttl := gocache.NoExpiration
	if !expiresAt.IsZero() {
		ttl = time.Until(expiresAt)
		if ttl <= 0 {
			return false
		}
	}
	r.cache.Set(sessionID, page, ttl)

	return true
}

// Len returns the number of cached sessions, expired entries included until
// the next cleanup.
func (r *Results) Len() int {
	return r.cache.ItemCount()
}

func (p *Page) clone() *Page {
	out := *p
	out.Items = append([]*search.Candidate(nil), p.Items...)
	if out.Items == nil {
		out.Items = []*search.Candidate{}
	}
	return &out
}
