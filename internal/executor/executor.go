package executor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spigell/cvtabs/internal/cache"
	"github.com/spigell/cvtabs/internal/facet"
	"github.com/spigell/cvtabs/internal/logger"
	"github.com/spigell/cvtabs/internal/metrics"
	"github.com/spigell/cvtabs/internal/search"
	"github.com/spigell/cvtabs/internal/session"
)

// A page adjustment is followed by one more request; the adjusted page is
// always in range for the total that caused it.
const maxAttempts = 2

// ErrPageAdjusted is returned when the total kept shrinking between the
// adjusted request and its retry. Fetching again is safe.
var ErrPageAdjusted = errors.New("requested page is out of range")

// Searcher runs a search request.
type Searcher interface {
	Search(ctx context.Context, params facet.QueryParams) (*search.Result, error)
}

// Outcome describes a finished fetch.
type Outcome struct {
	Session session.Snapshot
	// Page is the cached page after the fetch. It is nil when the response
	// was discarded.
	Page *cache.Page
	// Token identifies the request whose response was applied or dropped.
	Token uint64
	// Adjusted is set when the first response was for a page past the end
	// and the session was moved to the last page.
	Adjusted bool
	// Discarded is set when the session changed or a newer fetch started
	// while the request was in flight.
	Discarded bool
	// Shared is set when the call joined an identical in-flight request.
	Shared bool
}

// Executor issues search requests for sessions. Each session has at most one
// request whose response may be applied: the one holding its latest token.
type Executor struct {
	store    *session.Store
	searcher Searcher
	logger   *zap.Logger
	group    singleflight.Group

	mu     sync.Mutex
	tokens map[string]uint64
}

func New(store *session.Store, searcher Searcher, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Executor{
		store:    store,
		searcher: searcher,
		logger:   logger,
		tokens:   make(map[string]uint64),
	}
}

// Fetch requests the current page of the session and stores it in the result
// cache. Concurrent calls for the same session parameters share one request.
// On failure the cached page is left as it was.
func (e *Executor) Fetch(ctx context.Context, id string) (Outcome, error) {
	var out Outcome
	adjusted := false

	for attempt := 0; attempt < maxAttempts; attempt++ {
		snap, err := e.store.Get(id)
		if err != nil {
			return Outcome{}, err
		}

		key := id + "/" + strconv.FormatUint(snap.Generation, 10)
		v, err, shared := e.group.Do(key, func() (interface{}, error) {
			return e.fetchOnce(ctx, snap)
		})
		if shared {
			metrics.CoalescedFetches.Inc()
		}
		if err != nil {
			return Outcome{}, fmt.Errorf("fetching session %s: %w", id, err)
		}

		out = v.(Outcome)
		out.Shared = shared
		out.Adjusted = out.Adjusted || adjusted

		if out.Page != nil || out.Discarded {
			return out, nil
		}

		adjusted = true
	}

	return out, ErrPageAdjusted
}

// Forget drops the token bookkeeping of a closed session. Responses still in
// flight for it are discarded.
func (e *Executor) Forget(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.tokens, id)
}

// Params returns the request parameters for a session. Local sort fields are
// not sent; the service orders those pages by its default.
func Params(s session.Snapshot) facet.QueryParams {
	p := facet.Params(s.Query, s.Facets)
	p.Page = s.Paging.Page
	p.PageSize = s.Paging.PageSize

	if session.IsServerSort(s.Sort.Field) {
		p.SortField = s.Sort.Field
		p.SortDirection = string(s.Sort.Direction)
	}

	return p
}

func (e *Executor) fetchOnce(ctx context.Context, snap session.Snapshot) (Outcome, error) {
	token := e.issue(snap.ID)
	log := logger.WithSession(e.logger, snap.ID, snap.Name, snap.RemoteID).With(
		zap.Uint64("token", token),
		zap.Uint64("generation", snap.Generation),
		zap.Int("page", snap.Paging.Page),
	)

	started := time.Now()
	res, err := e.searcher.Search(ctx, Params(snap))
	metrics.FetchDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.Fetches.WithLabelValues(metrics.OutcomeFailed).Inc()
		log.Warn("search failed", zap.Error(err), zap.Bool("retryable", search.IsRetryable(err)))
		return Outcome{}, err
	}

	out := Outcome{Session: snap, Token: token}

	if !e.isLatest(snap.ID, token) {
		metrics.Fetches.WithLabelValues(metrics.OutcomeDiscarded).Inc()
		log.Debug("discarding response", zap.String("reason", "newer fetch started"))
		out.Discarded = true
		return out, nil
	}

	rec, status, err := e.store.Commit(snap.ID, snap.Generation, res)
	if err != nil {
		// The session was closed while the request was in flight.
		metrics.Fetches.WithLabelValues(metrics.OutcomeDiscarded).Inc()
		out.Discarded = true
		return out, nil
	}

	switch status {
	case session.Stale:
		metrics.Fetches.WithLabelValues(metrics.OutcomeDiscarded).Inc()
		log.Debug("discarding response", zap.String("reason", "session changed"))
		out.Discarded = true
	case session.PageAdjusted:
		metrics.Fetches.WithLabelValues(metrics.OutcomeAdjusted).Inc()
		metrics.PageAdjustments.Inc()
		log.Info("page out of range, moving to last page",
			zap.Int("total", res.Total),
			zap.Int("adjusted_page", rec.Page),
		)
		out.Adjusted = true
	case session.Committed:
		metrics.Fetches.WithLabelValues(metrics.OutcomeCommitted).Inc()
		page, ok := e.store.Results().Get(snap.ID)
		if !ok {
			out.Discarded = true
			break
		}
		out.Page = page
		log.Debug("results cached", zap.Int("total_pages", rec.TotalPages), zap.Int("items", len(page.Items)))
	}

	if current, err := e.store.Get(snap.ID); err == nil {
		out.Session = current
	}

	return out, nil
}

func (e *Executor) issue(id string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.tokens[id]++
	return e.tokens[id]
}

func (e *Executor) isLatest(id string, token uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.tokens[id] == token
}
