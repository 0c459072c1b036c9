package manager

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/cvtabs/internal/cache"
	"github.com/spigell/cvtabs/internal/executor"
	"github.com/spigell/cvtabs/internal/facet"
	"github.com/spigell/cvtabs/internal/persistence"
	"github.com/spigell/cvtabs/internal/search"
	"github.com/spigell/cvtabs/internal/session"
)

type staticSearcher struct {
	result *search.Result
}

func (s staticSearcher) Search(context.Context, facet.QueryParams) (*search.Result, error) {
	return s.result, nil
}

// documents answers create and delete requests. Deletes of ids listed in
// gone return 404.
type documents struct {
	mu      sync.Mutex
	deleted []string
	gone    map[string]bool
}

func (d *documents) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch r.Method {
	case http.MethodPost:
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "doc-1"})
	case http.MethodDelete:
		id := strings.TrimPrefix(r.URL.Path, "/documents/")
		if d.gone[id] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		d.deleted = append(d.deleted, id)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newManager(t *testing.T, docs *documents, res *search.Result) *Manager {
	t.Helper()

	store := session.NewStore(cache.New(0), 10, zap.NewNop())
	exec := executor.New(store, staticSearcher{result: res}, zap.NewNop())

	var gw *persistence.Gateway
	if docs != nil {
		srv := httptest.NewServer(docs)
		t.Cleanup(srv.Close)
		gw = persistence.NewGateway(persistence.New(srv.URL, "", nil), store, "", nil)
	}

	return New(store, exec, gw, zap.NewNop())
}

func TestViewDistinguishesMissFromEmpty(t *testing.T) {
	t.Parallel()

	m := newManager(t, nil, &search.Result{Total: 0})
	id := m.Store().Active().ID

	v, err := m.View(id)
	require.NoError(t, err)
	assert.False(t, v.Cached())

	_, err = m.Fetch(context.Background(), id)
	require.NoError(t, err)

	v = m.ActiveView()
	require.True(t, v.Cached())
	assert.Empty(t, v.Page.Items)
	assert.Equal(t, 1, v.Page.TotalPages)
}

func TestViewIsPerSession(t *testing.T) {
	t.Parallel()

	m := newManager(t, nil, &search.Result{Total: 1, Items: []*search.Candidate{{ID: "c1"}}})
	a := m.Store().Active().ID
	b := m.Store().Create().ID

	_, err := m.Fetch(context.Background(), a)
	require.NoError(t, err)

	va, err := m.View(a)
	require.NoError(t, err)
	vb, err := m.View(b)
	require.NoError(t, err)

	assert.True(t, va.Cached())
	assert.False(t, vb.Cached())
	assert.True(t, m.ActiveView().Session.ID == b)
}

func TestCloseUnsavedDoesNotCallService(t *testing.T) {
	t.Parallel()

	docs := &documents{}
	m := newManager(t, docs, &search.Result{})
	id := m.Store().Active().ID

	closed, err := m.Close(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, closed.ID)
	assert.Empty(t, docs.deleted)
	assert.Equal(t, 1, m.Store().Len())
	assert.NotEqual(t, id, m.Store().Active().ID)
}

func TestCloseSavedDeletesRemote(t *testing.T) {
	t.Parallel()

	docs := &documents{}
	m := newManager(t, docs, &search.Result{})
	id := m.Store().Active().ID
	_, err := m.Store().Rename(id, "saved")
	require.NoError(t, err)
	_, err = m.Save(context.Background(), id)
	require.NoError(t, err)

	_, err = m.Close(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-1"}, docs.deleted)
}

func TestCloseReportsConflictButClosesLocally(t *testing.T) {
	t.Parallel()

	docs := &documents{gone: map[string]bool{"doc-1": true}}
	m := newManager(t, docs, &search.Result{})
	id := m.Store().Active().ID
	m.Store().Create()
	_, err := m.Store().Rename(id, "stale")
	require.NoError(t, err)
	_, err = m.Save(context.Background(), id)
	require.NoError(t, err)

	_, err = m.Close(context.Background(), id)
	assert.True(t, errors.Is(err, persistence.ErrConflict))

	_, err = m.Store().Get(id)
	assert.True(t, errors.Is(err, session.ErrNotFound))
	assert.Equal(t, 1, m.Store().Len())
}

func TestPersistenceDisabled(t *testing.T) {
	t.Parallel()

	m := newManager(t, nil, &search.Result{})
	id := m.Store().Active().ID

	_, err := m.Save(context.Background(), id)
	assert.True(t, errors.Is(err, ErrPersistenceDisabled))
	_, err = m.Load(context.Background(), 10)
	assert.True(t, errors.Is(err, ErrPersistenceDisabled))
	_, _, err = m.Saved(context.Background(), 1, 10)
	assert.True(t, errors.Is(err, ErrPersistenceDisabled))
}
