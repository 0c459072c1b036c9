package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/cvtabs/internal/cache"
	"github.com/spigell/cvtabs/internal/facet"
	"github.com/spigell/cvtabs/internal/session"
)

// documentService is an in-memory document service.
type documentService struct {
	mu       sync.Mutex
	docs     map[string]*Document
	next     int
	requests []string
	// hook runs before a write request is answered.
	hook func(r *http.Request)
}

func newDocumentService() *documentService {
	return &documentService{docs: map[string]*Document{}}
}

func (s *documentService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
	hook := s.hook
	s.mu.Unlock()

	if hook != nil && r.Method != http.MethodGet {
		hook(r)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, documentsPath), "/")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && id == "":
		doc := &Document{}
		if err := json.NewDecoder(r.Body).Decode(doc); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.next++
		doc.ID = fmt.Sprintf("doc-%d", s.next)
		s.docs[doc.ID] = doc
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": doc.ID})
	case r.Method == http.MethodPut:
		if _, ok := s.docs[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		doc := &Document{}
		_ = json.NewDecoder(r.Body).Decode(doc)
		doc.ID = id
		s.docs[id] = doc
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodDelete:
		if _, ok := s.docs[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(s.docs, id)
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodGet:
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))

		ids := make([]string, 0, len(s.docs))
		for docID, doc := range s.docs {
			if doc.Type == r.URL.Query().Get("type") {
				ids = append(ids, docID)
			}
		}
		sort.Slice(ids, func(i, j int) bool {
			a, _ := strconv.Atoi(strings.TrimPrefix(ids[i], "doc-"))
			b, _ := strconv.Atoi(strings.TrimPrefix(ids[j], "doc-"))
			return a < b
		})

		list := DocumentList{Total: len(ids), Items: []*Document{}}
		start := (page - 1) * pageSize
		for i := start; i < len(ids) && i < start+pageSize; i++ {
			list.Items = append(list.Items, s.docs[ids[i]])
		}
		_ = json.NewEncoder(w).Encode(list)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *documentService) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *documentService) put(doc *Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	doc.ID = fmt.Sprintf("doc-%d", s.next)
	s.docs[doc.ID] = doc
}

func (s *documentService) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
}

func (s *documentService) get(id string) *Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[id]
}

func setup(t *testing.T) (*Gateway, *session.Store, *documentService) {
	t.Helper()

	svc := newDocumentService()
	srv := httptest.NewServer(svc)
	t.Cleanup(srv.Close)

	store := session.NewStore(cache.New(0), 10, zap.NewNop())
	gw := NewGateway(New(srv.URL, "token", zap.NewNop()), store, "", zap.NewNop())

	return gw, store, svc
}

func named(t *testing.T, store *session.Store, name string) string {
	t.Helper()

	id := store.Active().ID
	_, err := store.Rename(id, name)
	require.NoError(t, err)

	return id
}

func TestSaveCreatesThenUpdates(t *testing.T) {
	t.Parallel()

	gw, store, svc := setup(t)
	id := named(t, store, "Go in Berlin")
	_, err := store.SetQuery(id, "backend")
	require.NoError(t, err)
	_, err = store.SetFacet(id, facet.Skills, facet.List{"go", "grpc"})
	require.NoError(t, err)

	snap, err := gw.Save(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, snap.Saved)
	assert.Equal(t, "doc-1", snap.RemoteID)

	doc := svc.get("doc-1")
	require.NotNil(t, doc)
	assert.Equal(t, DefaultFilterType, doc.Type)
	assert.Equal(t, "Go in Berlin", doc.Title)
	assert.Equal(t, "backend", doc.Content["query"])
	assert.Equal(t, map[string]any{"skills": []any{"go", "grpc"}}, doc.Content["facets"])

	_, err = store.SetQuery(id, "platform")
	require.NoError(t, err)
	current, err := store.Get(id)
	require.NoError(t, err)
	assert.False(t, current.Saved)

	snap, err = gw.Save(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, snap.Saved)
	assert.Equal(t, "doc-1", snap.RemoteID)
	assert.Equal(t, "platform", svc.get("doc-1").Content["query"])
	assert.Equal(t, []string{"POST /documents", "PUT /documents/doc-1"}, svc.requests)
}

func TestSaveRequiresName(t *testing.T) {
	t.Parallel()

	gw, store, svc := setup(t)
	id := named(t, store, "   ")

	_, err := gw.Save(context.Background(), id)
	require.Error(t, err)
	assert.Zero(t, svc.requestCount())
}

func TestSaveEditedInFlightStaysUnsaved(t *testing.T) {
	t.Parallel()

	gw, store, svc := setup(t)
	id := named(t, store, "racy")
	svc.hook = func(*http.Request) {
		_, _ = store.SetQuery(id, "edited while saving")
	}

	snap, err := gw.Save(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", snap.RemoteID)
	assert.False(t, snap.Saved)
}

func TestSaveRemovedRemotelyConflicts(t *testing.T) {
	t.Parallel()

	gw, store, svc := setup(t)
	id := named(t, store, "gone")

	_, err := gw.Save(context.Background(), id)
	require.NoError(t, err)
	svc.remove("doc-1")

	_, err = store.SetQuery(id, "changed")
	require.NoError(t, err)

	_, err = gw.Save(context.Background(), id)
	assert.True(t, errors.Is(err, ErrConflict))

	snap, err := store.Get(id)
	require.NoError(t, err)
	assert.Empty(t, snap.RemoteID)
	assert.False(t, snap.Saved)

	// Saving again creates a fresh copy.
	snap, err = gw.Save(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "doc-2", snap.RemoteID)
}

func TestSaveServiceErrorLeavesUnsaved(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := session.NewStore(cache.New(0), 10, nil)
	gw := NewGateway(New(srv.URL, "", nil), store, "", nil)
	id := named(t, store, "broken")

	_, err := gw.Save(context.Background(), id)
	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusInternalServerError, perr.Status)

	snap, err := store.Get(id)
	require.NoError(t, err)
	assert.False(t, snap.Saved)
	assert.Empty(t, snap.RemoteID)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	gw, store, svc := setup(t)
	id := named(t, store, "to delete")

	require.NoError(t, gw.Delete(context.Background(), id))
	assert.Zero(t, svc.requestCount(), "unsaved sessions have nothing to delete")

	_, err := gw.Save(context.Background(), id)
	require.NoError(t, err)

	require.NoError(t, gw.Delete(context.Background(), id))
	assert.Nil(t, svc.get("doc-1"))

	snap, err := store.Get(id)
	require.NoError(t, err)
	assert.Empty(t, snap.RemoteID)
	assert.False(t, snap.Saved)
}

func TestDeleteMissingConflicts(t *testing.T) {
	t.Parallel()

	gw, store, svc := setup(t)
	id := named(t, store, "twice")
	_, err := gw.Save(context.Background(), id)
	require.NoError(t, err)
	svc.remove("doc-1")

	err = gw.Delete(context.Background(), id)
	assert.True(t, errors.Is(err, ErrConflict))

	snap, err := store.Get(id)
	require.NoError(t, err)
	assert.Empty(t, snap.RemoteID)
}

func TestLoadHydratesAllPages(t *testing.T) {
	t.Parallel()

	gw, store, svc := setup(t)
	for i := 1; i <= 5; i++ {
		svc.put(&Document{
			Type:  DefaultFilterType,
			Title: fmt.Sprintf("filter %d", i),
			Content: map[string]any{
				"name":   fmt.Sprintf("filter %d", i),
				"query":  "q" + strconv.Itoa(i),
				"facets": map[string]any{"skills": []any{"go"}},
				"sort":   map[string]any{"field": "experience", "direction": "asc"},
				"paging": map[string]any{"page": 1.0, "pageSize": 10.0},
			},
		})
	}
	svc.put(&Document{Type: "note", Title: "not a filter"})

	ids, err := gw.Load(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, ids, 5)

	list := store.List()
	require.Len(t, list, 5, "the empty startup session is replaced")
	for i, snap := range list {
		assert.Equal(t, fmt.Sprintf("filter %d", i+1), snap.Name)
		assert.Equal(t, fmt.Sprintf("doc-%d", i+1), snap.RemoteID)
		assert.True(t, snap.Saved)
		assert.Equal(t, session.Sort{Field: "experience", Direction: session.Ascending}, snap.Sort)
		assert.Equal(t, facet.List{"go"}, snap.Facets[facet.Skills])
	}

	// Loading again does not open duplicates.
	ids, err = gw.Load(context.Background(), 2)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Equal(t, 5, store.Len())
}

func TestLoadAppliesGeoCountryRule(t *testing.T) {
	t.Parallel()

	gw, store, svc := setup(t)
	svc.put(&Document{
		Type:  DefaultFilterType,
		Title: "legacy",
		Content: map[string]any{
			"facets": map[string]any{
				"country-list": []any{"DE"},
				"geo-radius":   map[string]any{"lat": 52.52, "lon": 13.4, "distance": 25.0},
			},
		},
	})

	_, err := gw.Load(context.Background(), 10)
	require.NoError(t, err)

	snap := store.List()[0]
	assert.Equal(t, "legacy", snap.Name)
	assert.True(t, snap.Facets.Has(facet.GeoRadius), "geo radius wins over countries")
	assert.False(t, snap.Facets.Has(facet.CountryList))
}

func TestLoadFailsOnServiceError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	store := session.NewStore(cache.New(0), 10, nil)
	gw := NewGateway(New(srv.URL, "", nil), store, "", nil)

	_, err := gw.Load(context.Background(), 10)
	require.Error(t, err)
	assert.Equal(t, 1, store.Len())
}

func TestListAdvertisesOnlyGzip(t *testing.T) {
	t.Parallel()

	var accepted string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accepted = r.Header.Get("Accept-Encoding")
		_, _ = w.Write([]byte(`{"items":[],"total":0}`))
	}))
	defer srv.Close()

	list, err := New(srv.URL, "", nil).List(context.Background(), "filter", 1, 10)
	require.NoError(t, err)
	assert.Empty(t, list.Items)
	assert.Equal(t, "gzip", accepted)
}
