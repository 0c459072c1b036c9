package manager

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/cvtabs/internal/cache"
	"github.com/spigell/cvtabs/internal/executor"
	"github.com/spigell/cvtabs/internal/logger"
	"github.com/spigell/cvtabs/internal/persistence"
	"github.com/spigell/cvtabs/internal/session"
)

// ErrPersistenceDisabled is returned by Save and Load when no document
// service is configured.
var ErrPersistenceDisabled = errors.New("saving sessions is not configured")

// View is what a front-end shows for one session.
type View struct {
	Session session.Snapshot
	// Page is nil when nothing is cached for the session. A fetch that
	// matched nothing yields a non-nil page without items.
	Page *cache.Page
}

// Cached reports whether the session has a result page to show.
func (v View) Cached() bool {
	return v.Page != nil
}

// Manager ties the session store to search and persistence.
type Manager struct {
	store    *session.Store
	executor *executor.Executor
	gateway  *persistence.Gateway
	logger   *zap.Logger
}

// New creates a manager. gateway may be nil.
func New(store *session.Store, exec *executor.Executor, gateway *persistence.Gateway, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		store:    store,
		executor: exec,
		gateway:  gateway,
		logger:   logger,
	}
}

// Store returns the session store for direct edits.
func (m *Manager) Store() *session.Store {
	return m.store
}

// Fetch loads the current page of a session.
func (m *Manager) Fetch(ctx context.Context, id string) (executor.Outcome, error) {
	return m.executor.Fetch(ctx, id)
}

// View returns the session and its own cached page.
func (m *Manager) View(id string) (View, error) {
	snap, err := m.store.Get(id)
	if err != nil {
		return View{}, err
	}

	v := View{Session: snap}
	if page, ok := m.store.Results().Get(id); ok {
		v.Page = page
	}

	return v, nil
}

// ActiveView returns the view of the active session.
func (m *Manager) ActiveView() View {
	v, err := m.View(m.store.Active().ID)
	if err != nil {
		// The store always has an active session.
		return View{Session: m.store.Active()}
	}

	return v
}

// Close closes a session. A saved session is also removed from the document
// service; failures there are returned but the session is closed anyway.
func (m *Manager) Close(ctx context.Context, id string) (session.Snapshot, error) {
	closed, err := m.store.Close(id)
	if err != nil {
		return session.Snapshot{}, err
	}
	m.executor.Forget(id)

	if m.gateway == nil || closed.RemoteID == "" {
		return closed, nil
	}

	if err := m.gateway.DeleteRemote(ctx, closed); err != nil {
		if errors.Is(err, persistence.ErrConflict) {
			logger.WithSession(m.logger, closed.ID, closed.Name, closed.RemoteID).
				Info("saved session was already removed")
		}
		return closed, fmt.Errorf("session closed locally: %w", err)
	}

	return closed, nil
}

// Save stores the session in the document service.
func (m *Manager) Save(ctx context.Context, id string) (session.Snapshot, error) {
	if m.gateway == nil {
		return session.Snapshot{}, ErrPersistenceDisabled
	}

	return m.gateway.Save(ctx, id)
}

// Load opens every saved session.
func (m *Manager) Load(ctx context.Context, pageSize int) ([]string, error) {
	if m.gateway == nil {
		return nil, ErrPersistenceDisabled
	}

	return m.gateway.Load(ctx, pageSize)
}

// Saved lists one page of saved sessions without opening them.
func (m *Manager) Saved(ctx context.Context, page, pageSize int) ([]session.Definition, int, error) {
	if m.gateway == nil {
		return nil, 0, ErrPersistenceDisabled
	}

	return m.gateway.List(ctx, page, pageSize)
}
