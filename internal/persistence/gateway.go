package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/cvtabs/internal/logger"
	"github.com/spigell/cvtabs/internal/metrics"
	"github.com/spigell/cvtabs/internal/session"
)

const (
	opSave   = "save"
	opDelete = "delete"
	opList   = "list"

	// Pages requested at once by Load.
	loadConcurrency = 4
)

// saveRequest is validated before a session is sent to the service.
type saveRequest struct {
	Name string `validate:"required,max=200"`
	Type string `validate:"required"`
}

// Gateway saves and loads sessions of a store.
type Gateway struct {
	client     *Client
	store      *session.Store
	filterType string
	validate   *validator.Validate
	logger     *zap.Logger
}

func NewGateway(client *Client, store *session.Store, filterType string, logger *zap.Logger) *Gateway {
	if filterType == "" {
		filterType = DefaultFilterType
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Gateway{
		client:     client,
		store:      store,
		filterType: filterType,
		validate:   validator.New(),
		logger:     logger,
	}
}

// Save creates or updates the remote copy of a session. The session is
// marked saved only if it was not edited while the request was in flight.
// When the remote copy was deleted elsewhere the session forgets it and
// ErrConflict is returned; saving again creates a new copy.
func (g *Gateway) Save(ctx context.Context, id string) (session.Snapshot, error) {
	snap, err := g.store.Get(id)
	if err != nil {
		return session.Snapshot{}, err
	}

	req := saveRequest{Name: strings.TrimSpace(snap.Name), Type: g.filterType}
	if err := g.validate.Struct(req); err != nil {
		return snap, fmt.Errorf("invalid session %s: %w", id, err)
	}

	log := logger.WithSession(g.logger, snap.ID, snap.Name, snap.RemoteID)
	doc := newDocument(g.filterType, snap.Definition())

	remoteID := snap.RemoteID
	if remoteID == "" {
		remoteID, err = g.client.Create(ctx, doc)
	} else {
		err = g.client.Update(ctx, remoteID, doc)
	}

	if err != nil {
		if errors.Is(err, ErrConflict) {
			g.store.ClearRemote(id)
		}
		g.store.MarkUnsaved(id)
		g.count(opSave, err)
		log.Warn("saving session failed", zap.Error(err))
		return snap, fmt.Errorf("saving session %s: %w", id, err)
	}

	g.count(opSave, nil)

	saved, err := g.store.MarkSaved(id, remoteID, snap.Revision)
	if err != nil {
		// Closed while saving; the remote copy stays.
		log.Info("session closed during save", zap.String("remote_id", remoteID))
		snap.RemoteID = remoteID
		return snap, nil
	}

	log.Info("session saved", zap.String("remote_id", remoteID), zap.Bool("up_to_date", saved.Saved))

	return saved, nil
}

// Delete removes the remote copy of a session. Sessions that were never
// saved are left alone.
func (g *Gateway) Delete(ctx context.Context, id string) error {
	snap, err := g.store.Get(id)
	if err != nil {
		return err
	}

	return g.DeleteRemote(ctx, snap)
}

// DeleteRemote removes the remote copy described by snap. The session itself
// may already be closed.
func (g *Gateway) DeleteRemote(ctx context.Context, snap session.Snapshot) error {
	if snap.RemoteID == "" {
		return nil
	}

	log := logger.WithSession(g.logger, snap.ID, snap.Name, snap.RemoteID)

	err := g.client.Delete(ctx, snap.RemoteID)
	g.count(opDelete, err)

	switch {
	case err == nil, errors.Is(err, ErrConflict):
		g.store.ClearRemote(snap.ID)
	}

	if err != nil {
		log.Warn("deleting saved session failed", zap.Error(err))
		return fmt.Errorf("deleting session %s: %w", snap.ID, err)
	}

	log.Info("saved session deleted")

	return nil
}

// List returns one page of saved definitions and the total number of saved
// filters.
func (g *Gateway) List(ctx context.Context, page, pageSize int) ([]session.Definition, int, error) {
	list, err := g.client.List(ctx, g.filterType, page, pageSize)
	g.count(opList, err)
	if err != nil {
		return nil, 0, fmt.Errorf("listing saved sessions: %w", err)
	}

	defs := make([]session.Definition, 0, len(list.Items))
	for _, doc := range list.Items {
		if doc.Type != "" && doc.Type != g.filterType {
			continue
		}

		def, facetErrs, err := doc.definition()
		if err != nil {
			g.logger.Warn("skipping saved session", zap.String(logger.FieldRemoteID, doc.ID), zap.Error(err))
			continue
		}
		for _, ferr := range facetErrs {
			g.logger.Warn("dropping saved facet", zap.String(logger.FieldRemoteID, doc.ID), zap.Error(ferr))
		}

		defs = append(defs, def)
	}

	return defs, list.Total, nil
}

// Load reads every saved filter and opens it in the store. The remaining
// pages after the first are requested concurrently. It returns the ids of
// the opened sessions.
func (g *Gateway) Load(ctx context.Context, pageSize int) ([]string, error) {
	if pageSize < 1 {
		pageSize = session.DefaultPageSize
	}

	first, total, err := g.List(ctx, 1, pageSize)
	if err != nil {
		return nil, err
	}

	pages := (total + pageSize - 1) / pageSize
	results := make([][]session.Definition, max(pages, 1))
	results[0] = first

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(loadConcurrency)

	for page := 2; page <= pages; page++ {
		eg.Go(func() error {
			defs, _, err := g.List(egCtx, page, pageSize)
			if err != nil {
				return err
			}
			results[page-1] = defs
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var all []session.Definition
	for _, defs := range results {
		all = append(all, defs...)
	}

	ids := g.store.Hydrate(all)
	g.logger.Info("saved sessions loaded", zap.Int("total", total), zap.Int("opened", len(ids)))

	return ids, nil
}

func (g *Gateway) count(op string, err error) {
	outcome := metrics.OutcomeOK
	switch {
	case errors.Is(err, ErrConflict):
		outcome = metrics.OutcomeConflict
	case err != nil:
		outcome = metrics.OutcomeFailed
	}

	metrics.PersistenceOps.WithLabelValues(op, outcome).Inc()
}
