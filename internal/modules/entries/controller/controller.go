package controller

import (
	"context"
	"net/http"

	"github.com/tkfj/hass-dewpoint/internal/entry"
	"github.com/tkfj/hass-dewpoint/internal/manager"
	"github.com/tkfj/hass-dewpoint/internal/sensor"
)

// EntryManager is the part of the manager the HTTP API drives.
type EntryManager interface {
	List(ctx context.Context) ([]manager.View, error)
	Get(ctx context.Context, id string) (manager.View, error)
	Create(ctx context.Context, source, id string, settings entry.Settings) (entry.Entry, error)
	UpdateOptions(ctx context.Context, id string, settings entry.Settings) (entry.Entry, error)
	Remove(ctx context.Context, id string) error
	Snapshot(id string) (sensor.Snapshot, error)
}

type EntriesController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type entriesControllerImpl struct {
	manager EntryManager
}

func NewEntriesController(manager EntryManager) EntriesController {
	return &entriesControllerImpl{manager: manager}
}

func (c *entriesControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/entries", c.handleList)
	mux.HandleFunc("POST /api/entries", c.handleCreate)
	mux.HandleFunc("GET /api/entries/{id}", c.handleGet)
	mux.HandleFunc("PUT /api/entries/{id}/options", c.handleUpdateOptions)
	mux.HandleFunc("DELETE /api/entries/{id}", c.handleDelete)
	mux.HandleFunc("GET /api/entries/{id}/state", c.handleState)
}
