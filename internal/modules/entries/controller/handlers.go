package controller

import (
	"log/slog"
	"net/http"

	"github.com/tkfj/hass-dewpoint/internal/entry"
	"github.com/tkfj/hass-dewpoint/internal/utils"
)

func (c *entriesControllerImpl) handleList(w http.ResponseWriter, r *http.Request) {
	views, err := c.manager.List(r.Context())
	if err != nil {
		slog.Error("list entries failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load entries")
		return
	}
	utils.WriteJSON(w, http.StatusOK, views)
}

func (c *entriesControllerImpl) handleCreate(w http.ResponseWriter, r *http.Request) {
	var settings entry.Settings
	if err := utils.DecodeJSON(r, &settings); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	e, err := c.manager.Create(r.Context(), entry.SourceAPI, "", settings)
	if err != nil {
		writeManagerError(w, "create entry", err)
		return
	}

	view, err := c.manager.Get(r.Context(), e.ID)
	if err != nil {
		writeManagerError(w, "load created entry", err)
		return
	}
	w.Header().Set("Location", "/api/entries/"+e.ID)
	utils.WriteJSON(w, http.StatusCreated, view)
}

func (c *entriesControllerImpl) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	view, err := c.manager.Get(r.Context(), id)
	if err != nil {
		writeManagerError(w, "get entry", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, view)
}

func (c *entriesControllerImpl) handleUpdateOptions(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	var settings entry.Settings
	if err := utils.DecodeJSON(r, &settings); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := c.manager.UpdateOptions(r.Context(), id, settings); err != nil {
		writeManagerError(w, "update options", err)
		return
	}
	view, err := c.manager.Get(r.Context(), id)
	if err != nil {
		writeManagerError(w, "load updated entry", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, view)
}

func (c *entriesControllerImpl) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	if err := c.manager.Remove(r.Context(), id); err != nil {
		writeManagerError(w, "remove entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *entriesControllerImpl) handleState(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	snap, err := c.manager.Snapshot(id)
	if err != nil {
		writeManagerError(w, "get sensor state", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, snap)
}
