package controller

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/tkfj/hass-dewpoint/internal/entry"
	"github.com/tkfj/hass-dewpoint/internal/utils"
)

func entryID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if id == "" {
		utils.WriteError(w, http.StatusBadRequest, "missing entry id")
		return "", false
	}
	return id, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, entry.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, entry.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entry.ErrExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeManagerError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error(op+" failed", "error", err)
		utils.WriteError(w, status, op+" failed")
		return
	}
	utils.WriteError(w, status, err.Error())
}
