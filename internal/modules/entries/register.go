package entries

import (
	"net/http"

	"github.com/tkfj/hass-dewpoint/internal/modules/entries/controller"
)

func RegisterFeature(mux *http.ServeMux, manager controller.EntryManager) {
	entriesController := controller.NewEntriesController(manager)
	entriesController.RegisterRoutes(mux)
}
