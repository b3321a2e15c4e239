package www

import (
	"net/http"

	"nodeconsole/engine"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	engine   *engine.Engine
	eventHub *EventHub
}

// NewRouter creates the chi router and returns it along with a stop function.
func NewRouter(eng *engine.Engine) (http.Handler, func()) {
	h := &Handlers{
		engine:   eng,
		eventHub: NewEventHub(),
	}

	h.eventHub.SetupEngineListeners(eng)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/events", h.eventHub.HandleSSE)

	r.Route("/api", func(r chi.Router) {
		// Snapshot view
		r.Get("/node", h.apiNode)
		r.Get("/status", h.apiStatus)
		r.Get("/network-activity", h.apiNetworkActivity)

		// Node actions
		r.Post("/node/register", h.apiRegister)
		r.Post("/node/start", h.apiStartNode)
		r.Post("/node/stop", h.apiStopNode)
		r.Post("/refresh", h.apiRefresh)

		// Submitted tasks
		r.Get("/tasks/submitted", h.apiSubmittedTasks)
		r.Post("/tasks/reload", h.apiReloadTasks)
		r.Post("/tasks/submit", h.apiSubmitTask)

		// Journal
		r.Get("/history", h.apiHistory)
		r.Get("/export.xlsx", h.apiExport)

		// Config
		r.Get("/config/endpoints", h.apiEndpoints)
		r.Put("/config/endpoints", h.apiSaveEndpoints)
	})

	return r, func() {
		h.eventHub.Stop()
	}
}
