package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ticker/internal/feedservice"
)

// NewRouter creates a chi router with all API routes mounted.
// Reading the feed is public; changes, share links and uploads need the
// Bearer token when authEnabled is set.
// sseHandler, if non-nil, is mounted at GET /events.
// mh, if non-nil, accepts uploads at POST /media.
func NewRouter(svc *feedservice.Service, authEnabled bool, token string, sseHandler http.Handler, mh *MediaHandler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()

	// Public reading.
	r.Group(func(r chi.Router) {
		r.With(VisitorMiddleware).Get("/feed", h.Feed)
		r.Get("/items/{id}", h.GetItem)
		r.Get("/items/{id}/summary", h.GetItemSummary)
		r.Get("/categories", h.ListCategories)
		if sseHandler != nil {
			r.Get("/events", sseHandler.ServeHTTP)
		}
	})

	// Editing.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(authEnabled, token))

		r.Post("/items", h.CreateItem)
		r.Delete("/items/{id}", h.DeleteItem)

		r.Patch("/categories/{id}", h.PatchCategory)
		r.Delete("/categories/{id}", h.DeleteCategory)

		r.Post("/share-links", h.IssueShareLink)
		r.Get("/share-links/{code}", h.GetShareLink)

		r.Post("/sync", h.Sync)

		if mh != nil {
			r.Post("/media", mh.Upload)
		}
	})

	return r
}
