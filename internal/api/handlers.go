package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ticker/internal/feedservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *feedservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *feedservice.Service) *Handler {
	return &Handler{svc: svc}
}

func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) parseDate(s string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, s, h.svc.Location())
}

// parseCategories accepts repeated and comma-separated category ids.
func parseCategories(values []string) ([]int64, bool) {
	var out []int64
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, false
			}
			out = append(out, id)
		}
	}
	return out, true
}

// Feed handles GET /api/feed.
//
//	@Summary		Current feed window grouped by day and category
//	@Tags			feed
//	@Produce		json
//	@Param			date		query		string	false	"Reference date (YYYY-MM-DD), default today"
//	@Param			days		query		int		false	"Lookback in days"
//	@Param			category	query		[]int	false	"Restrict to these category subtrees"
//	@Param			code		query		string	false	"Share link code"
//	@Success		200			{object}	FeedResponse
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		410			{object}	errResponse
//	@Router			/feed [get]
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fq := feedservice.FeedQuery{
		Code:      q.Get("code"),
		Actor:     VisitorID(r.Context()),
		UserAgent: r.UserAgent(),
		Params:    r.URL.RawQuery,
	}
	if d := q.Get("date"); d != "" {
		date, err := h.parseDate(d)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("date must be YYYY-MM-DD"))
			return
		}
		fq.Date = date
	}
	if d := q.Get("days"); d != "" {
		days, err := strconv.Atoi(d)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("days must be an integer"))
			return
		}
		fq.Days = &days
	}
	cats, ok := parseCategories(q["category"])
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("category must be a list of ids"))
		return
	}
	fq.Categories = cats

	view, err := h.svc.Feed(r.Context(), fq)
	if err != nil {
		writeError(w, "feed", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GetItem handles GET /api/items/{id}.
//
//	@Summary		A single rendered item with its references
//	@Tags			items
//	@Produce		json
//	@Param			id		path		int		true	"Item id"
//	@Param			code	query		string	false	"Share link code to carry into links"
//	@Success		200		{object}	ItemDetail
//	@Failure		404		{object}	errResponse
//	@Router			/items/{id} [get]
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid item id"))
		return
	}
	item, err := h.svc.Item(r.Context(), id, r.URL.Query().Get("code"))
	if err != nil {
		writeError(w, "get item", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// GetItemSummary handles GET /api/items/{id}/summary. The body is the
// annotated summary fragment, meant to be embedded verbatim.
//
//	@Summary		Rendered summary HTML fragment
//	@Tags			items
//	@Produce		html
//	@Param			id		path	int		true	"Item id"
//	@Param			code	query	string	false	"Share link code to carry into links"
//	@Success		200		{string}	string
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Router			/items/{id}/summary [get]
func (h *Handler) GetItemSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid item id"))
		return
	}
	html, err := h.svc.SummaryHTML(r.Context(), id, r.URL.Query().Get("code"))
	if err != nil {
		writeError(w, "render summary", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

// CreateItem handles POST /api/items.
//
//	@Summary		Create an item as a new source document
//	@Tags			items
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateItemRequest	true	"Item to create"
//	@Success		201		{object}	ItemDetail
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/items [post]
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	item, err := h.svc.CreateItem(r.Context(), req.Document())
	if err != nil {
		writeError(w, "create item", err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// DeleteItem handles DELETE /api/items/{id}.
//
//	@Summary		Delete an item and its source document
//	@Tags			items
//	@Param			id	path	int	true	"Item id"
//	@Success		204	"Item deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/items/{id} [delete]
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid item id"))
		return
	}
	if err := h.svc.DeleteItem(r.Context(), id); err != nil {
		writeError(w, "delete item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCategories handles GET /api/categories.
//
//	@Summary		The category tree
//	@Tags			categories
//	@Produce		json
//	@Success		200	{object}	CategoryListResponse
//	@Router			/categories [get]
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.svc.Categories(r.Context())
	if err != nil {
		writeError(w, "list categories", err)
		return
	}
	writeJSON(w, http.StatusOK, CategoryListResponse{Categories: nodes})
}

// PatchCategory handles PATCH /api/categories/{id}.
//
//	@Summary		Rename or move a category
//	@Tags			categories
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int						true	"Category id"
//	@Param			body	body		PatchCategoryRequest	true	"Changes"
//	@Success		200		{object}	CategoryListResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/categories/{id} [patch]
func (h *Handler) PatchCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid category id"))
		return
	}
	var req PatchCategoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	ctx := r.Context()
	if req.Name != nil {
		if err := h.svc.RenameCategory(ctx, id, *req.Name); err != nil {
			writeError(w, "rename category", err)
			return
		}
	}
	if req.Root || req.ParentID != nil {
		if err := h.svc.MoveCategory(ctx, id, req.ParentID); err != nil {
			writeError(w, "move category", err)
			return
		}
	}
	h.ListCategories(w, r)
}

// DeleteCategory handles DELETE /api/categories/{id}.
//
//	@Summary		Delete a category with its subcategories and items
//	@Tags			categories
//	@Param			id	path	int	true	"Category id"
//	@Success		204	"Category deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/categories/{id} [delete]
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid category id"))
		return
	}
	if err := h.svc.DeleteCategory(r.Context(), id); err != nil {
		writeError(w, "delete category", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// IssueShareLink handles POST /api/share-links.
//
//	@Summary		Issue a share link for a feed window
//	@Tags			share-links
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ShareLinkRequest	true	"Window and validity"
//	@Success		201		{object}	ShareLinkResponse
//	@Failure		400		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/share-links [post]
func (h *Handler) IssueShareLink(w http.ResponseWriter, r *http.Request) {
	var req ShareLinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	date, err := h.parseDate(req.Date)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("date must be YYYY-MM-DD"))
		return
	}
	link, err := h.svc.IssueShareLink(r.Context(), date, req.Days, time.Duration(req.ValidDays)*24*time.Hour)
	if err != nil {
		writeError(w, "issue share link", err)
		return
	}
	writeJSON(w, http.StatusCreated, link)
}

// GetShareLink handles GET /api/share-links/{code}.
//
//	@Summary		Look up a share link, including expired ones
//	@Tags			share-links
//	@Produce		json
//	@Param			code	path		string	true	"Short code"
//	@Success		200		{object}	ShareLinkResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/share-links/{code} [get]
func (h *Handler) GetShareLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.svc.ShareLink(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, "get share link", err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

// Sync handles POST /api/sync.
//
//	@Summary		Re-read the feed source directory
//	@Tags			sync
//	@Produce		json
//	@Success		200	{object}	SyncResponse
//	@Security		BearerAuth
//	@Router			/sync [post]
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Sync(r.Context())
	if err != nil {
		writeError(w, "sync", err)
		return
	}
	writeJSON(w, http.StatusOK, SyncResponse{
		Created:  st.Created,
		Updated:  st.Updated,
		Deleted:  st.Deleted,
		Failed:   st.Failed,
		Relinked: st.Relinked,
	})
}
