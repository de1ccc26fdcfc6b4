package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"stockagent/internal/news"
)

// NewsHandler exposes the matched-news read endpoints and the manual
// fetch trigger.
type NewsHandler struct {
	Store   *news.Store
	Service *news.Service
}

func NewNewsHandler(store *news.Store, svc *news.Service) *NewsHandler {
	return &NewsHandler{Store: store, Service: svc}
}

type newsListResponse struct {
	Items []news.Item `json:"items"`
	Total int         `json:"total"`
	Skip  int         `json:"skip"`
	Limit int         `json:"limit"`
}

// List handles GET /api/news with source/keyword filters and pagination.
func (h *NewsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := news.Filter{
		Source:   q.Get("source"),
		Keywords: q["keyword"],
		Offset:   intParam(q.Get("skip"), 0),
		Limit:    intParam(q.Get("limit"), 20),
	}
	items, total, err := h.Store.List(r.Context(), f)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newsListResponse{
		Items: items,
		Total: total,
		Skip:  f.Offset,
		Limit: f.Limit,
	})
}

// Get handles GET /api/news/{id}.
func (h *NewsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "INVALID_PARAM", "news id must be a positive integer")
		return
	}
	item, err := h.Store.Get(r.Context(), id)
	if errors.Is(err, news.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// Fetch handles POST /api/news/fetch. The fetch runs in the background;
// the call answers immediately.
func (h *NewsHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		writeError(w, r, http.StatusServiceUnavailable, "NEWS_DISABLED", "news fetching is not enabled")
		return
	}
	requestID := GetRequestID(r.Context())
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		n := h.Service.FetchAll(ctx)
		log.Info().Str("request_id", requestID).Int("stored", n).Msg("manual news fetch finished")
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "fetch started"})
}

// Sources handles GET /api/news/sources/list.
func (h *NewsHandler) Sources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.Store.Sources(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	if sources == nil {
		sources = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"sources": sources})
}
