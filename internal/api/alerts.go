package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"stockagent/internal/alert"
	"stockagent/internal/quote"
)

// AlertHandler exposes CRUD on stock alerts.
type AlertHandler struct {
	Store *alert.Store
}

func NewAlertHandler(s *alert.Store) *AlertHandler { return &AlertHandler{Store: s} }

type alertListResponse struct {
	Alerts []alert.Alert `json:"alerts"`
	Total  int           `json:"total"`
	Skip   int           `json:"skip"`
	Limit  int           `json:"limit"`
}

// Create handles POST /api/alerts.
func (h *AlertHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in alert.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON")
		return
	}
	created, err := h.Store.Create(r.Context(), in)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// List handles GET /api/alerts with skip/limit/symbol/is_active filters.
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := alert.Filter{
		Symbol: q.Get("symbol"),
		Offset: intParam(q.Get("skip"), 0),
		Limit:  intParam(q.Get("limit"), 100),
	}
	if v := q.Get("is_active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_PARAM", "is_active must be a boolean")
			return
		}
		f.IsActive = &active
	}

	alerts, total, err := h.Store.List(r.Context(), f)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alertListResponse{
		Alerts: alerts,
		Total:  total,
		Skip:   f.Offset,
		Limit:  f.Limit,
	})
}

// Get handles GET /api/alerts/{id}.
func (h *AlertHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := alertID(w, r)
	if !ok {
		return
	}
	a, err := h.Store.Get(r.Context(), id)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Update handles PUT /api/alerts/{id}; absent fields stay unchanged.
func (h *AlertHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := alertID(w, r)
	if !ok {
		return
	}
	var in alert.UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON")
		return
	}
	a, err := h.Store.Update(r.Context(), id, in)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Delete handles DELETE /api/alerts/{id}.
func (h *AlertHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := alertID(w, r)
	if !ok {
		return
	}
	if err := h.Store.Delete(r.Context(), id); err != nil {
		h.storeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AlertHandler) storeError(w http.ResponseWriter, r *http.Request, err error) {
	var qerr *quote.Error
	switch {
	case errors.Is(err, alert.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.As(err, &qerr) && qerr.Kind == quote.KindInvalidSymbol:
		writeError(w, r, http.StatusBadRequest, string(quote.KindInvalidSymbol), err.Error())
	case errors.Is(err, alert.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", err.Error())
	}
}

func alertID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "INVALID_PARAM", "alert id must be a positive integer")
		return 0, false
	}
	return id, true
}

func intParam(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
