package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter wires every route and the middleware chain. NewsHandler may
// carry a nil Service when news fetching is disabled; its read routes
// still work against the store.
func NewRouter(quotes *QuoteHandler, alerts *AlertHandler, news *NewsHandler) http.Handler {
	r := mux.NewRouter()

	health := func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
	r.HandleFunc("/healthz", health).Methods(http.MethodGet)
	r.HandleFunc("/health", health).Methods(http.MethodGet)

	r.HandleFunc("/pe-ratio/{symbol}", quotes.GetPERatio).Methods(http.MethodGet)
	r.HandleFunc("/stock-info/{symbol}", quotes.GetStockInfo).Methods(http.MethodGet)
	r.HandleFunc("/pe-ratios/batch", quotes.GetBatch).Methods(http.MethodGet)

	r.HandleFunc("/api/alerts", alerts.Create).Methods(http.MethodPost)
	r.HandleFunc("/api/alerts", alerts.List).Methods(http.MethodGet)
	r.HandleFunc("/api/alerts/{id}", alerts.Get).Methods(http.MethodGet)
	r.HandleFunc("/api/alerts/{id}", alerts.Update).Methods(http.MethodPut)
	r.HandleFunc("/api/alerts/{id}", alerts.Delete).Methods(http.MethodDelete)

	r.HandleFunc("/api/news", news.List).Methods(http.MethodGet)
	r.HandleFunc("/api/news/fetch", news.Fetch).Methods(http.MethodPost)
	r.HandleFunc("/api/news/sources/list", news.Sources).Methods(http.MethodGet)
	r.HandleFunc("/api/news/{id}", news.Get).Methods(http.MethodGet)

	// Outermost first: the request id must exist before anything logs,
	// and panics inside gzip still need a recovered response.
	var h http.Handler = r
	h = LimitBody(h)
	h = Gzip(h)
	h = CORS(h)
	h = RecoverPanic(h)
	h = Logging(h)
	h = RequestID(h)
	return h
}
