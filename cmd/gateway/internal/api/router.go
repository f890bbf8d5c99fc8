package api

import "net/http"

// Router wires the read API onto a mux. The gateway is CORS-open: it
// serves a public browser application.
func (h *Handler) Router() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.cors(h.handleHealth))
	mux.HandleFunc("/metrics", h.cors(h.handleMetrics))
	mux.HandleFunc("/prices", h.cors(h.handlePrices))
	mux.HandleFunc("/price/", h.cors(h.handleSinglePrice))
	mux.HandleFunc("/", h.cors(h.handleNotFound))
	return mux
}

func (h *Handler) cors(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}
