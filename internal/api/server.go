package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"
)

// NewServer creates an HTTP server with all routes configured. Recalculation execution
// requires the admin bearer key when one is set.
func NewServer(port string, handler *Handler, adminAPIKey string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/assets", handler.ListAssets)
	mux.HandleFunc("GET /api/v1/quotes/{date}", handler.ListQuotes)
	mux.HandleFunc("GET /api/v1/quotes/{date}/{assetId}", handler.GetQuote)
	mux.HandleFunc("GET /api/v1/audit", handler.ListAudit)
	mux.HandleFunc("POST /api/v1/recalculations/plan", handler.PlanRecalculation)
	mux.HandleFunc("POST /api/v1/business-day/validate", handler.ValidateBusinessDay)

	executeHandler := http.HandlerFunc(handler.ExecuteRecalculation)
	if adminAPIKey != "" {
		mux.Handle("POST /api/v1/recalculations", requireAuth(adminAPIKey, executeHandler))
	} else {
		mux.Handle("POST /api/v1/recalculations", executeHandler)
	}

	return &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func requireAuth(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if !strings.HasPrefix(auth, "Bearer ") || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
