package supervisor

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Check is one readiness dependency, e.g. an Elasticsearch or Redis ping.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// NewHTTPHandler serves /health, /ready and /metrics. /ready answers 503
// until every check passes.
func NewHTTPHandler(checks ...Check) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "healthy"})
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status, code := "ready", http.StatusOK
		results := make(map[string]string, len(checks))
		for _, c := range checks {
			if err := c.Ping(ctx); err != nil {
				results[c.Name] = err.Error()
				status, code = "not ready", http.StatusServiceUnavailable
				continue
			}
			results[c.Name] = "ok"
		}
		writeJSON(w, code, map[string]interface{}{"status": status, "checks": results})
	})

	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
