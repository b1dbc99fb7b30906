package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// StatsHandler serves an Aggregator's Summary. The optional "top" query
// parameter sets the length of each frequency table.
func StatsHandler(a *Aggregator) http.HandlerFunc {
	log := slog.Default().With("component", "analytics-handler")
	return func(w http.ResponseWriter, r *http.Request) {
		top := 0
		if v := r.URL.Query().Get("top"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > 1000 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":"top must be an integer in [1,1000]"}` + "\n"))
				return
			}
			top = n
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(a.Summary(top)); err != nil {
			log.Error("writing analytics summary", "error", err)
		}
	}
}
