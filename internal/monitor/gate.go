package monitor

import (
	"encoding/json"
	"net/http"
)

// Status exposes the monitor session to HTTP helpers.
type Status interface {
	Snapshot() Snapshot
}

// Gate rejects requests with 503 while the session disallows operation.
func Gate(s Status, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap := s.Snapshot()
		if snap.Allowed {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error": "license inactive",
			"state": string(snap.State),
		})
	})
}

// StatusHandler serves the current snapshot as JSON.
func StatusHandler(s Status) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s.Snapshot())
	})
}
