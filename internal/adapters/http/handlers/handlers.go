// Package handlers agrupa os handlers HTTP protegidos pelo rate limiter.
//
// The finance features behind these routes live in other services; the
// handlers only acknowledge the request once it has passed the guard.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Wesley-SdS/OrbitFinance-sub001/internal/adapters/http/middleware"
)

// Health reports liveness. It is never rate limited.
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Acknowledge answers 202 with the action name and the request id.
func Acknowledge(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":     "accepted",
			"action":     action,
			"request_id": middleware.RequestID(r.Context()),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
