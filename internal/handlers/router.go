// Package handlers serves the liveness HTTP page next to the bot so
// hosting platforms can probe the process.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Status reports the live state of the bot's collaborators.
type Status struct {
	Bot       string `json:"bot"`
	Sheets    bool   `json:"sheets"`
	Drive     bool   `json:"drive"`
	UptimeSec int64  `json:"uptimeSec"`
}

// Router wraps the mux router.
type Router struct {
	*mux.Router
	started time.Time
	status  func() Status
}

// NewRouter creates the liveness router. status is polled per request.
func NewRouter(status func() Status) *Router {
	r := &Router{
		Router:  mux.NewRouter(),
		started: time.Now(),
		status:  status,
	}

	r.HandleFunc("/", r.root).Methods("GET")
	r.HandleFunc("/health", r.healthCheck).Methods("GET")
	r.HandleFunc("/api/status", r.getStatus).Methods("GET")

	return r
}

func (r *Router) root(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Bot de devoluciones activo.\n"))
}

// healthCheck returns the health status of the process
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// getStatus returns the current collaborator status
func (r *Router) getStatus(w http.ResponseWriter, req *http.Request) {
	s := r.status()
	s.UptimeSec = int64(time.Since(r.started).Seconds())
	respondJSON(w, http.StatusOK, s)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
