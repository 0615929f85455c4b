package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/adharshSciPy/justyta-mail/internal/database"
	"github.com/adharshSciPy/justyta-mail/internal/queue"
)

// Server is the JSON API: send-mail enqueue plus the account configuration
// surface the pipeline consumes.
type Server struct {
	db     *database.DB
	queue  *queue.Queue
	logger *slog.Logger
	mux    *http.ServeMux
}

// NewServer creates the API server
func NewServer(db *database.DB, q *queue.Queue, logger *slog.Logger) *Server {
	server := &Server{
		db:     db,
		queue:  q,
		logger: logger.With("component", "api"),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/mail/send", server.handleSend)
	mux.HandleFunc("/api/v1/accounts", server.handleAccounts)
	mux.HandleFunc("/health", server.handleHealth)
	server.mux = mux
	return server
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"message": message,
	})
}
