package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// errorReply is the body of every non-2xx JSON response.
type errorReply struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// reply writes v as an uncached JSON response.
func (s *Server) reply(w http.ResponseWriter, status int, v any) {
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write json reply", slog.Int("status", status), slog.String("error", err.Error()))
	}
}

func (s *Server) reject(w http.ResponseWriter, status int, msg string) {
	s.reply(w, status, errorReply{Error: msg, Code: status})
}
