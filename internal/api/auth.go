package api

import (
	"encoding/json"
	"net/http"

	"github.com/dewansh/dewhome-core/internal/audit"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin exchanges operator credentials for an access token.
// It answers 404 when authentication is disabled.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		writeNotFound(w, "authentication is disabled")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, msgInvalidJSON)
		return
	}
	if req.Username == "" || req.Password == "" {
		writeBadRequest(w, "username and password are required")
		return
	}

	token, err := s.auth.Login(req.Username, req.Password)
	s.recordAudit(r, audit.OpLogin, audit.EntitySession, 0, map[string]any{
		"username": req.Username,
		"success":  err == nil,
		"remote":   r.RemoteAddr,
	})
	if err != nil {
		s.logger.Warn("login failed",
			"username", req.Username,
			"remote", r.RemoteAddr,
			"request_id", requestIDFrom(r.Context()),
		)
		writeUnauthorized(w, "invalid credentials")
		return
	}

	writeJSON(w, http.StatusOK, token)
}
