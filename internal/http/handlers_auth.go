package http

import (
	"errors"
	"net/http"

	"paisable/internal/core"
)

type credentialsRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, "register", err)
		return
	}
	session, err := s.svc.Auth.Register(r.Context(), sanitizeInput(req.Name), req.Email, req.Password)
	if errors.Is(err, core.ErrConflict) {
		ErrorResponse(http.StatusConflict, "User already exists").Write(w)
		return
	}
	if err != nil {
		writeServiceError(w, r, "register", err)
		return
	}
	s.logger.InfoContext(r.Context(), "User registered", "user_id", session.User.ID)
	NewJSONResponse().Status(http.StatusCreated).Body(session).Write(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, "login", err)
		return
	}
	session, err := s.svc.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, "login", err)
		return
	}
	NewJSONResponse().Body(session).Write(w)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.svc.Auth.Me(r.Context(), ownerID(r))
	if err != nil {
		writeServiceError(w, r, "me", err)
		return
	}
	NewJSONResponse().Body(u).Write(w)
}

type setupRequest struct {
	DefaultCurrency string `json:"defaultCurrency"`
}

func (s *Server) handleCompleteSetup(w http.ResponseWriter, r *http.Request) {
	var req setupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, "complete setup", err)
		return
	}
	u, err := s.svc.Auth.CompleteSetup(r.Context(), ownerID(r), req.DefaultCurrency)
	if err != nil {
		writeServiceError(w, r, "complete setup", err)
		return
	}
	s.logger.InfoContext(r.Context(), "User setup completed", "user_id", u.ID, "currency", u.DefaultCurrency)
	NewJSONResponse().Body(u).Write(w)
}
