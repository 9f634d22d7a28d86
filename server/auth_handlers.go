package server

import (
	"net/http"

	"github.com/jrsteele09/go-calendar-sync/auth"
	apperrors "github.com/jrsteele09/go-calendar-sync/internal/errors"
	"github.com/jrsteele09/go-calendar-sync/users"
	"github.com/rs/zerolog/log"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterHandler creates an account and returns a session for it.
func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var reg users.Registration
		if err := decodeJSON(r, &reg); err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		session, err := s.auth.Register(reg)
		var verr *auth.ValidationError
		switch {
		case apperrors.As(err, &verr):
			writeFieldErrors(w, verr.Issues)
		case apperrors.Is(err, apperrors.ErrEmailTaken):
			writeMessage(w, http.StatusBadRequest, "User already exists")
		case err != nil:
			log.Error().Err(err).Msg("register failed")
			writeMessage(w, http.StatusInternalServerError, "Server error during registration")
		default:
			writeJSON(w, http.StatusCreated, session)
		}
	}
}

// LoginHandler exchanges credentials for a session. Bad credentials are a
// 400 so clients do not treat them as a revoked session.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(r, &req); err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		var issues []users.FieldError
		if req.Email == "" {
			issues = append(issues, users.FieldError{Field: "email", Message: "Please provide a valid email"})
		}
		if req.Password == "" {
			issues = append(issues, users.FieldError{Field: "password", Message: "Password is required"})
		}
		if len(issues) > 0 {
			writeFieldErrors(w, issues)
			return
		}

		session, err := s.auth.Login(req.Email, req.Password)
		switch {
		case apperrors.Is(err, apperrors.ErrInvalidCredentials):
			writeMessage(w, http.StatusBadRequest, "Invalid credentials")
		case err != nil:
			log.Error().Err(err).Msg("login failed")
			writeMessage(w, http.StatusInternalServerError, "Server error during login")
		default:
			writeJSON(w, http.StatusOK, session)
		}
	}
}

// RenewHandler swaps the presented token for a fresh one.
func (s *Server) RenewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims == nil {
			writeMessage(w, http.StatusUnauthorized, "Token is not valid")
			return
		}
		session, err := s.auth.Renew(claims)
		switch {
		case apperrors.Is(err, apperrors.ErrInvalidToken):
			writeMessage(w, http.StatusUnauthorized, "Token is not valid")
		case err != nil:
			log.Error().Err(err).Msg("renew failed")
			writeMessage(w, http.StatusInternalServerError, "Server error renewing session")
		default:
			writeJSON(w, http.StatusOK, session)
		}
	}
}
