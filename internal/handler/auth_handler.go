package handler

import (
	"net/http"
	"time"

	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/service"
	"storefront/internal/session"

	"github.com/rs/zerolog"
)

// AuthHandler handles account HTTP requests.
type AuthHandler struct {
	auth         service.AuthService
	carts        service.CartService
	sessions     *session.Manager
	secureCookie bool
	logger       zerolog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(auth service.AuthService, carts service.CartService, sessions *session.Manager, secureCookie bool, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:         auth,
		carts:        carts,
		sessions:     sessions,
		secureCookie: secureCookie,
		logger:       logger.With().Str("handler", "auth").Logger(),
	}
}

// Register handles POST /api/auth/register and signs the new user in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	user, err := h.auth.Register(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	h.signIn(w, r, user, http.StatusCreated)
}

// Login handles POST /api/auth/login. After the credentials check the guest
// cart of the request, if any, is merged into the user's cart.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	user, err := h.auth.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	h.signIn(w, r, user, http.StatusOK)
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) signIn(w http.ResponseWriter, r *http.Request, user *model.User, status int) {
	userID := user.ID.String()

	token, expiresAt, err := h.sessions.Issue(userID, user.IsAdmin)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	if guest := middleware.IdentityFrom(r.Context()); guest.IsGuest() && guest.SessionID != "" {
		if _, err := h.carts.Merge(r.Context(), guest.SessionID, userID); err != nil {
			h.logger.Error().
				Err(err).
				Str("user_id", userID).
				Str("session_id", guest.SessionID).
				Msg("failed to merge guest cart")
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, status, model.AuthResponse{User: user, ExpiresAt: expiresAt.UTC().Format(time.RFC3339)})
}
