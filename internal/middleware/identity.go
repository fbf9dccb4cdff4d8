package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"storefront/internal/model"
	"storefront/internal/session"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Cookie names.
const (
	SessionCookie = "session"
	GuestCookie   = "guest_session"
)

const guestCookieMaxAge = 30 * 24 * time.Hour

type identityKey struct{}
type sessionKey struct{}

// IdentityFrom returns the cart owner resolved for the request.
func IdentityFrom(ctx context.Context) model.Identity {
	id, _ := ctx.Value(identityKey{}).(model.Identity)
	return id
}

// SessionFrom returns the authenticated session, or nil for guests.
func SessionFrom(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey{}).(*session.Session)
	return s
}

// WithIdentity stores identity and session in ctx.
func WithIdentity(ctx context.Context, identity model.Identity, s *session.Session) context.Context {
	ctx = context.WithValue(ctx, identityKey{}, identity)
	if s != nil {
		ctx = context.WithValue(ctx, sessionKey{}, s)
	}
	return ctx
}

// GuestSessionID returns the guest session id carried by the request, if valid.
func GuestSessionID(r *http.Request) string {
	c, err := r.Cookie(GuestCookie)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return ""
	}
	return c.Value
}

// Identity resolves who owns the cart. A valid session token from the
// session cookie or an Authorization bearer header makes the request a
// user's; otherwise the guest_session cookie is used, minted on first visit.
func Identity(sessions *session.Manager, secureCookie bool, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw := sessionToken(r); raw != "" {
				s, err := sessions.Parse(raw)
				if err == nil {
					ctx := WithIdentity(r.Context(), model.Identity{UserID: s.UserID}, s)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
				logger.Debug().Str("path", r.URL.Path).Msg("ignoring invalid session token")
			}

			guestID := GuestSessionID(r)
			if guestID == "" {
				guestID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     GuestCookie,
					Value:    guestID,
					Path:     "/",
					MaxAge:   int(guestCookieMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   secureCookie,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := WithIdentity(r.Context(), model.Identity{SessionID: guestID}, nil)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}
