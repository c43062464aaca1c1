package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/fashionlens/fashion-lens-be/internal/auth"
	"github.com/fashionlens/fashion-lens-be/internal/http/respond"
	"github.com/fashionlens/fashion-lens-be/internal/models"
	"github.com/fashionlens/fashion-lens-be/internal/storage"
)

type ctxKey struct{}

// UserFromContext returns the user attached by Authenticator, if any.
func UserFromContext(ctx context.Context) (models.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(models.User)
	return u, ok
}

// WithUser attaches u to ctx.
func WithUser(ctx context.Context, u models.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// Authenticator resolves the session token on a request into a stored user.
type Authenticator struct {
	store      storage.UserStore
	tokens     *auth.TokenManager
	cookieName string
}

func NewAuthenticator(store storage.UserStore, tokens *auth.TokenManager, cookieName string) *Authenticator {
	return &Authenticator{store: store, tokens: tokens, cookieName: cookieName}
}

var errNoToken = errors.New("no session token")

// RequireUser rejects requests without a valid token for an existing user.
func (a *Authenticator) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.resolve(r)
		if err != nil {
			if isSessionError(err) {
				respond.Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			log.Printf("auth: resolve user: %v", err)
			respond.Error(w, http.StatusInternalServerError, "failed to load session user")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// OptionalUser attaches the user when a valid token is present and lets
// anonymous requests through unchanged.
func (a *Authenticator) OptionalUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, err := a.resolve(r); err == nil {
			r = r.WithContext(WithUser(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}

// isSessionError reports whether err means the caller has no usable session,
// as opposed to the store being unavailable.
func isSessionError(err error) bool {
	return errors.Is(err, errNoToken) || errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, storage.ErrNotFound)
}

func (a *Authenticator) resolve(r *http.Request) (models.User, error) {
	raw := a.tokenFromRequest(r)
	if raw == "" {
		return models.User{}, errNoToken
	}
	claims, err := a.tokens.Parse(raw)
	if err != nil {
		return models.User{}, err
	}
	return a.store.FindByID(r.Context(), claims.UserID)
}

// tokenFromRequest prefers the session cookie, then the bearer header.
func (a *Authenticator) tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(a.cookieName); err == nil && strings.TrimSpace(c.Value) != "" {
		return strings.TrimSpace(c.Value)
	}
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(h, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
