package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"slidecraft/internal/apperr"
	"slidecraft/internal/auth"
	"slidecraft/internal/httpx"
	"slidecraft/internal/models"
)

// UserResolver перечитывает пользователя из хранилища на каждом запросе:
// удалённый или изменённый аккаунт сразу теряет доступ.
type UserResolver interface {
	Get(ctx context.Context, id string) (*models.User, error)
}

func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

func UserFrom(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey).(*models.User)
	return u, ok && u != nil
}

// BearerToken достаёт токен из "Authorization: Bearer <token>".
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Authenticate требует валидный токен живого пользователя.
func Authenticate(tokens *auth.Tokens, users UserResolver) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := tokens.Verify(BearerToken(r))
			if err != nil {
				httpx.WriteError(w, r, err)
				return
			}
			u, err := users.Get(r.Context(), claims.UserID)
			if errors.Is(err, apperr.NotFound("")) {
				httpx.WriteError(w, r, apperr.Unauthorized("Invalid token. User not found.", apperr.ErrUserGone))
				return
			}
			if err != nil {
				httpx.WriteError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// OptionalAuth кладёт пользователя в контекст, если токен валиден; иначе молча пропускает.
func OptionalAuth(tokens *auth.Tokens, users UserResolver) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims, ok := tokens.VerifyOptional(BearerToken(r)); ok {
				if u, err := users.Get(r.Context(), claims.UserID); err == nil {
					r = r.WithContext(WithUser(r.Context(), u))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole: 401 без пользователя, 403 при чужой роли.
func RequireRole(role string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := UserFrom(r.Context())
			if !ok {
				httpx.WriteError(w, r, apperr.Unauthorized("Authentication required.", apperr.ErrMissingToken))
				return
			}
			if u.Role != role {
				msg := "Access denied."
				if role == models.RoleAdmin {
					msg = "Access denied. Admin privileges required."
				}
				httpx.WriteError(w, r, apperr.Forbidden(msg))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
