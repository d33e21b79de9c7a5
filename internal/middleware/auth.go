package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/thrryv/engine/internal/auth"
)

// Authentication validates Bearer tokens and attaches the authenticated
// user ID to the request context. Requests without an Authorization header
// pass through unauthenticated; handlers that require an identity reject
// those themselves. A present but invalid token is rejected with 401.
func Authentication(svc *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeAuthError(w, r, "invalid_authorization_header", "authorization header must be of the form 'Bearer <token>'")
				return
			}

			claims, err := svc.ValidateToken(token)
			if err != nil {
				code := "invalid_token"
				msg := "token is invalid"
				if errors.Is(err, auth.ErrExpiredToken) {
					code = "expired_token"
					msg = "token has expired"
				}
				writeAuthError(w, r, code, msg)
				return
			}

			if claims.Type != auth.TokenTypeAccess {
				writeAuthError(w, r, "invalid_token", "token is not an access token")
				return
			}

			ctx := SetUserID(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeAuthError writes a 401 response in the standard error envelope and
// records the error code for the logging middleware.
func writeAuthError(w http.ResponseWriter, r *http.Request, code, message string) {
	SetErrorCode(r.Context(), code)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":{"code":"` + code + `","message":"` + message + `"}}`))
}
