package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// ErrorHandler writes the response for a rejected request.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Middleware attaches the identity named by the Authorization header.
// Requests without a header continue anonymously unless required is set.
// A present but invalid token is always rejected.
func Middleware(a *Authority, required bool, onError ErrorHandler) func(http.Handler) http.Handler {
	if onError == nil {
		onError = writeUnauthorized
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := BearerToken(r)
			if raw == "" {
				if required {
					onError(w, r, ErrMissingToken)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			id, err := a.Verify(raw)
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeUnauthorized(w http.ResponseWriter, _ *http.Request, err error) {
	msg := "unauthenticated"
	if errors.Is(err, ErrMissingToken) {
		msg = "missing bearer token"
	} else if errors.Is(err, ErrInvalidToken) {
		msg = "invalid or expired token"
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("WWW-Authenticate", `Bearer realm="arcade"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"code": "unauthenticated", "message": msg})
}
