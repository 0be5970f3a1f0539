package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/shopassist/internal/auth"
	"github.com/dukerupert/shopassist/internal/database"
	"github.com/dukerupert/shopassist/internal/store"
)

// RequireAuth verifies the auth provider's bearer token, upserts the user
// profile and populates AuthContext. Websocket upgrades may pass the token
// as the access_token query parameter since browsers cannot set headers on
// them.
func RequireAuth(verifier *auth.Verifier, users *store.UserStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w, "missing bearer token")
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				logger.Debug("rejected token", "error", err, "remote", RealIP(r))
				unauthorized(w, "invalid or expired token")
				return
			}

			if _, err := users.Upsert(r.Context(), claims.Subject, claims.Email, claims.Name()); err != nil {
				logger.Error("upsert user", "user_id", claims.Subject, "error", err)
				if database.IsTransient(err) {
					writeError(w, http.StatusServiceUnavailable, "transient", "service temporarily unavailable, try again")
					return
				}
				if database.IsUniqueViolation(err) {
					writeError(w, http.StatusConflict, "conflict", "profile conflicts with another account")
					return
				}
				writeError(w, http.StatusInternalServerError, "unexpected", "internal error")
				return
			}

			ctx := auth.WithAuth(r.Context(), auth.AuthContext{
				UserID: claims.Subject,
				Email:  claims.Email,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="shopassist"`)
	writeError(w, http.StatusUnauthorized, "unauthenticated", msg)
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg, "kind": kind})
}
