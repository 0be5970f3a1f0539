package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/shopassist/internal/auth"
	"github.com/dukerupert/shopassist/internal/database"
	"github.com/dukerupert/shopassist/internal/store"
)

const testSecret = "test-secret"

func setupAuthMiddleware(t *testing.T) (*auth.Verifier, *store.UserStore) {
	t.Helper()
	db, err := database.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return auth.NewVerifier(testSecret, ""), store.NewUserStore(db)
}

func unreachable(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	})
}

func TestRequireAuthNoToken(t *testing.T) {
	v, us := setupAuthMiddleware(t)
	handler := RequireAuth(v, us, slog.New(slog.DiscardHandler))(unreachable(t))

	req := httptest.NewRequest("GET", "/api/me", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["kind"] != "unauthenticated" {
		t.Errorf("kind = %q, want %q", body["kind"], "unauthenticated")
	}
}

func TestRequireAuthInvalidToken(t *testing.T) {
	v, us := setupAuthMiddleware(t)
	handler := RequireAuth(v, us, slog.New(slog.DiscardHandler))(unreachable(t))

	other := auth.NewVerifier("other-secret", "")
	token, err := other.Sign(uuid.NewString(), "alice@example.com", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	for _, h := range []string{"Bearer " + token, "Basic abc", "Bearer not-a-jwt"} {
		req := httptest.NewRequest("GET", "/api/me", nil)
		req.Header.Set("Authorization", h)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%q: status = %d, want %d", h, rec.Code, http.StatusUnauthorized)
		}
	}
}

func TestRequireAuthValidToken(t *testing.T) {
	v, us := setupAuthMiddleware(t)
	userID := uuid.NewString()
	token, err := v.Sign(userID, "Alice@Example.com", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	var gotAC auth.AuthContext
	handler := RequireAuth(v, us, slog.New(slog.DiscardHandler))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			t.Fatal("expected AuthContext in request context")
		}
		gotAC = ac
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotAC.UserID != userID {
		t.Errorf("UserID = %q, want %q", gotAC.UserID, userID)
	}
	if gotAC.Email != "alice@example.com" {
		t.Errorf("Email = %q, want %q", gotAC.Email, "alice@example.com")
	}

	u, err := us.GetByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u == nil || u.Email != "alice@example.com" {
		t.Errorf("user = %+v, want upserted profile", u)
	}
}

func TestRequireAuthWebsocketQueryToken(t *testing.T) {
	v, us := setupAuthMiddleware(t)
	token, err := v.Sign(uuid.NewString(), "alice@example.com", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	handler := RequireAuth(v, us, slog.New(slog.DiscardHandler))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/ws?access_token="+token, nil)
	req.Header.Set("Upgrade", "websocket")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("upgrade with query token: status = %d, want %d", rec.Code, http.StatusOK)
	}

	// Plain requests must use the header.
	req = httptest.NewRequest("GET", "/api/me?access_token="+token, nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("plain request with query token: status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthReissuedSubject(t *testing.T) {
	v, us := setupAuthMiddleware(t)
	handler := RequireAuth(v, us, slog.New(slog.DiscardHandler))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, sub := range []string{uuid.NewString(), uuid.NewString()} {
		token, err := v.Sign(sub, "erin@example.com", time.Hour)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		req := httptest.NewRequest("GET", "/api/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("subject %s: status = %d, want %d (body %s)", sub, rec.Code, http.StatusNoContent, rec.Body.String())
		}
	}
}
