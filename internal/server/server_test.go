package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/shopassist/internal/auth"
	"github.com/dukerupert/shopassist/internal/database"
	"github.com/dukerupert/shopassist/internal/email"
	"github.com/dukerupert/shopassist/internal/metrics"
	"github.com/dukerupert/shopassist/internal/model"
	"github.com/dukerupert/shopassist/internal/notify"
	"github.com/dukerupert/shopassist/internal/push"
	"github.com/dukerupert/shopassist/internal/service"
	ws "github.com/dukerupert/shopassist/internal/websocket"
)

type captureMailer struct {
	mu   sync.Mutex
	sent []email.TemplateMessage
}

func (m *captureMailer) SendTemplate(_ context.Context, msg email.TemplateMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *captureMailer) lastAcceptURL(t *testing.T) *url.URL {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("no invitation email sent")
	}
	raw, _ := m.sent[len(m.sent)-1].Variables["accept_url"].(string)
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse accept_url %q: %v", raw, err)
	}
	return u
}

type testEnv struct {
	handler  http.Handler
	verifier *auth.Verifier
	mailer   *captureMailer
}

type testUser struct {
	id    string
	email string
	token string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.DiscardHandler)
	m := metrics.New()
	hub := ws.NewHub(logger)
	mailer := &captureMailer{}
	svc := service.New(db,
		service.WithNotifier(notify.New(db, logger, notify.WithHub(hub), notify.WithMetrics(m))),
		service.WithMailer(mailer),
		service.WithMetrics(m),
		service.WithLogger(logger),
		service.WithBaseURL("https://shop.example.com"),
	)
	verifier := auth.NewVerifier("test-secret", "")
	srv := New(db, svc, verifier, hub, push.NewService("", "", ""), m, nil, logger)

	return &testEnv{handler: srv.Router(), verifier: verifier, mailer: mailer}
}

func (e *testEnv) user(t *testing.T, addr string) testUser {
	t.Helper()
	id := uuid.NewString()
	token, err := e.verifier.Sign(id, addr, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return testUser{id: id, email: addr, token: token}
}

// do sends a request and decodes a JSON response into out when out is non-nil.
func (e *testEnv) do(t *testing.T, u *testUser, method, path string, body any, out any) int {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if u != nil {
		req.Header.Set("Authorization", "Bearer "+u.token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	if out != nil && rec.Code < 300 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (e *testEnv) doError(t *testing.T, u *testUser, method, path string, body any) (int, errorBody) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if u != nil {
		req.Header.Set("Authorization", "Bearer "+u.token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var eb errorBody
	json.Unmarshal(rec.Body.Bytes(), &eb)
	return rec.Code, eb
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	var body map[string]string
	if code := env.do(t, nil, "GET", "/health", nil, &body); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want %q", body["status"], "ok")
	}
}

func TestAPIRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	code, eb := env.doError(t, nil, "GET", "/api/families", nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", code)
	}
	if eb.Kind != "unauthenticated" {
		t.Errorf("kind = %q, want %q", eb.Kind, "unauthenticated")
	}
}

func TestInvitationFlow(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice@example.com")
	bob := env.user(t, "bob@example.com")

	var fam model.FamilyGroup
	if code := env.do(t, &alice, "POST", "/api/families", map[string]string{"name": "Casa"}, &fam); code != http.StatusCreated {
		t.Fatalf("create family status = %d", code)
	}

	var inv model.FamilyInvitation
	path := fmt.Sprintf("/api/families/%d/invitations", fam.ID)
	if code := env.do(t, &alice, "POST", path, map[string]string{"email": "Bob@Example.com", "role": "editor"}, &inv); code != http.StatusCreated {
		t.Fatalf("create invitation status = %d", code)
	}
	if inv.Email != "bob@example.com" || inv.Status != model.InvitationPending {
		t.Errorf("invitation = %+v", inv)
	}

	accept := env.mailer.lastAcceptURL(t)
	if accept.Host != "shop.example.com" {
		t.Errorf("accept_url host = %q", accept.Host)
	}
	token := accept.Query().Get("token")

	var preview model.InvitationPreview
	previewPath := fmt.Sprintf("/invitations/%d/preview?token=%s", inv.ID, url.QueryEscape(token))
	if code := env.do(t, nil, "GET", previewPath, nil, &preview); code != http.StatusOK {
		t.Fatalf("preview status = %d", code)
	}
	if preview.FamilyName != "Casa" || preview.Role != model.RoleEditor {
		t.Errorf("preview = %+v", preview)
	}
	if code, _ := env.doError(t, nil, "GET", fmt.Sprintf("/invitations/%d/preview?token=wrong", inv.ID), nil); code != http.StatusNotFound {
		t.Errorf("wrong token status = %d, want 404", code)
	}

	var mine []model.FamilyInvitation
	env.do(t, &bob, "GET", "/api/invitations", nil, &mine)
	if len(mine) != 1 || mine[0].ID != inv.ID {
		t.Fatalf("bob invitations = %+v", mine)
	}

	respondPath := fmt.Sprintf("/api/invitations/%d/respond", inv.ID)
	var accepted model.FamilyInvitation
	if code := env.do(t, &bob, "POST", respondPath, map[string]string{"action": "accept"}, &accepted); code != http.StatusOK {
		t.Fatalf("accept status = %d", code)
	}
	if accepted.Status != model.InvitationAccepted {
		t.Errorf("status = %q, want accepted", accepted.Status)
	}

	code, eb := env.doError(t, &bob, "POST", respondPath, map[string]string{"action": "accept"})
	if code != http.StatusConflict || eb.Kind != "conflict" {
		t.Errorf("second accept = %d %q, want 409 conflict", code, eb.Kind)
	}

	var families []model.FamilyWithRole
	env.do(t, &bob, "GET", "/api/families", nil, &families)
	if len(families) != 1 || families[0].Role != model.RoleEditor {
		t.Fatalf("bob families = %+v", families)
	}

	var list model.SharedList
	if code := env.do(t, &bob, "POST", fmt.Sprintf("/api/families/%d/lists", fam.ID), map[string]string{"name": "Weekly"}, &list); code != http.StatusCreated {
		t.Fatalf("create list status = %d", code)
	}

	var notes struct {
		Notifications []model.Notification `json:"notifications"`
		UnreadCount   int                  `json:"unread_count"`
	}
	env.do(t, &alice, "GET", "/api/notifications?unread=true", nil, &notes)
	var sawAccepted, sawList bool
	for _, n := range notes.Notifications {
		switch n.Type {
		case model.NotifInvitationAccepted:
			sawAccepted = true
		case model.NotifListCreated:
			sawList = true
		}
	}
	if !sawAccepted || !sawList {
		t.Errorf("alice notifications = %+v, want accepted and list_created", notes.Notifications)
	}
	if notes.UnreadCount != len(notes.Notifications) {
		t.Errorf("unread_count = %d, want %d", notes.UnreadCount, len(notes.Notifications))
	}

	var cleared map[string]int64
	if code := env.do(t, &alice, "POST", "/api/notifications/read-all", nil, &cleared); code != http.StatusOK {
		t.Fatalf("read-all status = %d", code)
	}
	if cleared["updated"] != int64(notes.UnreadCount) {
		t.Errorf("updated = %d, want %d", cleared["updated"], notes.UnreadCount)
	}
}

func TestErrorMapping(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice@example.com")
	vic := env.user(t, "vic@example.com")

	var fam model.FamilyGroup
	env.do(t, &alice, "POST", "/api/families", map[string]string{"name": "Casa"}, &fam)

	// vic joins as a viewer through the public API
	var inv model.FamilyInvitation
	env.do(t, &alice, "POST", fmt.Sprintf("/api/families/%d/invitations", fam.ID), map[string]string{"email": vic.email, "role": "viewer"}, &inv)
	if code := env.do(t, &vic, "POST", fmt.Sprintf("/api/invitations/%d/respond", inv.ID), map[string]string{"action": "accept"}, nil); code != http.StatusOK {
		t.Fatalf("accept status = %d", code)
	}

	tests := []struct {
		name       string
		user       *testUser
		method     string
		path       string
		body       any
		wantStatus int
		wantKind   string
	}{
		{"viewer creates list", &vic, "POST", fmt.Sprintf("/api/families/%d/lists", fam.ID), map[string]string{"name": "Mine"}, http.StatusForbidden, "forbidden"},
		{"unknown family", &alice, "GET", "/api/families/9999", nil, http.StatusNotFound, "not_found"},
		{"bad id", &alice, "GET", "/api/families/abc", nil, http.StatusBadRequest, "validation"},
		{"empty name", &alice, "POST", "/api/families", map[string]string{"name": "  "}, http.StatusBadRequest, "validation"},
		{"bad action", &vic, "POST", fmt.Sprintf("/api/invitations/%d/respond", inv.ID), map[string]string{"action": "maybe"}, http.StatusBadRequest, "validation"},
		{"last admin leaves", &alice, "DELETE", fmt.Sprintf("/api/families/%d/members/%s", fam.ID, alice.id), nil, http.StatusConflict, "conflict"},
		{"bad limit", &alice, "GET", "/api/notifications?limit=x", nil, http.StatusBadRequest, "validation"},
		{"push not configured", &alice, "GET", "/api/push/vapid-key", nil, http.StatusNotFound, "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, eb := env.doError(t, tt.user, tt.method, tt.path, tt.body)
			if code != tt.wantStatus {
				t.Errorf("status = %d, want %d", code, tt.wantStatus)
			}
			if eb.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", eb.Kind, tt.wantKind)
			}
		})
	}
}

func TestInvalidJSON(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice@example.com")

	req := httptest.NewRequest("POST", "/api/families", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer "+alice.token)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestListItemsRoutes(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice@example.com")

	var fam model.FamilyGroup
	env.do(t, &alice, "POST", "/api/families", map[string]string{"name": "Casa"}, &fam)
	var list model.SharedList
	env.do(t, &alice, "POST", fmt.Sprintf("/api/families/%d/lists", fam.ID), map[string]string{"name": "Weekly"}, &list)

	itemsPath := fmt.Sprintf("/api/lists/%d/items", list.ID)
	var item model.SharedListItem
	if code := env.do(t, &alice, "POST", itemsPath, map[string]any{"product_id": "p-1", "product_name": "Leche entera", "quantity": 2}, &item); code != http.StatusCreated {
		t.Fatalf("add item status = %d", code)
	}
	if item.Quantity != 2 || item.AddedBy != alice.id {
		t.Errorf("item = %+v", item)
	}

	var checked model.SharedListItem
	env.do(t, &alice, "POST", fmt.Sprintf("%s/%d/check", itemsPath, item.ID), nil, &checked)
	if !checked.Checked {
		t.Error("item should be checked")
	}

	var cleared map[string]int64
	env.do(t, &alice, "POST", fmt.Sprintf("/api/lists/%d/clear-checked", list.ID), nil, &cleared)
	if cleared["deleted"] != 1 {
		t.Errorf("deleted = %d, want 1", cleared["deleted"])
	}

	var items []model.SharedListItem
	env.do(t, &alice, "GET", itemsPath, nil, &items)
	if len(items) != 0 {
		t.Errorf("items = %+v, want none", items)
	}
}

func TestMetricsUseRoutePattern(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice@example.com")

	env.do(t, &alice, "GET", "/api/families/42", nil, nil)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	want := `shopassist_http_requests_total{method="GET",route="GET /api/families/{id}",status="404"} 1`
	if !strings.Contains(rec.Body.String(), want) {
		t.Errorf("metrics output missing %q", want)
	}
}
