// Package server wires handlers, middleware and the websocket hub into one
// router.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/shopassist/internal/auth"
	"github.com/dukerupert/shopassist/internal/database"
	"github.com/dukerupert/shopassist/internal/handler"
	"github.com/dukerupert/shopassist/internal/metrics"
	"github.com/dukerupert/shopassist/internal/middleware"
	"github.com/dukerupert/shopassist/internal/push"
	"github.com/dukerupert/shopassist/internal/service"
	"github.com/dukerupert/shopassist/internal/store"
	ws "github.com/dukerupert/shopassist/internal/websocket"
)

var (
	previewPolicy = middleware.Policy{Name: "invitation_preview", Limit: 30, Window: time.Minute}
	invitePolicy  = middleware.Policy{Name: "invitation_create", Limit: 20, Window: time.Hour}
)

type Server struct {
	db             *database.DB
	hub            *ws.Hub
	metrics        *metrics.Metrics
	requireAuth    func(http.Handler) http.Handler
	rateLimiter    *middleware.RateLimiter
	originPatterns []string

	familyH       *handler.FamilyHandler
	invitationH   *handler.InvitationHandler
	listH         *handler.SharedListHandler
	notificationH *handler.NotificationHandler
	pushH         *handler.PushHandler

	logger *slog.Logger
}

func New(db *database.DB, svc *service.Service, verifier *auth.Verifier, hub *ws.Hub, pushSvc *push.Service, m *metrics.Metrics, originPatterns []string, logger *slog.Logger) *Server {
	return &Server{
		db:             db,
		hub:            hub,
		metrics:        m,
		requireAuth:    middleware.RequireAuth(verifier, store.NewUserStore(db), logger.With("component", "auth")),
		rateLimiter:    middleware.NewRateLimiter(),
		originPatterns: originPatterns,
		familyH:        handler.NewFamilyHandler(svc, logger.With("component", "family")),
		invitationH:    handler.NewInvitationHandler(svc, logger.With("component", "invitation")),
		listH:          handler.NewSharedListHandler(svc, logger.With("component", "shared_list")),
		notificationH:  handler.NewNotificationHandler(svc, logger.With("component", "notification")),
		pushH:          handler.NewPushHandler(svc, pushSvc, logger.With("component", "push_handler")),
		logger:         logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Router registers every route on a single mux so the request logger sees
// the matched pattern. Authenticated routes are wrapped one by one.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.Handle("GET /invitations/{id}/preview", s.limited(previewPolicy, middleware.ByIP, http.HandlerFunc(s.invitationH.Preview)))

	s.auth(mux, "GET /api/me", s.notificationH.Me)

	// Families and membership
	s.auth(mux, "GET /api/families", s.familyH.List)
	s.auth(mux, "POST /api/families", s.familyH.Create)
	s.auth(mux, "GET /api/families/{id}", s.familyH.Get)
	s.auth(mux, "PUT /api/families/{id}", s.familyH.Update)
	s.auth(mux, "DELETE /api/families/{id}", s.familyH.Delete)
	s.auth(mux, "GET /api/families/{id}/members", s.familyH.ListMembers)
	s.auth(mux, "PUT /api/families/{id}/members/{user_id}", s.familyH.UpdateMemberRole)
	s.auth(mux, "DELETE /api/families/{id}/members/{user_id}", s.familyH.RemoveMember)

	// Invitations
	s.auth(mux, "GET /api/families/{id}/invitations", s.invitationH.ListForFamily)
	mux.Handle("POST /api/families/{id}/invitations",
		s.requireAuth(s.limited(invitePolicy, middleware.ByUser, http.HandlerFunc(s.invitationH.Create))))
	s.auth(mux, "GET /api/invitations", s.invitationH.ListMine)
	s.auth(mux, "POST /api/invitations/{id}/respond", s.invitationH.Respond)
	s.auth(mux, "DELETE /api/invitations/{id}", s.invitationH.Cancel)

	// Shared lists
	s.auth(mux, "GET /api/families/{id}/lists", s.listH.ListForFamily)
	s.auth(mux, "POST /api/families/{id}/lists", s.listH.Create)
	s.auth(mux, "GET /api/lists/{id}", s.listH.Get)
	s.auth(mux, "PUT /api/lists/{id}", s.listH.Update)
	s.auth(mux, "DELETE /api/lists/{id}", s.listH.Delete)
	s.auth(mux, "GET /api/lists/{id}/items", s.listH.ListItems)
	s.auth(mux, "POST /api/lists/{id}/items", s.listH.AddItem)
	s.auth(mux, "PUT /api/lists/{id}/items/{item_id}", s.listH.UpdateItem)
	s.auth(mux, "DELETE /api/lists/{id}/items/{item_id}", s.listH.RemoveItem)
	s.auth(mux, "POST /api/lists/{id}/items/{item_id}/check", s.listH.ToggleChecked)
	s.auth(mux, "POST /api/lists/{id}/clear-checked", s.listH.ClearChecked)

	// Notifications
	s.auth(mux, "GET /api/notifications", s.notificationH.List)
	s.auth(mux, "POST /api/notifications/read-all", s.notificationH.MarkAllRead)
	s.auth(mux, "POST /api/notifications/{id}/read", s.notificationH.MarkRead)
	s.auth(mux, "DELETE /api/notifications/{id}", s.notificationH.Delete)

	// Push notification API routes
	s.auth(mux, "POST /api/push/subscribe", s.pushH.Subscribe)
	s.auth(mux, "GET /api/push/subscriptions", s.pushH.ListSubscriptions)
	s.auth(mux, "DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
	s.auth(mux, "GET /api/push/vapid-key", s.pushH.GetVAPIDKey)

	// WebSocket
	mux.Handle("GET /ws", s.requireAuth(ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket"), s.originPatterns)))

	return middleware.RequestLogger(s.logger.With("component", "http"), s.metrics)(mux)
}

func (s *Server) auth(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, s.requireAuth(h))
}

func (s *Server) limited(p middleware.Policy, keyFunc func(*http.Request) string, h http.Handler) http.Handler {
	return middleware.RateLimit(s.rateLimiter, p, keyFunc)(h)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Warn("health check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.Write([]byte(`{"status":"ok"}`))
}
