// Package notify turns family-sharing events into per-user notifications and
// delivers them to the store, open websocket connections and web push.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/dukerupert/shopassist/internal/database"
	"github.com/dukerupert/shopassist/internal/metrics"
	"github.com/dukerupert/shopassist/internal/model"
	"github.com/dukerupert/shopassist/internal/push"
	"github.com/dukerupert/shopassist/internal/store"
	"github.com/dukerupert/shopassist/internal/websocket"
)

const defaultTimeout = 10 * time.Second

// Event describes something that happened in a family. Which fields matter
// depends on Type.
type Event struct {
	Type     string
	FamilyID int64
	ActorID  string
	Message  string

	// Invitation events.
	InviterID      string
	InviteeEmail   string
	InviteeMessage string

	// Member events.
	TargetUserID string
}

type delivery struct {
	userID    string
	notifType string
	message   string
}

// Fanout writes one notification per recipient of an event. It never returns
// errors to the caller; failures are logged and counted.
type Fanout struct {
	notifications *store.NotificationStore
	families      *store.FamilyStore
	users         *store.UserStore
	subscriptions *store.PushStore
	hub           *websocket.Hub
	push          *push.Service
	metrics       *metrics.Metrics
	logger        *slog.Logger
	timeout       time.Duration
}

type Option func(*Fanout)

func WithHub(h *websocket.Hub) Option {
	return func(f *Fanout) { f.hub = h }
}

// WithPush enables web push delivery when svc has VAPID keys.
func WithPush(svc *push.Service) Option {
	return func(f *Fanout) { f.push = svc }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Fanout) { f.metrics = m }
}

func WithTimeout(d time.Duration) Option {
	return func(f *Fanout) { f.timeout = d }
}

func New(db database.Querier, logger *slog.Logger, opts ...Option) *Fanout {
	f := &Fanout{
		notifications: store.NewNotificationStore(db),
		families:      store.NewFamilyStore(db),
		users:         store.NewUserStore(db),
		subscriptions: store.NewPushStore(db),
		logger:        logger,
		timeout:       defaultTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Notify resolves the recipients of ev and delivers to each of them. The
// request context is detached so a client disconnect does not cut the fanout
// short.
func (f *Fanout) Notify(ctx context.Context, ev Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
	defer cancel()

	deliveries, err := f.recipients(ctx, ev)
	if err != nil {
		f.logger.Error("resolve notification recipients", "type", ev.Type, "family_id", ev.FamilyID, "error", err)
		f.metrics.Notification(ev.Type, "store", "error")
		return
	}

	for _, d := range deliveries {
		f.deliver(ctx, ev, d)
	}
}

func (f *Fanout) deliver(ctx context.Context, ev Event, d delivery) {
	var familyID *int64
	if ev.FamilyID != 0 {
		id := ev.FamilyID
		familyID = &id
	}
	var sender *string
	if ev.ActorID != "" {
		actor := ev.ActorID
		sender = &actor
	}

	n, err := f.notifications.Create(ctx, d.userID, familyID, d.notifType, d.message, sender)
	if err != nil {
		f.logger.Error("store notification", "type", d.notifType, "user_id", d.userID, "error", err)
		f.metrics.Notification(d.notifType, "store", "error")
		return
	}
	f.metrics.Notification(d.notifType, "store", "ok")

	if f.hub != nil {
		if f.hub.SendToUser(d.userID, websocket.NewMessage("notification", "created", n.ID, n)) > 0 {
			f.metrics.Notification(d.notifType, "websocket", "ok")
		}
	}

	if f.push.Configured() {
		f.sendPush(ctx, n)
	}
}

func (f *Fanout) sendPush(ctx context.Context, n *model.Notification) {
	subs, err := f.subscriptions.ListByUser(ctx, n.UserID)
	if err != nil {
		f.logger.Error("list push subscriptions", "user_id", n.UserID, "error", err)
		f.metrics.Notification(n.Type, "push", "error")
		return
	}

	payload := push.Payload{
		Title: "Shop Assist",
		Body:  n.Message,
		URL:   "/notifications",
		Tag:   n.Type,

		Urgency: pushUrgency(n.Type),
	}
	for i := range subs {
		sub := &subs[i]
		err := f.push.Send(ctx, sub, payload)
		switch {
		case errors.Is(err, push.ErrExpired):
			if err := f.subscriptions.DeleteByEndpoint(ctx, sub.Endpoint); err != nil {
				f.logger.Warn("delete expired push subscription", "id", sub.ID, "error", err)
			}
			f.metrics.Notification(n.Type, "push", "expired")
		case err != nil:
			var se *push.StatusError
			if errors.As(err, &se) && se.Retryable() {
				f.logger.Info("push service busy", "id", sub.ID, "status", se.Code)
			} else {
				f.logger.Warn("send push", "id", sub.ID, "error", err)
			}
			f.metrics.Notification(n.Type, "push", "error")
		default:
			f.metrics.Notification(n.Type, "push", "ok")
		}
	}
}

// pushUrgency lets invitations wake a sleeping device while list churn waits
// for the next opportunity.
func pushUrgency(typ string) webpush.Urgency {
	switch typ {
	case model.NotifInvitationReceived, model.NotifMemberRemoved:
		return webpush.UrgencyHigh
	case model.NotifItemAdded, model.NotifItemRemoved, model.NotifListUpdated:
		return webpush.UrgencyLow
	default:
		return webpush.UrgencyNormal
	}
}
