package service

import (
	"context"
	"net/url"
	"strings"

	"github.com/dukerupert/shopassist/internal/apperr"
	"github.com/dukerupert/shopassist/internal/model"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

// Me returns the caller's profile.
func (s *Service) Me(ctx context.Context, c Caller) (*model.User, error) {
	if err := requireCaller(c); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, c.UserID)
	if err != nil {
		return nil, storeErr(err)
	}
	if u == nil {
		return nil, apperr.NotFound("user")
	}
	return u, nil
}

// ListNotifications returns the caller's notifications, newest first. A limit
// of zero uses the default page size.
func (s *Service) ListNotifications(ctx context.Context, c Caller, unreadOnly bool, limit int) ([]model.Notification, error) {
	if err := requireCaller(c); err != nil {
		return nil, err
	}
	switch {
	case limit < 0:
		return nil, apperr.Validation("limit must not be negative")
	case limit == 0:
		limit = defaultNotificationLimit
	case limit > maxNotificationLimit:
		limit = maxNotificationLimit
	}
	notifications, err := s.notifications.List(ctx, c.UserID, unreadOnly, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	return notifications, nil
}

func (s *Service) UnreadCount(ctx context.Context, c Caller) (int, error) {
	if err := requireCaller(c); err != nil {
		return 0, err
	}
	n, err := s.notifications.UnreadCount(ctx, c.UserID)
	if err != nil {
		return 0, storeErr(err)
	}
	return n, nil
}

// MarkRead marks one of the caller's notifications read. Notifications of
// other users are reported as not found.
func (s *Service) MarkRead(ctx context.Context, c Caller, id int64) (*model.Notification, error) {
	if err := requireCaller(c); err != nil {
		return nil, err
	}
	ok, err := s.notifications.MarkRead(ctx, c.UserID, id)
	if err != nil {
		return nil, storeErr(err)
	}
	if !ok {
		return nil, apperr.NotFound("notification")
	}
	n, err := s.notifications.GetByID(ctx, c.UserID, id)
	if err != nil {
		return nil, storeErr(err)
	}
	if n == nil {
		return nil, apperr.NotFound("notification")
	}
	return n, nil
}

func (s *Service) MarkAllRead(ctx context.Context, c Caller) (int64, error) {
	if err := requireCaller(c); err != nil {
		return 0, err
	}
	n, err := s.notifications.MarkAllRead(ctx, c.UserID)
	if err != nil {
		return 0, storeErr(err)
	}
	return n, nil
}

func (s *Service) DeleteNotification(ctx context.Context, c Caller, id int64) error {
	if err := requireCaller(c); err != nil {
		return err
	}
	ok, err := s.notifications.Delete(ctx, c.UserID, id)
	if err != nil {
		return storeErr(err)
	}
	if !ok {
		return apperr.NotFound("notification")
	}
	return nil
}

// --- Push subscription methods ---

// PushSubscriptionInput is the browser PushSubscription plus a device label.
type PushSubscriptionInput struct {
	Endpoint   string
	P256dh     string
	Auth       string
	DeviceName string
}

func (s *Service) Subscribe(ctx context.Context, c Caller, in PushSubscriptionInput) (*model.PushSubscription, error) {
	if err := requireCaller(c); err != nil {
		return nil, err
	}
	endpoint := strings.TrimSpace(in.Endpoint)
	u, err := url.Parse(endpoint)
	if endpoint == "" || err != nil || u.Scheme != "https" || u.Host == "" {
		return nil, apperr.Validation("endpoint must be an https URL")
	}
	if in.P256dh == "" || in.Auth == "" {
		return nil, apperr.Validation("keys.p256dh and keys.auth are required")
	}
	sub, err := s.subscriptions.CreateSubscription(ctx, c.UserID, endpoint, in.P256dh, in.Auth, strings.TrimSpace(in.DeviceName))
	if err != nil {
		return nil, storeErr(err)
	}
	return sub, nil
}

func (s *Service) ListSubscriptions(ctx context.Context, c Caller) ([]model.PushSubscription, error) {
	if err := requireCaller(c); err != nil {
		return nil, err
	}
	subs, err := s.subscriptions.ListByUser(ctx, c.UserID)
	if err != nil {
		return nil, storeErr(err)
	}
	return subs, nil
}

func (s *Service) Unsubscribe(ctx context.Context, c Caller, id int64) error {
	if err := requireCaller(c); err != nil {
		return err
	}
	ok, err := s.subscriptions.DeleteSubscription(ctx, c.UserID, id)
	if err != nil {
		return storeErr(err)
	}
	if !ok {
		return apperr.NotFound("subscription")
	}
	return nil
}
