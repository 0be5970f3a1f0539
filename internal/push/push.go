// Package push delivers Web Push notifications signed with VAPID keys.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/dukerupert/shopassist/internal/model"
)

// ErrExpired means the browser dropped the subscription and it should be
// deleted.
var ErrExpired = errors.New("push subscription expired")

// StatusError is a rejection by the push service other than expiry.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("push service returned %d", e.Code)
}

// Retryable reports whether the push service asked us to back off rather
// than refusing the message.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

const defaultTTL = 24 * time.Hour

// Payload is the JSON the service worker receives.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`

	// Delivery hints for the push service; not part of the body.
	Urgency webpush.Urgency `json:"-"`
	Topic   string          `json:"-"`
}

type Service struct {
	publicKey  string
	privateKey string
	subscriber string
	ttl        time.Duration
	client     webpush.HTTPClient
}

type Option func(*Service)

// WithHTTPClient overrides the client used to reach push endpoints.
func WithHTTPClient(c webpush.HTTPClient) Option {
	return func(s *Service) { s.client = c }
}

// WithTTL sets how long push services hold undelivered messages.
func WithTTL(d time.Duration) Option {
	return func(s *Service) { s.ttl = d }
}

// NewService returns a sender for the given VAPID key pair. subscriber is the
// mailto: or https contact handed to push services.
func NewService(publicKey, privateKey, subscriber string, opts ...Option) *Service {
	s := &Service{
		publicKey:  publicKey,
		privateKey: privateKey,
		subscriber: subscriber,
		ttl:        defaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Configured reports whether both VAPID keys are set. Safe on nil.
func (s *Service) Configured() bool {
	return s != nil && s.publicKey != "" && s.privateKey != ""
}

func (s *Service) VAPIDPublicKey() string {
	return s.publicKey
}

// Send encrypts payload for one subscription and posts it. A 404 or 410
// from the push service yields ErrExpired, other failures a *StatusError.
func (s *Service) Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error {
	if !s.Configured() {
		return errors.New("push: VAPID keys not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	urgency := payload.Urgency
	if urgency == "" {
		urgency = webpush.UrgencyNormal
	}

	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256dhKey, Auth: sub.AuthKey},
	}, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             int(s.ttl.Seconds()),
		Urgency:         urgency,
		Topic:           payload.Topic,
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone, resp.StatusCode == http.StatusNotFound:
		return ErrExpired
	case resp.StatusCode >= 400:
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// GenerateVAPIDKeys returns a fresh base64url P-256 key pair, public key
// first.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	if err != nil {
		return "", "", fmt.Errorf("generate VAPID keys: %w", err)
	}
	return publicKey, privateKey, nil
}
