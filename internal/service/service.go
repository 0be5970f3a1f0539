// Package service holds the family-sharing business rules. Every exported
// operation takes the authenticated Caller, checks membership and role through
// the access gate, runs multi-row mutations in a single transaction and
// returns *apperr.Error values the HTTP layer can map directly.
package service

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dukerupert/shopassist/internal/access"
	"github.com/dukerupert/shopassist/internal/apperr"
	"github.com/dukerupert/shopassist/internal/database"
	"github.com/dukerupert/shopassist/internal/email"
	"github.com/dukerupert/shopassist/internal/metrics"
	"github.com/dukerupert/shopassist/internal/model"
	"github.com/dukerupert/shopassist/internal/notify"
	"github.com/dukerupert/shopassist/internal/store"
)

const maxNameLength = 100

// Caller is the authenticated user performing an operation.
type Caller struct {
	UserID string
	Email  string
}

// Notifier receives an event after the mutation that caused it has
// committed.
type Notifier interface {
	Notify(ctx context.Context, ev notify.Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, notify.Event) {}

// Service implements family, invitation, shared list and notification
// operations on top of the stores.
type Service struct {
	db            *database.DB
	users         *store.UserStore
	families      *store.FamilyStore
	invitations   *store.InvitationStore
	lists         *store.SharedListStore
	notifications *store.NotificationStore
	subscriptions *store.PushStore

	notifier       Notifier
	mailer         email.Sender
	metrics        *metrics.Metrics
	logger         *slog.Logger
	now            func() time.Time
	baseURL        string
	inviteTemplate string
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithMailer(m email.Sender) Option {
	return func(s *Service) { s.mailer = m }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the clock used for invitation expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithBaseURL sets the public URL used to build invitation links.
func WithBaseURL(u string) Option {
	return func(s *Service) { s.baseURL = strings.TrimRight(u, "/") }
}

func WithInviteTemplate(alias string) Option {
	return func(s *Service) { s.inviteTemplate = alias }
}

func New(db *database.DB, opts ...Option) *Service {
	s := &Service{
		db:             db,
		users:          store.NewUserStore(db),
		families:       store.NewFamilyStore(db),
		invitations:    store.NewInvitationStore(db),
		lists:          store.NewSharedListStore(db),
		notifications:  store.NewNotificationStore(db),
		subscriptions:  store.NewPushStore(db),
		notifier:       nopNotifier{},
		logger:         slog.Default(),
		now:            func() time.Time { return time.Now().UTC() },
		inviteTemplate: "family-invitation",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.mailer == nil {
		s.mailer = email.NewLogSender(s.logger)
	}
	return s
}

// storeErr classifies a raw store or transaction error.
func storeErr(err error) error {
	return apperr.FromStore(err, database.IsTransient)
}

func requireCaller(c Caller) error {
	if c.UserID == "" {
		return apperr.Forbidden("authentication required")
	}
	return nil
}

// authorize loads the family and the caller's membership and checks action.
func (s *Service) authorize(ctx context.Context, c Caller, familyID int64, action access.Action) (*model.FamilyGroup, *model.FamilyMember, error) {
	if err := requireCaller(c); err != nil {
		return nil, nil, err
	}
	family, err := s.families.GetByID(ctx, familyID)
	if err != nil {
		return nil, nil, storeErr(err)
	}
	if family == nil {
		return nil, nil, apperr.NotFound("family")
	}
	member, err := s.families.GetMember(ctx, familyID, c.UserID)
	if err != nil {
		return nil, nil, storeErr(err)
	}
	if err := access.Check(member, action); err != nil {
		return nil, nil, err
	}
	return family, member, nil
}

func (s *Service) notify(ctx context.Context, ev notify.Event) {
	s.notifier.Notify(ctx, ev)
}

func validateName(field, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Validation(field + " is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", apperr.New(apperr.KindValidation, "%s must be at most %d characters", field, maxNameLength)
	}
	return name, nil
}

func validateEmail(addr string) (string, error) {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if addr == "" {
		return "", apperr.Validation("email is required")
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr {
		return "", apperr.Validation("email is not a valid address")
	}
	return addr, nil
}

func validateRole(role model.Role) error {
	if !role.Valid() {
		return apperr.Validation("role must be admin, editor or viewer")
	}
	return nil
}

func displayName(c Caller) string {
	if c.Email != "" {
		return c.Email
	}
	return "someone"
}
