package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const postmarkBaseURL = "https://api.postmarkapp.com"

// Postmark error codes worth telling apart.
const (
	postmarkInactiveRecipient = 406
	postmarkTemplateMissing   = 1101
)

// ErrInactiveRecipient means Postmark suppressed the address after a hard
// bounce or spam complaint. Retrying will not help.
var ErrInactiveRecipient = errors.New("email: recipient is inactive")

// APIError is a non-2xx answer from Postmark.
type APIError struct {
	Status  int    `json:"-"`
	Code    int    `json:"ErrorCode"`
	Message string `json:"Message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("postmark: status %d", e.Status)
	}
	return fmt.Sprintf("postmark: status %d: %s (code %d)", e.Status, e.Message, e.Code)
}

func (e *APIError) Is(target error) bool {
	return target == ErrInactiveRecipient && e.Code == postmarkInactiveRecipient
}

// PostmarkSender sends template emails through the Postmark API.
type PostmarkSender struct {
	token   string
	from    string
	stream  string
	baseURL string
	http    *http.Client
}

type PostmarkOption func(*PostmarkSender)

// WithBaseURL points the sender at another API host, e.g. a test server.
func WithBaseURL(u string) PostmarkOption {
	return func(p *PostmarkSender) { p.baseURL = strings.TrimRight(u, "/") }
}

// WithMessageStream selects a Postmark message stream other than the
// default transactional one.
func WithMessageStream(stream string) PostmarkOption {
	return func(p *PostmarkSender) { p.stream = stream }
}

func NewPostmarkSender(token, from string, opts ...PostmarkOption) *PostmarkSender {
	p := &PostmarkSender{
		token:   token,
		from:    from,
		stream:  "outbound",
		baseURL: postmarkBaseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *PostmarkSender) Configured() bool {
	return p.token != ""
}

type postmarkRequest struct {
	From          string         `json:"From"`
	To            string         `json:"To"`
	TemplateAlias string         `json:"TemplateAlias"`
	TemplateModel map[string]any `json:"TemplateModel"`
	Tag           string         `json:"Tag,omitempty"`
	MessageStream string         `json:"MessageStream"`
}

// SendTemplate renders the Postmark template whose alias is msg.Template.
func (p *PostmarkSender) SendTemplate(ctx context.Context, msg TemplateMessage) error {
	if !p.Configured() {
		return errors.New("postmark: server token not set")
	}

	body, err := json.Marshal(postmarkRequest{
		From:          p.from,
		To:            msg.To,
		TemplateAlias: msg.Template,
		TemplateModel: msg.Variables,
		Tag:           msg.Tag,
		MessageStream: p.stream,
	})
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/email/withTemplate", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Postmark-Server-Token", p.token)

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("postmark request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 300 {
		return nil
	}
	apiErr := &APIError{Status: resp.StatusCode}
	_ = json.NewDecoder(resp.Body).Decode(apiErr)
	if apiErr.Code == postmarkTemplateMissing {
		return fmt.Errorf("template %q: %w", msg.Template, apiErr)
	}
	return apiErr
}
