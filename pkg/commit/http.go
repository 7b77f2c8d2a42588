package commit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/royals-league/rally/pkg/optimistic"
)

// maxBodyRead bounds how much of a rejected response is read.
const maxBodyRead = 64 << 10

// JSONBody builds the JSON payload of an action.
type JSONBody func(a optimistic.ToggleAction) any

// FormBody builds the form payload of an action.
type FormBody func(a optimistic.ToggleAction) url.Values

// HTTP commits actions with a single POST to a configured endpoint.
// It never retries.
type HTTP struct {
	endpoint string
	what     string

	client    *http.Client
	token     TokenSource
	header    string
	formField string

	jsonBody JSONBody
	formBody FormBody

	logger *slog.Logger
}

// Option configures an HTTP committer.
type Option func(*HTTP)

// WithClient sets the HTTP client. Its redirect policy is overridden so
// auth redirects are reported instead of followed.
func WithClient(c *http.Client) Option {
	return func(h *HTTP) {
		if c != nil {
			h.client = c
		}
	}
}

// WithToken sets the CSRF token source.
func WithToken(src TokenSource) Option {
	return func(h *HTTP) {
		h.token = src
	}
}

// WithHeader sets the CSRF header name (default: X-CSRFToken).
func WithHeader(name string) Option {
	return func(h *HTTP) {
		if name != "" {
			h.header = name
		}
	}
}

// WithFormField sets the CSRF form field name (default: csrfmiddlewaretoken).
func WithFormField(name string) Option {
	return func(h *HTTP) {
		if name != "" {
			h.formField = name
		}
	}
}

// WithJSON sends actions as application/json built by fn.
func WithJSON(fn JSONBody) Option {
	return func(h *HTTP) {
		h.jsonBody = fn
		h.formBody = nil
	}
}

// WithForm sends actions as application/x-www-form-urlencoded built by fn.
func WithForm(fn FormBody) Option {
	return func(h *HTTP) {
		h.formBody = fn
		h.jsonBody = nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *HTTP) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHTTP creates a committer for endpoint. what names the endpoint in
// configuration errors, e.g. "availability endpoint". An empty endpoint is
// allowed: every commit then fails fast with a ConfigError.
func NewHTTP(endpoint, what string, opts ...Option) *HTTP {
	h := &HTTP{
		endpoint:  strings.TrimSpace(endpoint),
		what:      what,
		client:    http.DefaultClient,
		header:    DefaultHeader,
		formField: DefaultFormField,
		jsonBody:  defaultJSON,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}

	// Copy so the caller's client keeps its own redirect policy.
	client := *h.client
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	h.client = &client
	return h
}

// Endpoint returns the configured endpoint.
func (h *HTTP) Endpoint() string {
	return h.endpoint
}

func defaultJSON(a optimistic.ToggleAction) any {
	return map[string]any{
		"subject_id":    a.SubjectID,
		"desired_state": string(a.Desired),
	}
}

// Commit implements optimistic.Committer.
func (h *HTTP) Commit(ctx context.Context, a optimistic.ToggleAction) error {
	if h.endpoint == "" {
		return &optimistic.ConfigError{What: h.what}
	}
	target, err := url.Parse(h.endpoint)
	if err != nil {
		return &optimistic.ConfigError{What: h.what, Err: fmt.Errorf("parse endpoint: %w", err)}
	}

	token := ""
	if h.token != nil {
		token = h.token.Token(target)
	}

	req, err := h.newRequest(ctx, target, a, token)
	if err != nil {
		return err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Error("commit transport error", "endpoint", h.endpoint, "action", a.ID, "error", err)
		return &optimistic.TransportError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyRead))
		return nil

	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		loc := resp.Header.Get("Location")
		if u, err := resp.Location(); err == nil {
			loc = u.String()
		}
		if loc == "" {
			// Not an auth redirect; reported like any other refusal.
			return &optimistic.RejectedError{Status: resp.StatusCode}
		}
		return &optimistic.RejectedError{
			Status:   resp.StatusCode,
			Message:  "Your session has expired. Please sign in again.",
			Location: loc,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyRead))
	if err != nil {
		h.logger.Debug("read rejected body", "endpoint", h.endpoint, "error", err)
	}
	return &optimistic.RejectedError{
		Status:  resp.StatusCode,
		Message: ExtractMessage(resp.Header.Get("Content-Type"), body),
	}
}

func (h *HTTP) newRequest(ctx context.Context, target *url.URL, a optimistic.ToggleAction, token string) (*http.Request, error) {
	var (
		body        io.Reader
		contentType string
	)
	if h.formBody != nil {
		values := h.formBody(a)
		if values == nil {
			values = url.Values{}
		}
		if token != "" && h.formField != "" {
			values.Set(h.formField, token)
		}
		body = strings.NewReader(values.Encode())
		contentType = "application/x-www-form-urlencoded;charset=UTF-8"
	} else {
		payload, err := json.Marshal(h.jsonBody(a))
		if err != nil {
			return nil, fmt.Errorf("commit: encode action: %w", err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), body)
	if err != nil {
		return nil, &optimistic.ConfigError{What: h.what, Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if h.formBody != nil {
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
	}
	if token != "" {
		req.Header.Set(h.header, token)
	}
	return req, nil
}

// Middleware decorates a Committer.
type Middleware func(next optimistic.Committer) optimistic.Committer

// Chain wraps c with mws. The first middleware is the outermost.
func Chain(c optimistic.Committer, mws ...Middleware) optimistic.Committer {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			c = mws[i](c)
		}
	}
	return c
}
