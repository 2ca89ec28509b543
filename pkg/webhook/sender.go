package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/opsdesk/webhooks/pkg/signature"
)

// Standard headers attached to every delivery.
const (
	HeaderSignature = "X-Opsdesk-Signature"
	HeaderEvent     = "X-Opsdesk-Event"
	HeaderDelivery  = "X-Opsdesk-Delivery"
)

// UserAgent identifies Opsdesk deliveries to receiving endpoints.
const UserAgent = "Opsdesk-Webhook/1.0"

// DefaultTimeout bounds a single delivery attempt end to end.
const DefaultTimeout = 30 * time.Second

// responseBodyReadLimit caps how much of a response body is read.
// Endpoints can return arbitrarily large bodies; 64KiB is plenty for
// operator diagnosis.
const responseBodyReadLimit = 64 << 10

// Request describes a single delivery attempt. Body must be the exact
// bytes to send; the signature is computed over them without re-encoding.
type Request struct {
	URL        string
	Body       []byte
	Secret     string
	EventType  string
	DeliveryID string
	// Headers are webhook-configured custom headers. They are sanitized
	// before use, so callers may pass operator input directly.
	Headers map[string]string
}

// Result captures the outcome of one delivery attempt. StatusCode is 0
// when no HTTP response was obtained. Err is nil only for 2xx responses.
type Result struct {
	StatusCode int
	Body       string
	Duration   time.Duration
	Err        error
}

// Success reports whether the attempt got a 2xx response.
func (r Result) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Sender performs webhook HTTP deliveries. Create with NewSender; the
// zero value is not usable. Safe for concurrent use.
type Sender struct {
	client *http.Client
}

// Option configures a Sender.
type Option func(*Sender)

// WithTimeout overrides the per-attempt timeout. Non-positive values are
// ignored.
func WithTimeout(d time.Duration) Option {
	return func(s *Sender) {
		if d > 0 {
			s.client.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client. Useful for custom
// transports or testing. Nil clients are ignored.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Sender) {
		if client != nil {
			s.client = client
		}
	}
}

// NewSender creates a webhook sender. Connection pooling is sized for a
// single delivery worker fanning out to many distinct endpoints.
func NewSender(opts ...Option) *Sender {
	s := &Sender{
		client: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deliver performs one signed POST attempt and classifies the outcome.
// It never retries; the caller owns the retry chain.
func (s *Sender) Deliver(ctx context.Context, req Request) Result {
	if err := validate(req); err != nil {
		return Result{Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return Result{Err: fmt.Errorf("%w: %w", ErrInvalidURL, err)}
	}

	// Custom headers first so the standard set below always wins.
	for k, v := range SanitizeHeaders(req.Headers) {
		httpReq.Header.Set(k, v)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", UserAgent)
	httpReq.Header.Set(HeaderSignature, signature.Sign(req.Body, req.Secret))
	httpReq.Header.Set(HeaderEvent, req.EventType)
	httpReq.Header.Set(HeaderDelivery, req.DeliveryID)

	start := time.Now()
	resp, err := s.client.Do(httpReq)
	result := Result{Duration: time.Since(start)}

	if err != nil {
		if ctx.Err() != nil {
			result.Err = fmt.Errorf("%w: %w", ErrTimeout, err)
		} else {
			result.Err = fmt.Errorf("%w: %w", ErrTransport, err)
		}
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	result.StatusCode = resp.StatusCode
	body, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	result.Body = string(body)

	if !result.Success() {
		result.Err = fmt.Errorf("%w: status %d", ErrHTTPFailure, resp.StatusCode)
	}
	return result
}

// SanitizeHeaders returns a copy of custom headers with Host, User-Agent
// and Authorization removed (case-insensitively). These are always set by
// the sender or the transport; allowing overrides from admin-configured
// webhook data would permit header injection.
func SanitizeHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if k == "" || v == "" {
			continue
		}
		switch strings.ToLower(k) {
		case "host", "user-agent", "authorization":
			continue
		}
		out[k] = v
	}
	return out
}

func validate(req Request) error {
	if req.URL == "" {
		return fmt.Errorf("%w: URL is required", ErrInvalidURL)
	}
	u, err := url.Parse(req.URL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: only http and https schemes are supported", ErrInvalidURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	if len(req.Body) == 0 {
		return fmt.Errorf("%w: body cannot be empty", ErrInvalidPayload)
	}
	return nil
}
