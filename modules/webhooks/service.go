package webhooks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/opsdesk/webhooks/pkg/events"
	"github.com/opsdesk/webhooks/pkg/signature"
	"github.com/opsdesk/webhooks/pkg/webhook"
)

var (
	// ErrQueueClosed is returned when a task is enqueued after Stop.
	ErrQueueClosed = errors.New("webhook queue closed")

	// ErrInvalidEventType is returned when a webhook registration names
	// an event type outside the published catalog.
	ErrInvalidEventType = errors.New("invalid webhook event type")

	// ErrInvalidWebhookURL is returned when a registration URL is not an
	// absolute http or https URL.
	ErrInvalidWebhookURL = errors.New("invalid webhook url")

	// ErrNotRunning is returned by operations that need the delivery
	// pipeline before Start or after Stop.
	ErrNotRunning = errors.New("webhook service not running")
)

// Service fans application events out to subscribed webhook endpoints.
// It owns the in-memory delivery queue, the worker that performs HTTP
// attempts, and the scheduler that re-enqueues due retries from storage.
// Create with New; the zero value is not usable.
type Service struct {
	storage Storage
	cfg     Config
	log     *slog.Logger
	sender  *webhook.Sender
	backoff webhook.BackoffStrategy
	source  *events.Broadcaster

	tasks   chan Task
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// ServiceOption configures the Service during construction.
type ServiceOption func(*Service)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) ServiceOption {
	return func(s *Service) { s.cfg = cfg }
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithSender replaces the HTTP sender. Useful for tests.
func WithSender(sender *webhook.Sender) ServiceOption {
	return func(s *Service) {
		if sender != nil {
			s.sender = sender
		}
	}
}

// WithBackoff replaces the retry backoff strategy.
func WithBackoff(strategy webhook.BackoffStrategy) ServiceOption {
	return func(s *Service) {
		if strategy != nil {
			s.backoff = strategy
		}
	}
}

// WithEventSource attaches the broadcaster the service subscribes to on
// Start. Without a source the service only delivers test events and
// scheduled retries.
func WithEventSource(source *events.Broadcaster) ServiceOption {
	return func(s *Service) { s.source = source }
}

// New creates a webhook delivery service backed by the given storage.
func New(storage Storage, opts ...ServiceOption) (*Service, error) {
	if storage == nil {
		return nil, errors.New("webhooks: storage is required")
	}

	s := &Service{
		storage: storage,
		cfg:     DefaultConfig(),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sender == nil {
		s.sender = webhook.NewSender(webhook.WithTimeout(s.cfg.RequestTimeout))
	}
	if s.backoff == nil {
		s.backoff = webhook.ExponentialBackoff{
			InitialDelay: s.cfg.InitialRetryDelay,
			MaxDelay:     s.cfg.MaxRetryDelay,
		}
	}
	return s, nil
}

// Start launches the delivery pipeline: the queue worker, the retry
// scheduler, and, when an event source is attached, the event listener.
// It returns immediately; use Stop or Run for lifecycle control.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("webhooks: service already started")
	}
	s.running = true
	s.tasks = make(chan Task, s.cfg.QueueSize)
	s.done = make(chan struct{})

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.runWorker(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.runScheduler(ctx)
	}()

	if s.source != nil {
		sub := s.source.Subscribe(ctx)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer sub.Close() //nolint:errcheck
			s.runListener(ctx, sub)
		}()
	}

	s.log.InfoContext(ctx, "webhook service started",
		slog.Int("queue_size", s.cfg.QueueSize),
		slog.Int("max_retries", s.cfg.MaxRetries),
		slog.Duration("retry_interval", s.cfg.RetryInterval))
	return nil
}

// Stop shuts the pipeline down and waits for in-flight deliveries to
// finish. Queued tasks that have not produced a delivery row yet are
// dropped.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.done)
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("webhook service stopped")
}

// Run starts the service and blocks until ctx is cancelled, then stops
// it. Convenient with errgroup-style supervisors.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return ctx.Err()
}

// enqueue hands a task to the worker, blocking while the queue is full.
func (s *Service) enqueue(ctx context.Context, task Task) error {
	s.mu.Lock()
	tasks, done, running := s.tasks, s.done, s.running
	s.mu.Unlock()
	if !running {
		return ErrQueueClosed
	}

	select {
	case tasks <- task:
		return nil
	case <-done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RegisterWebhook validates and persists a new webhook subscription,
// generating its signing secret. Headers are sanitized; protected keys
// are silently dropped.
func (s *Service) RegisterWebhook(ctx context.Context, name, rawURL string, eventTypes []string, headers map[string]string) (*Webhook, error) {
	if err := validateWebhookURL(rawURL); err != nil {
		return nil, err
	}
	for _, et := range eventTypes {
		if !events.ValidWebhookType(et) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidEventType, et)
		}
	}

	w := &Webhook{
		Name:    name,
		URL:     rawURL,
		Secret:  signature.GenerateSecret(),
		Events:  eventTypes,
		Headers: webhook.SanitizeHeaders(headers),
		Enabled: true,
	}
	if err := s.storage.CreateWebhook(ctx, w); err != nil {
		return nil, fmt.Errorf("create webhook: %w", err)
	}

	s.log.InfoContext(ctx, "webhook registered",
		slog.String("webhook", w.UUID.String()),
		slog.String("url", w.URL),
		slog.Int("events", len(w.Events)))
	return w, nil
}

// Webhook returns one webhook by its public UUID.
func (s *Service) Webhook(ctx context.Context, id string) (*Webhook, error) {
	return s.storage.GetWebhookByUUID(ctx, id)
}

// Webhooks returns all registered webhooks, newest first.
func (s *Service) Webhooks(ctx context.Context) ([]*Webhook, error) {
	return s.storage.ListWebhooks(ctx)
}

// Enable re-enables a webhook and resets its failure counter.
func (s *Service) Enable(ctx context.Context, id string) error {
	w, err := s.storage.GetWebhookByUUID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.storage.EnableWebhook(ctx, w.ID); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "webhook enabled", slog.String("webhook", id))
	return nil
}

// Disable turns a webhook off with an operator-supplied reason.
func (s *Service) Disable(ctx context.Context, id, reason string) error {
	w, err := s.storage.GetWebhookByUUID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.storage.DisableWebhook(ctx, w.ID, reason); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "webhook disabled",
		slog.String("webhook", id),
		slog.String("reason", reason))
	return nil
}

// Deliveries returns a webhook's delivery history page, newest first.
func (s *Service) Deliveries(ctx context.Context, id string, limit, offset int) ([]*Delivery, error) {
	w, err := s.storage.GetWebhookByUUID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.storage.ListDeliveries(ctx, w.ID, limit, offset)
}

// PurgeDeliveries deletes delivery rows older than the retention window
// and returns how many were removed.
func (s *Service) PurgeDeliveries(ctx context.Context, retention time.Duration) (int64, error) {
	deleted, err := s.storage.DeleteDeliveriesBefore(ctx, time.Now().UTC().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("purge deliveries: %w", err)
	}
	if deleted > 0 {
		s.log.InfoContext(ctx, "purged webhook deliveries", slog.Int64("deleted", deleted))
	}
	return deleted, nil
}

// SendTestEvent enqueues a synthetic delivery so operators can verify an
// endpoint. It bypasses the subscription filter and works on disabled
// webhooks.
func (s *Service) SendTestEvent(ctx context.Context, id string) error {
	w, err := s.storage.GetWebhookByUUID(ctx, id)
	if err != nil {
		return err
	}

	env := NewEnvelope(EventTypeTest, map[string]any{
		"message":      "This is a test webhook delivery",
		"webhook_id":   w.UUID,
		"webhook_name": w.Name,
	})
	task := Task{
		WebhookID: w.ID,
		URL:       w.URL,
		Secret:    w.Secret,
		Headers:   w.Headers,
		Envelope:  env,
		Attempt:   1,
	}
	if err := s.enqueue(ctx, task); err != nil {
		if errors.Is(err, ErrQueueClosed) {
			return ErrNotRunning
		}
		return err
	}

	s.log.InfoContext(ctx, "test event enqueued", slog.String("webhook", id))
	return nil
}

func validateWebhookURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidWebhookURL, rawURL)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s", ErrInvalidWebhookURL, rawURL)
	}
	return nil
}
