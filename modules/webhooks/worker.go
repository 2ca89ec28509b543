package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/opsdesk/webhooks/pkg/webhook"
)

// storedBodyLimit caps the response body persisted per delivery row.
// The sender already bounds what it reads off the wire; this bounds
// what lands in the database.
const storedBodyLimit = 4 << 10

// runWorker drains the task queue until shutdown. On shutdown it
// finishes tasks already buffered without blocking for new ones.
func (s *Service) runWorker(ctx context.Context) {
	for {
		select {
		case <-s.done:
			for {
				select {
				case task := <-s.tasks:
					s.deliver(ctx, task)
				default:
					return
				}
			}
		case <-ctx.Done():
			return
		case task := <-s.tasks:
			s.deliver(ctx, task)
		}
	}
}

// deliver performs one HTTP attempt for one webhook and records its
// outcome. The delivery row is created before the request so history
// shows attempts that crashed mid-flight.
func (s *Service) deliver(ctx context.Context, task Task) {
	body := task.Body
	if body == nil {
		var err error
		body, err = json.Marshal(task.Envelope)
		if err != nil {
			// No delivery row: there is nothing retryable to record.
			s.log.ErrorContext(ctx, "serialize webhook payload",
				slog.Int64("webhook_id", task.WebhookID),
				slog.String("event_type", task.Envelope.EventType),
				slog.Any("error", err))
			return
		}
	}

	headers := webhook.SanitizeHeaders(task.Headers)

	d := &Delivery{
		WebhookID:      task.WebhookID,
		EventType:      task.Envelope.EventType,
		Payload:        body,
		RequestHeaders: storedRequestHeaders(headers, task.Envelope),
		AttemptNumber:  task.Attempt,
	}
	if err := s.storage.CreateDelivery(ctx, d); err != nil {
		s.log.ErrorContext(ctx, "create webhook delivery",
			slog.Int64("webhook_id", task.WebhookID),
			slog.String("event_type", task.Envelope.EventType),
			slog.Any("error", err))
		return
	}

	res := s.sender.Deliver(ctx, webhook.Request{
		URL:        task.URL,
		Body:       body,
		Secret:     task.Secret,
		EventType:  task.Envelope.EventType,
		DeliveryID: task.Envelope.ID.String(),
		Headers:    headers,
	})

	// Endpoints may respond with arbitrary bytes; the stored copy must be
	// valid UTF-8 or the TEXT column write fails and the outcome (with
	// its next_retry_at) is lost.
	outcome := DeliveryOutcome{
		Status:     res.StatusCode,
		Body:       truncate(strings.ToValidUTF8(res.Body, "�"), storedBodyLimit),
		DurationMS: int(res.Duration.Milliseconds()),
	}
	if res.Err != nil {
		outcome.ErrorMessage = res.Err.Error()
	}

	if res.Success() {
		now := time.Now().UTC()
		if err := s.storage.MarkDeliverySucceeded(ctx, d.ID, outcome, now); err != nil {
			s.log.ErrorContext(ctx, "mark delivery succeeded",
				slog.Int64("delivery_id", d.ID), slog.Any("error", err))
		}
		if err := s.storage.RecordWebhookSuccess(ctx, task.WebhookID, now); err != nil {
			s.log.ErrorContext(ctx, "record webhook success",
				slog.Int64("webhook_id", task.WebhookID), slog.Any("error", err))
		}
		s.log.InfoContext(ctx, "webhook delivered",
			slog.Int64("webhook_id", task.WebhookID),
			slog.String("event_type", task.Envelope.EventType),
			slog.Int("attempt", task.Attempt),
			slog.Int("status", res.StatusCode),
			slog.Duration("duration", res.Duration))
		return
	}

	var nextRetryAt *time.Time
	if task.Attempt < s.cfg.MaxRetries {
		at := time.Now().UTC().Add(s.backoff.NextDelay(task.Attempt))
		nextRetryAt = &at
	}
	if err := s.storage.MarkDeliveryFailed(ctx, d.ID, outcome, nextRetryAt); err != nil {
		s.log.ErrorContext(ctx, "mark delivery failed",
			slog.Int64("delivery_id", d.ID), slog.Any("error", err))
	}

	s.log.WarnContext(ctx, "webhook delivery failed",
		slog.Int64("webhook_id", task.WebhookID),
		slog.String("event_type", task.Envelope.EventType),
		slog.Int("attempt", task.Attempt),
		slog.Int("status", res.StatusCode),
		slog.Bool("will_retry", nextRetryAt != nil),
		slog.Any("error", res.Err))

	count, err := s.storage.IncrementWebhookFailures(ctx, task.WebhookID)
	if err != nil {
		s.log.ErrorContext(ctx, "increment webhook failures",
			slog.Int64("webhook_id", task.WebhookID), slog.Any("error", err))
		return
	}
	if count >= s.cfg.AutoDisableThreshold {
		reason := fmt.Sprintf("Auto-disabled after %d consecutive failures", count)
		if err := s.storage.DisableWebhook(ctx, task.WebhookID, reason); err != nil {
			s.log.ErrorContext(ctx, "disable webhook",
				slog.Int64("webhook_id", task.WebhookID), slog.Any("error", err))
			return
		}
		s.log.WarnContext(ctx, "webhook auto-disabled",
			slog.Int64("webhook_id", task.WebhookID),
			slog.Int("failure_count", count))
	}
}

// storedRequestHeaders reproduces the headers sent on the wire for the
// delivery history, with the signature value redacted.
func storedRequestHeaders(custom map[string]string, env Envelope) map[string]string {
	out := make(map[string]string, len(custom)+5)
	for k, v := range custom {
		out[k] = v
	}
	out["Content-Type"] = "application/json"
	out["User-Agent"] = webhook.UserAgent
	out[webhook.HeaderEvent] = env.EventType
	out[webhook.HeaderDelivery] = env.ID.String()
	out[webhook.HeaderSignature] = "sha256=***"
	return out
}

// truncate cuts s to at most limit bytes, backing up to the previous
// rune boundary so a valid string never becomes invalid.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
