package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

// runScheduler polls storage for due retries on a fixed interval.
func (s *Service) runScheduler(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.processRetries(ctx)
		}
	}
}

// processRetries re-enqueues due retry chains. Each picked-up row has
// its next_retry_at cleared so the follow-up attempt owns the chain;
// chains whose webhook is gone or disabled are abandoned the same way.
func (s *Service) processRetries(ctx context.Context) {
	due, err := s.storage.GetPendingRetries(ctx, time.Now().UTC(), s.cfg.RetryBatchSize)
	if err != nil {
		s.log.ErrorContext(ctx, "list pending webhook retries", slog.Any("error", err))
		return
	}
	if len(due) == 0 {
		return
	}

	s.log.DebugContext(ctx, "processing webhook retries", slog.Int("count", len(due)))
	for _, d := range due {
		s.processRetry(ctx, d)
	}
}

func (s *Service) processRetry(ctx context.Context, d *Delivery) {
	w, err := s.storage.GetWebhookByID(ctx, d.WebhookID)
	if errors.Is(err, ErrWebhookNotFound) {
		s.abandonRetry(ctx, d, "webhook deleted")
		return
	}
	if err != nil {
		s.log.ErrorContext(ctx, "load webhook for retry",
			slog.Int64("delivery_id", d.ID), slog.Any("error", err))
		return
	}
	if !w.Enabled {
		s.abandonRetry(ctx, d, "webhook disabled")
		return
	}

	// The stored payload is the exact signed body of the first attempt;
	// unmarshalling recovers the envelope id for the delivery header
	// while the bytes themselves are resent untouched.
	var env Envelope
	if err := json.Unmarshal(d.Payload, &env); err != nil {
		s.log.ErrorContext(ctx, "decode stored webhook payload",
			slog.Int64("delivery_id", d.ID), slog.Any("error", err))
		s.abandonRetry(ctx, d, "payload undecodable")
		return
	}

	task := Task{
		WebhookID: w.ID,
		URL:       w.URL,
		Secret:    w.Secret,
		Headers:   w.Headers,
		Envelope:  env,
		Body:      d.Payload,
		Attempt:   d.AttemptNumber + 1,
	}

	if err := s.storage.ClearDeliveryRetry(ctx, d.ID); err != nil {
		s.log.ErrorContext(ctx, "clear delivery retry",
			slog.Int64("delivery_id", d.ID), slog.Any("error", err))
		return
	}
	if err := s.enqueue(ctx, task); err != nil {
		s.log.ErrorContext(ctx, "enqueue webhook retry",
			slog.Int64("delivery_id", d.ID), slog.Any("error", err))
		return
	}

	s.log.InfoContext(ctx, "webhook retry enqueued",
		slog.Int64("webhook_id", w.ID),
		slog.String("event_type", d.EventType),
		slog.Int("attempt", task.Attempt))
}

func (s *Service) abandonRetry(ctx context.Context, d *Delivery, why string) {
	if err := s.storage.ClearDeliveryRetry(ctx, d.ID); err != nil {
		s.log.ErrorContext(ctx, "abandon webhook retry",
			slog.Int64("delivery_id", d.ID), slog.Any("error", err))
		return
	}
	s.log.InfoContext(ctx, "webhook retry abandoned",
		slog.Int64("delivery_id", d.ID),
		slog.Int64("webhook_id", d.WebhookID),
		slog.String("reason", why))
}
