package webhooks

import (
	"context"
	"log/slog"

	"github.com/opsdesk/webhooks/pkg/events"
)

// runListener consumes the broadcaster subscription and turns each
// exposed event into first-attempt tasks for subscribed webhooks.
func (s *Service) runListener(ctx context.Context, sub *events.Subscription) {
	var seenDrops uint64
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case e, ok := <-sub.Events():
			if !ok {
				return
			}
			s.noteLag(ctx, sub, &seenDrops)
			s.processEvent(ctx, e)
		}
	}
}

// noteLag warns when the subscription dropped events since the last
// check. Ingestion is best-effort; the running counter is the only
// signal that webhook consumers missed a span of events.
func (s *Service) noteLag(ctx context.Context, sub *events.Subscription, seen *uint64) {
	dropped := sub.Dropped()
	if dropped <= *seen {
		return
	}
	s.log.WarnContext(ctx, "webhook event stream lagged",
		slog.Uint64("dropped", dropped-*seen),
		slog.Uint64("dropped_total", dropped))
	*seen = dropped
}

// processEvent fans one event out to every enabled webhook subscribed
// to its type. Internal event kinds have no webhook type and are
// dropped here. All fan-out tasks share one envelope, so every endpoint
// receives the same event id and timestamp.
func (s *Service) processEvent(ctx context.Context, e events.Event) {
	eventType, ok := e.Kind.WebhookType()
	if !ok {
		return
	}

	hooks, err := s.storage.GetWebhooksForEvent(ctx, eventType)
	if err != nil {
		s.log.ErrorContext(ctx, "list webhooks for event",
			slog.String("event_type", eventType),
			slog.Any("error", err))
		return
	}
	if len(hooks) == 0 {
		return
	}

	env := NewEnvelope(eventType, e.Data)
	for _, w := range hooks {
		task := Task{
			WebhookID: w.ID,
			URL:       w.URL,
			Secret:    w.Secret,
			Headers:   w.Headers,
			Envelope:  env,
			Attempt:   1,
		}
		if err := s.enqueue(ctx, task); err != nil {
			s.log.ErrorContext(ctx, "enqueue webhook task",
				slog.String("webhook", w.UUID.String()),
				slog.String("event_type", eventType),
				slog.Any("error", err))
			return
		}
	}
}
