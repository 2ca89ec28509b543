package webhooks

import (
	"context"
	"errors"
	"time"
)

// Storage errors. Implementations must return these identities (possibly
// wrapped) so callers can classify without knowing the backend.
var (
	ErrWebhookNotFound  = errors.New("webhook not found")
	ErrWebhookExists    = errors.New("webhook already exists")
	ErrDeliveryNotFound = errors.New("webhook delivery not found")
)

// Storage is the persistence collaborator for webhook configuration,
// health state and delivery history. Webhook update operations are split
// by purpose so implementations can use atomic statements; in particular
// IncrementWebhookFailures must be an atomic read-and-increment, never a
// read-modify-write, so delivery can be parallelized without lost
// updates.
type Storage interface {
	// CreateWebhook persists a new webhook and assigns ID, UUID and
	// CreatedAt in place. Returns ErrWebhookExists when the caller
	// pre-set a UUID that is already taken.
	CreateWebhook(ctx context.Context, w *Webhook) error

	// GetWebhookByID returns the webhook or ErrWebhookNotFound.
	GetWebhookByID(ctx context.Context, id int64) (*Webhook, error)

	// GetWebhookByUUID returns the webhook or ErrWebhookNotFound.
	GetWebhookByUUID(ctx context.Context, id string) (*Webhook, error)

	// ListWebhooks returns all webhooks, newest first.
	ListWebhooks(ctx context.Context) ([]*Webhook, error)

	// GetWebhooksForEvent returns enabled webhooks whose subscription set
	// contains exactly eventType.
	GetWebhooksForEvent(ctx context.Context, eventType string) ([]*Webhook, error)

	// RecordWebhookSuccess marks a successful delivery: sets
	// last_triggered_at, resets the failure counter and clears any
	// disabled reason. The enabled flag is left alone; re-enabling is an
	// explicit operator action.
	RecordWebhookSuccess(ctx context.Context, id int64, at time.Time) error

	// IncrementWebhookFailures atomically increments the consecutive
	// failure counter and returns the new value.
	IncrementWebhookFailures(ctx context.Context, id int64) (int, error)

	// DisableWebhook sets enabled=false with the given reason.
	DisableWebhook(ctx context.Context, id int64, reason string) error

	// EnableWebhook re-enables a webhook, resetting the failure counter
	// and clearing the disabled reason. Invoked by the management
	// surface; pending retries abandoned while disabled are not resumed.
	EnableWebhook(ctx context.Context, id int64) error

	// CreateDelivery persists a new delivery attempt row and assigns ID
	// and CreatedAt in place.
	CreateDelivery(ctx context.Context, d *Delivery) error

	// MarkDeliverySucceeded records a 2xx outcome: delivered_at is set
	// and next_retry_at stays null.
	MarkDeliverySucceeded(ctx context.Context, id int64, outcome DeliveryOutcome, at time.Time) error

	// MarkDeliveryFailed records a failed outcome. nextRetryAt schedules
	// the next attempt; nil marks the chain exhausted.
	MarkDeliveryFailed(ctx context.Context, id int64, outcome DeliveryOutcome, nextRetryAt *time.Time) error

	// ClearDeliveryRetry nulls next_retry_at without touching the
	// recorded outcome. Called when a due retry is handed to the queue
	// (the follow-up attempt gets its own row) and when a chain is
	// abandoned because its webhook was disabled or deleted.
	ClearDeliveryRetry(ctx context.Context, id int64) error

	// ListDeliveries returns delivery history for a webhook, newest
	// first.
	ListDeliveries(ctx context.Context, webhookID int64, limit, offset int) ([]*Delivery, error)

	// GetPendingRetries returns up to limit undelivered rows whose
	// next_retry_at has passed, ordered by next_retry_at ascending.
	GetPendingRetries(ctx context.Context, now time.Time, limit int) ([]*Delivery, error)

	// DeleteDeliveriesBefore removes delivery rows created before cutoff
	// and returns how many were deleted. Retention housekeeping only.
	DeleteDeliveriesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
