package webhooks

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"
)

// EventTypeTest is the event type of ad-hoc test deliveries. It is not
// part of the subscribable catalog; test deliveries bypass subscription
// matching.
const EventTypeTest = "webhook.test"

// Webhook is a registered external subscriber. Created and managed by the
// management surface; this subsystem only reads configuration and updates
// health fields (failure count, enabled, last triggered).
type Webhook struct {
	ID              int64
	UUID            uuid.UUID
	Name            string
	URL             string
	Secret          string
	Events          []string
	Headers         map[string]string
	Enabled         bool
	FailureCount    int
	DisabledReason  *string
	LastTriggeredAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SubscribedTo reports whether the webhook subscribes to the event type.
func (w *Webhook) SubscribedTo(eventType string) bool {
	return slices.Contains(w.Events, eventType)
}

// Envelope is the wire body POSTed to a webhook endpoint. Data is the
// serialized domain event and is opaque to this subsystem.
type Envelope struct {
	ID        uuid.UUID `json:"id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// NewEnvelope builds an envelope for one logical delivery batch. The same
// envelope (same ID, same timestamp) is shared by every webhook matching
// the event.
func NewEnvelope(eventType string, data any) Envelope {
	return Envelope{
		ID:        uuid.Must(uuid.NewV7()),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// Task is one queued delivery attempt for one webhook.
type Task struct {
	WebhookID int64
	URL       string
	Secret    string
	Headers   map[string]string
	Envelope  Envelope
	// Body holds the exact envelope bytes for retry attempts, reused
	// verbatim from the persisted first-attempt payload. Nil on attempt 1;
	// the worker serializes the envelope then.
	Body    []byte
	Attempt int
}

// Delivery is one persisted delivery attempt. Exactly one of DeliveredAt
// and NextRetryAt is set after an attempt completes, unless the chain is
// exhausted, in which case both stay nil.
type Delivery struct {
	ID             int64
	WebhookID      int64
	EventType      string
	Payload        json.RawMessage
	RequestHeaders map[string]string
	AttemptNumber  int
	ResponseStatus int
	ResponseBody   *string
	DurationMS     *int
	ErrorMessage   *string
	DeliveredAt    *time.Time
	NextRetryAt    *time.Time
	CreatedAt      time.Time
}

// DeliveryOutcome carries the observable result of one HTTP attempt into
// Storage. Status is 0 when no response was obtained.
type DeliveryOutcome struct {
	Status       int
	Body         string
	DurationMS   int
	ErrorMessage string
}
