package webhooks

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements Storage in memory. Used by tests and local
// development; production uses modules/webhooks/pgstore.
type MemoryStorage struct {
	mu             sync.RWMutex
	webhooks       map[int64]*Webhook
	deliveries     map[int64]*Delivery
	nextWebhookID  int64
	nextDeliveryID int64
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		webhooks:   make(map[int64]*Webhook),
		deliveries: make(map[int64]*Delivery),
	}
}

func (ms *MemoryStorage) CreateWebhook(ctx context.Context, w *Webhook) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if w.UUID == uuid.Nil {
		w.UUID = uuid.Must(uuid.NewV7())
	} else {
		for _, existing := range ms.webhooks {
			if existing.UUID == w.UUID {
				return ErrWebhookExists
			}
		}
	}
	ms.nextWebhookID++
	w.ID = ms.nextWebhookID
	w.CreatedAt = time.Now().UTC()
	w.UpdatedAt = w.CreatedAt

	ms.webhooks[w.ID] = copyWebhook(w)
	return nil
}

func (ms *MemoryStorage) GetWebhookByID(ctx context.Context, id int64) (*Webhook, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	w, ok := ms.webhooks[id]
	if !ok {
		return nil, ErrWebhookNotFound
	}
	return copyWebhook(w), nil
}

func (ms *MemoryStorage) GetWebhookByUUID(ctx context.Context, id string) (*Webhook, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	for _, w := range ms.webhooks {
		if w.UUID.String() == id {
			return copyWebhook(w), nil
		}
	}
	return nil, ErrWebhookNotFound
}

func (ms *MemoryStorage) ListWebhooks(ctx context.Context) ([]*Webhook, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	out := make([]*Webhook, 0, len(ms.webhooks))
	for _, w := range ms.webhooks {
		out = append(out, copyWebhook(w))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (ms *MemoryStorage) GetWebhooksForEvent(ctx context.Context, eventType string) ([]*Webhook, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var out []*Webhook
	for _, w := range ms.webhooks {
		if w.Enabled && w.SubscribedTo(eventType) {
			out = append(out, copyWebhook(w))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (ms *MemoryStorage) RecordWebhookSuccess(ctx context.Context, id int64, at time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	w, ok := ms.webhooks[id]
	if !ok {
		return ErrWebhookNotFound
	}
	w.LastTriggeredAt = &at
	w.FailureCount = 0
	w.DisabledReason = nil
	w.UpdatedAt = time.Now().UTC()
	return nil
}

func (ms *MemoryStorage) IncrementWebhookFailures(ctx context.Context, id int64) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	w, ok := ms.webhooks[id]
	if !ok {
		return 0, ErrWebhookNotFound
	}
	w.FailureCount++
	w.UpdatedAt = time.Now().UTC()
	return w.FailureCount, nil
}

func (ms *MemoryStorage) DisableWebhook(ctx context.Context, id int64, reason string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	w, ok := ms.webhooks[id]
	if !ok {
		return ErrWebhookNotFound
	}
	w.Enabled = false
	w.DisabledReason = &reason
	w.UpdatedAt = time.Now().UTC()
	return nil
}

func (ms *MemoryStorage) EnableWebhook(ctx context.Context, id int64) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	w, ok := ms.webhooks[id]
	if !ok {
		return ErrWebhookNotFound
	}
	w.Enabled = true
	w.FailureCount = 0
	w.DisabledReason = nil
	w.UpdatedAt = time.Now().UTC()
	return nil
}

func (ms *MemoryStorage) CreateDelivery(ctx context.Context, d *Delivery) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.nextDeliveryID++
	d.ID = ms.nextDeliveryID
	d.CreatedAt = time.Now().UTC()

	ms.deliveries[d.ID] = copyDelivery(d)
	return nil
}

func (ms *MemoryStorage) MarkDeliverySucceeded(ctx context.Context, id int64, outcome DeliveryOutcome, at time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	d, ok := ms.deliveries[id]
	if !ok {
		return ErrDeliveryNotFound
	}
	applyOutcome(d, outcome)
	d.DeliveredAt = &at
	d.NextRetryAt = nil
	return nil
}

func (ms *MemoryStorage) MarkDeliveryFailed(ctx context.Context, id int64, outcome DeliveryOutcome, nextRetryAt *time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	d, ok := ms.deliveries[id]
	if !ok {
		return ErrDeliveryNotFound
	}
	applyOutcome(d, outcome)
	d.DeliveredAt = nil
	d.NextRetryAt = nextRetryAt
	return nil
}

func (ms *MemoryStorage) ClearDeliveryRetry(ctx context.Context, id int64) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	d, ok := ms.deliveries[id]
	if !ok {
		return ErrDeliveryNotFound
	}
	d.NextRetryAt = nil
	return nil
}

func (ms *MemoryStorage) ListDeliveries(ctx context.Context, webhookID int64, limit, offset int) ([]*Delivery, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var all []*Delivery
	for _, d := range ms.deliveries {
		if d.WebhookID == webhookID {
			all = append(all, copyDelivery(d))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (ms *MemoryStorage) GetPendingRetries(ctx context.Context, now time.Time, limit int) ([]*Delivery, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var out []*Delivery
	for _, d := range ms.deliveries {
		if d.DeliveredAt != nil || d.NextRetryAt == nil {
			continue
		}
		if d.NextRetryAt.After(now) {
			continue
		}
		out = append(out, copyDelivery(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextRetryAt.Before(*out[j].NextRetryAt) })

	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (ms *MemoryStorage) DeleteDeliveriesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var deleted int64
	for id, d := range ms.deliveries {
		if d.CreatedAt.Before(cutoff) {
			delete(ms.deliveries, id)
			deleted++
		}
	}
	return deleted, nil
}

// Copies prevent callers from mutating stored state through returned
// pointers.

func copyWebhook(w *Webhook) *Webhook {
	c := *w
	c.Events = slices.Clone(w.Events)
	c.Headers = maps.Clone(w.Headers)
	if w.DisabledReason != nil {
		r := *w.DisabledReason
		c.DisabledReason = &r
	}
	if w.LastTriggeredAt != nil {
		t := *w.LastTriggeredAt
		c.LastTriggeredAt = &t
	}
	return &c
}

func copyDelivery(d *Delivery) *Delivery {
	c := *d
	c.Payload = slices.Clone(d.Payload)
	c.RequestHeaders = maps.Clone(d.RequestHeaders)
	if d.ResponseBody != nil {
		b := *d.ResponseBody
		c.ResponseBody = &b
	}
	if d.DurationMS != nil {
		ms := *d.DurationMS
		c.DurationMS = &ms
	}
	if d.ErrorMessage != nil {
		m := *d.ErrorMessage
		c.ErrorMessage = &m
	}
	if d.DeliveredAt != nil {
		t := *d.DeliveredAt
		c.DeliveredAt = &t
	}
	if d.NextRetryAt != nil {
		t := *d.NextRetryAt
		c.NextRetryAt = &t
	}
	return &c
}

func applyOutcome(d *Delivery, outcome DeliveryOutcome) {
	d.ResponseStatus = outcome.Status
	if outcome.Body != "" {
		b := outcome.Body
		d.ResponseBody = &b
	}
	durationMS := outcome.DurationMS
	d.DurationMS = &durationMS
	if outcome.ErrorMessage != "" {
		m := outcome.ErrorMessage
		d.ErrorMessage = &m
	}
}
