package webhooks

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/webhooks/pkg/events"
)

func TestProcessEventFansOutToSubscribers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := NewMemoryStorage()
	svc := newTestService(t, st)
	openQueue(t, svc, 16)

	a := newTestWebhook(t, st, "ticket.created", "ticket.updated")
	b := newTestWebhook(t, st, "ticket.created")
	newTestWebhook(t, st, "comment.added")

	svc.processEvent(ctx, events.Event{Kind: events.KindTicketCreated, Data: map[string]any{"ticket_id": 1}})

	require.Len(t, svc.tasks, 2)
	first := <-svc.tasks
	second := <-svc.tasks

	assert.ElementsMatch(t, []int64{a.ID, b.ID}, []int64{first.WebhookID, second.WebhookID})
	assert.Equal(t, first.Envelope.ID, second.Envelope.ID, "fan-out shares one envelope")
	assert.Equal(t, "ticket.created", first.Envelope.EventType)
	assert.Equal(t, 1, first.Attempt)
	assert.Nil(t, first.Body)
}

func TestProcessEventSkipsDisabledWebhooks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := NewMemoryStorage()
	svc := newTestService(t, st)
	openQueue(t, svc, 16)

	w := newTestWebhook(t, st, "ticket.created")
	require.NoError(t, st.DisableWebhook(ctx, w.ID, "manual"))

	svc.processEvent(ctx, events.Event{Kind: events.KindTicketCreated})
	assert.Empty(t, svc.tasks)
}

func TestProcessEventIgnoresInternalKinds(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := NewMemoryStorage()
	svc := newTestService(t, st)
	openQueue(t, svc, 16)

	// Subscribed to everything exposed; internal kinds still never fan out.
	newTestWebhook(t, st, events.AllWebhookTypes()...)

	svc.processEvent(ctx, events.Event{Kind: events.KindHeartbeat})
	svc.processEvent(ctx, events.Event{Kind: events.KindViewerCountChanged})
	svc.processEvent(ctx, events.Event{Kind: events.KindNotificationPushed})
	assert.Empty(t, svc.tasks)
}

func TestListenerLogsDroppedEvents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := NewMemoryStorage()

	var logs bytes.Buffer
	svc, err := New(st, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	require.NoError(t, err)

	b := events.NewBroadcaster(1)
	defer b.Close() //nolint:errcheck
	sub := b.Subscribe(ctx)

	// One event fits the buffer; the next two are dropped before the
	// listener gets a chance to read.
	for range 3 {
		b.Publish(events.Event{Kind: events.KindTicketCreated})
	}
	require.Equal(t, uint64(2), sub.Dropped())

	var seen uint64
	svc.noteLag(ctx, sub, &seen)
	assert.Contains(t, logs.String(), "webhook event stream lagged")
	assert.Contains(t, logs.String(), "dropped=2")
	assert.Equal(t, uint64(2), seen)

	// No new drops, no new warning.
	logs.Reset()
	svc.noteLag(ctx, sub, &seen)
	assert.Empty(t, logs.String())
}

func TestProcessEventNoSubscribers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := NewMemoryStorage()
	svc := newTestService(t, st)
	openQueue(t, svc, 16)

	svc.processEvent(ctx, events.Event{Kind: events.KindTicketCreated})
	assert.Empty(t, svc.tasks)
}
