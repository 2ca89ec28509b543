package pgstore_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/webhooks/modules/webhooks"
	"github.com/opsdesk/webhooks/modules/webhooks/pgstore"
	"github.com/opsdesk/webhooks/pkg/pg"
)

// setupStorage connects to the database named by TEST_DATABASE_URL,
// applies migrations, and truncates the webhook tables. Tests are
// skipped when the variable is unset.
func setupStorage(t *testing.T) *pgstore.Storage {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pg.Connect(ctx, pg.Config{
		ConnectionString:  dsn,
		MaxOpenConns:      4,
		MaxIdleConns:      1,
		HealthCheckPeriod: time.Minute,
		MaxConnIdleTime:   10 * time.Minute,
		MaxConnLifetime:   30 * time.Minute,
		RetryAttempts:     1,
		RetryInterval:     time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, pg.Healthcheck(pool)(ctx))

	require.NoError(t, pgstore.Migrate(ctx, pool, slog.New(slog.DiscardHandler)))
	_, err = pool.Exec(ctx, "TRUNCATE webhooks, webhook_deliveries RESTART IDENTITY CASCADE")
	require.NoError(t, err)

	return pgstore.New(pool)
}

func createHook(t *testing.T, st *pgstore.Storage, events ...string) *webhooks.Webhook {
	t.Helper()
	w := &webhooks.Webhook{
		Name:    "pg hook",
		URL:     "https://example.com/hook",
		Secret:  "whsec_0000000000000000000000000000000000000000000000000000000000000000",
		Events:  events,
		Headers: map[string]string{"X-Custom": "v"},
		Enabled: true,
	}
	require.NoError(t, st.CreateWebhook(context.Background(), w))
	return w
}

func TestPostgresWebhookRoundTrip(t *testing.T) {
	st := setupStorage(t)
	ctx := context.Background()

	w := createHook(t, st, "ticket.created", "ticket.updated")
	require.NotZero(t, w.ID)
	require.False(t, w.CreatedAt.IsZero())

	got, err := st.GetWebhookByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, w.Name, got.Name)
	assert.Equal(t, []string{"ticket.created", "ticket.updated"}, got.Events)
	assert.Equal(t, map[string]string{"X-Custom": "v"}, got.Headers)
	assert.True(t, got.Enabled)
	assert.Nil(t, got.DisabledReason)
	assert.Nil(t, got.LastTriggeredAt)

	byUUID, err := st.GetWebhookByUUID(ctx, w.UUID.String())
	require.NoError(t, err)
	assert.Equal(t, w.ID, byUUID.ID)

	_, err = st.GetWebhookByID(ctx, 9999)
	require.ErrorIs(t, err, webhooks.ErrWebhookNotFound)
	_, err = st.GetWebhookByUUID(ctx, "not-a-uuid")
	require.ErrorIs(t, err, webhooks.ErrWebhookNotFound)
}

func TestPostgresConstraintViolations(t *testing.T) {
	st := setupStorage(t)
	ctx := context.Background()

	w := createHook(t, st, "ticket.created")

	dup := &webhooks.Webhook{UUID: w.UUID, Name: "dup", URL: "https://example.com", Secret: "whsec_x", Enabled: true}
	err := st.CreateWebhook(ctx, dup)
	require.ErrorIs(t, err, webhooks.ErrWebhookExists)

	orphan := &webhooks.Delivery{
		WebhookID:     999999,
		EventType:     "ticket.created",
		Payload:       json.RawMessage(`{}`),
		AttemptNumber: 1,
	}
	err = st.CreateDelivery(ctx, orphan)
	require.ErrorIs(t, err, webhooks.ErrWebhookNotFound)
}

func TestPostgresGetWebhooksForEvent(t *testing.T) {
	st := setupStorage(t)
	ctx := context.Background()

	a := createHook(t, st, "ticket.created")
	createHook(t, st, "ticket.deleted")
	disabled := createHook(t, st, "ticket.created")
	require.NoError(t, st.DisableWebhook(ctx, disabled.ID, "manual"))

	hooks, err := st.GetWebhooksForEvent(ctx, "ticket.created")
	require.NoError(t, err)
	require.Len(t, hooks, 1)
	assert.Equal(t, a.ID, hooks[0].ID)
}

func TestPostgresFailureCounterIsAtomic(t *testing.T) {
	st := setupStorage(t)
	ctx := context.Background()
	w := createHook(t, st, "ticket.created")

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.IncrementWebhookFailures(ctx, w.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := st.GetWebhookByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, workers, got.FailureCount)

	require.NoError(t, st.RecordWebhookSuccess(ctx, w.ID, time.Now().UTC()))
	got, err = st.GetWebhookByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Zero(t, got.FailureCount)
	require.NotNil(t, got.LastTriggeredAt)
}

func TestPostgresDeliveryChain(t *testing.T) {
	st := setupStorage(t)
	ctx := context.Background()
	w := createHook(t, st, "ticket.created")

	payload := json.RawMessage(`{"id":"0","event_type":"ticket.created","data":{"k":"v"}}`)
	d := &webhooks.Delivery{
		WebhookID:      w.ID,
		EventType:      "ticket.created",
		Payload:        payload,
		RequestHeaders: map[string]string{"X-Opsdesk-Signature": "sha256=***"},
		AttemptNumber:  1,
	}
	require.NoError(t, st.CreateDelivery(ctx, d))
	require.NotZero(t, d.ID)

	retryAt := time.Now().UTC().Add(-time.Minute).Truncate(time.Millisecond)
	require.NoError(t, st.MarkDeliveryFailed(ctx, d.ID, webhooks.DeliveryOutcome{
		Status: 502, Body: "bad gateway", DurationMS: 40, ErrorMessage: "webhook returned HTTP 502",
	}, &retryAt))

	due, err := st.GetPendingRetries(ctx, time.Now().UTC(), 100)
	require.NoError(t, err)
	require.Len(t, due, 1)
	got := due[0]
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, 502, got.ResponseStatus)
	require.NotNil(t, got.ResponseBody)
	assert.Equal(t, "bad gateway", *got.ResponseBody)
	require.NotNil(t, got.DurationMS)
	assert.Equal(t, 40, *got.DurationMS)
	require.NotNil(t, got.ErrorMessage)
	assert.Nil(t, got.DeliveredAt)
	assert.Equal(t, payload, got.Payload, "payload bytes must round-trip untouched for verbatim retries")

	require.NoError(t, st.ClearDeliveryRetry(ctx, d.ID))
	due, err = st.GetPendingRetries(ctx, time.Now().UTC(), 100)
	require.NoError(t, err)
	assert.Empty(t, due)

	d2 := &webhooks.Delivery{WebhookID: w.ID, EventType: "ticket.created", Payload: payload, AttemptNumber: 2}
	require.NoError(t, st.CreateDelivery(ctx, d2))
	require.NoError(t, st.MarkDeliverySucceeded(ctx, d2.ID, webhooks.DeliveryOutcome{Status: 200, DurationMS: 25}, time.Now().UTC()))

	rows, err := st.ListDeliveries(ctx, w.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, d2.ID, rows[0].ID, "newest first")
	require.NotNil(t, rows[0].DeliveredAt)
	assert.Nil(t, rows[0].NextRetryAt)
	assert.Nil(t, rows[0].ErrorMessage)
}

func TestPostgresListDeliveriesPagination(t *testing.T) {
	st := setupStorage(t)
	ctx := context.Background()
	w := createHook(t, st, "ticket.created")

	for i := 0; i < 5; i++ {
		d := &webhooks.Delivery{WebhookID: w.ID, EventType: "ticket.created", Payload: json.RawMessage(`{}`), AttemptNumber: 1}
		require.NoError(t, st.CreateDelivery(ctx, d))
	}

	page, err := st.ListDeliveries(ctx, w.ID, 2, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	rest, err := st.ListDeliveries(ctx, w.ID, 10, 4)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func TestPostgresDeleteDeliveriesBefore(t *testing.T) {
	st := setupStorage(t)
	ctx := context.Background()
	w := createHook(t, st, "ticket.created")

	d := &webhooks.Delivery{WebhookID: w.ID, EventType: "ticket.created", Payload: json.RawMessage(`{}`), AttemptNumber: 1}
	require.NoError(t, st.CreateDelivery(ctx, d))

	deleted, err := st.DeleteDeliveriesBefore(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, deleted)

	deleted, err = st.DeleteDeliveriesBefore(ctx, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
}

func TestPostgresEnableResetsHealth(t *testing.T) {
	st := setupStorage(t)
	ctx := context.Background()
	w := createHook(t, st, "ticket.created")

	_, err := st.IncrementWebhookFailures(ctx, w.ID)
	require.NoError(t, err)
	require.NoError(t, st.DisableWebhook(ctx, w.ID, "Auto-disabled after 10 consecutive failures"))

	got, err := st.GetWebhookByID(ctx, w.ID)
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	require.NotNil(t, got.DisabledReason)

	require.NoError(t, st.EnableWebhook(ctx, w.ID))
	got, err = st.GetWebhookByID(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, got.Enabled)
	assert.Zero(t, got.FailureCount)
	assert.Nil(t, got.DisabledReason)
}
