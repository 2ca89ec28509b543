package pgstore

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsdesk/webhooks/modules/webhooks"
	"github.com/opsdesk/webhooks/pkg/pg"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies the webhook schema migrations to the connected
// database.
func Migrate(ctx context.Context, pool *pgxpool.Pool, log *slog.Logger) error {
	return pg.Migrate(ctx, pool, migrationsFS, "migrations", log)
}

// Storage implements webhooks.Storage on PostgreSQL.
type Storage struct {
	pool *pgxpool.Pool
}

var _ webhooks.Storage = (*Storage)(nil)

// New creates a PostgreSQL-backed webhook storage. The pool is owned by
// the caller.
func New(pool *pgxpool.Pool) *Storage {
	return &Storage{pool: pool}
}

const webhookColumns = `id, uuid, name, url, secret, events, headers, enabled,
	failure_count, disabled_reason, last_triggered_at, created_at, updated_at`

func scanWebhook(row pgx.Row) (*webhooks.Webhook, error) {
	var w webhooks.Webhook
	err := row.Scan(&w.ID, &w.UUID, &w.Name, &w.URL, &w.Secret, &w.Events, &w.Headers,
		&w.Enabled, &w.FailureCount, &w.DisabledReason, &w.LastTriggeredAt,
		&w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, webhooks.ErrWebhookNotFound
		}
		return nil, fmt.Errorf("scan webhook: %w", err)
	}
	return &w, nil
}

func collectWebhooks(rows pgx.Rows) ([]*webhooks.Webhook, error) {
	defer rows.Close()
	var out []*webhooks.Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhooks: %w", err)
	}
	return out, nil
}

func (s *Storage) CreateWebhook(ctx context.Context, w *webhooks.Webhook) error {
	if w.UUID == uuid.Nil {
		w.UUID = uuid.Must(uuid.NewV7())
	}
	events := w.Events
	if events == nil {
		events = []string{}
	}
	headers := w.Headers
	if headers == nil {
		headers = map[string]string{}
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO webhooks (uuid, name, url, secret, events, headers, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		w.UUID, w.Name, w.URL, w.Secret, events, headers, w.Enabled,
	).Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return webhooks.ErrWebhookExists
		}
		return fmt.Errorf("insert webhook: %w", err)
	}
	return nil
}

func (s *Storage) GetWebhookByID(ctx context.Context, id int64) (*webhooks.Webhook, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+webhookColumns+` FROM webhooks WHERE id = $1`, id)
	return scanWebhook(row)
}

func (s *Storage) GetWebhookByUUID(ctx context.Context, id string) (*webhooks.Webhook, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, webhooks.ErrWebhookNotFound
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+webhookColumns+` FROM webhooks WHERE uuid = $1`, parsed)
	return scanWebhook(row)
}

func (s *Storage) ListWebhooks(ctx context.Context) ([]*webhooks.Webhook, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+webhookColumns+` FROM webhooks ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	return collectWebhooks(rows)
}

func (s *Storage) GetWebhooksForEvent(ctx context.Context, eventType string) ([]*webhooks.Webhook, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+webhookColumns+` FROM webhooks
		WHERE enabled AND events @> ARRAY[$1::text]
		ORDER BY id`, eventType)
	if err != nil {
		return nil, fmt.Errorf("list webhooks for event: %w", err)
	}
	return collectWebhooks(rows)
}

func (s *Storage) RecordWebhookSuccess(ctx context.Context, id int64, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE webhooks
		SET last_triggered_at = $2, failure_count = 0, disabled_reason = NULL, updated_at = NOW()
		WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("record webhook success: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return webhooks.ErrWebhookNotFound
	}
	return nil
}

// IncrementWebhookFailures relies on a single UPDATE so concurrent
// workers never lose a count.
func (s *Storage) IncrementWebhookFailures(ctx context.Context, id int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		UPDATE webhooks
		SET failure_count = failure_count + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING failure_count`, id).Scan(&count)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return 0, webhooks.ErrWebhookNotFound
		}
		return 0, fmt.Errorf("increment webhook failures: %w", err)
	}
	return count, nil
}

func (s *Storage) DisableWebhook(ctx context.Context, id int64, reason string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE webhooks
		SET enabled = FALSE, disabled_reason = $2, updated_at = NOW()
		WHERE id = $1`, id, reason)
	if err != nil {
		return fmt.Errorf("disable webhook: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return webhooks.ErrWebhookNotFound
	}
	return nil
}

func (s *Storage) EnableWebhook(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE webhooks
		SET enabled = TRUE, failure_count = 0, disabled_reason = NULL, updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("enable webhook: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return webhooks.ErrWebhookNotFound
	}
	return nil
}

const deliveryColumns = `id, webhook_id, event_type, payload, request_headers,
	attempt_number, response_status, response_body, duration_ms, error_message,
	delivered_at, next_retry_at, created_at`

func scanDelivery(row pgx.Row) (*webhooks.Delivery, error) {
	var d webhooks.Delivery
	var payload []byte
	err := row.Scan(&d.ID, &d.WebhookID, &d.EventType, &payload, &d.RequestHeaders,
		&d.AttemptNumber, &d.ResponseStatus, &d.ResponseBody, &d.DurationMS,
		&d.ErrorMessage, &d.DeliveredAt, &d.NextRetryAt, &d.CreatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, webhooks.ErrDeliveryNotFound
		}
		return nil, fmt.Errorf("scan delivery: %w", err)
	}
	d.Payload = payload
	return &d, nil
}

func collectDeliveries(rows pgx.Rows) ([]*webhooks.Delivery, error) {
	defer rows.Close()
	var out []*webhooks.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deliveries: %w", err)
	}
	return out, nil
}

func (s *Storage) CreateDelivery(ctx context.Context, d *webhooks.Delivery) error {
	headers := d.RequestHeaders
	if headers == nil {
		headers = map[string]string{}
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO webhook_deliveries (webhook_id, event_type, payload, request_headers, attempt_number)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		d.WebhookID, d.EventType, []byte(d.Payload), headers, d.AttemptNumber,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		if pg.IsForeignKeyViolationError(err) {
			return webhooks.ErrWebhookNotFound
		}
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

func (s *Storage) MarkDeliverySucceeded(ctx context.Context, id int64, outcome webhooks.DeliveryOutcome, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE webhook_deliveries
		SET response_status = $2, response_body = $3, duration_ms = $4,
		    error_message = $5, delivered_at = $6, next_retry_at = NULL
		WHERE id = $1`,
		id, outcome.Status, nullIfEmpty(outcome.Body), outcome.DurationMS,
		nullIfEmpty(outcome.ErrorMessage), at)
	if err != nil {
		return fmt.Errorf("mark delivery succeeded: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return webhooks.ErrDeliveryNotFound
	}
	return nil
}

func (s *Storage) MarkDeliveryFailed(ctx context.Context, id int64, outcome webhooks.DeliveryOutcome, nextRetryAt *time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE webhook_deliveries
		SET response_status = $2, response_body = $3, duration_ms = $4,
		    error_message = $5, delivered_at = NULL, next_retry_at = $6
		WHERE id = $1`,
		id, outcome.Status, nullIfEmpty(outcome.Body), outcome.DurationMS,
		nullIfEmpty(outcome.ErrorMessage), nextRetryAt)
	if err != nil {
		return fmt.Errorf("mark delivery failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return webhooks.ErrDeliveryNotFound
	}
	return nil
}

func (s *Storage) ClearDeliveryRetry(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE webhook_deliveries SET next_retry_at = NULL WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("clear delivery retry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return webhooks.ErrDeliveryNotFound
	}
	return nil
}

func (s *Storage) ListDeliveries(ctx context.Context, webhookID int64, limit, offset int) ([]*webhooks.Delivery, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+deliveryColumns+` FROM webhook_deliveries
		WHERE webhook_id = $1
		ORDER BY id DESC
		LIMIT NULLIF($2, 0) OFFSET $3`, webhookID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	return collectDeliveries(rows)
}

func (s *Storage) GetPendingRetries(ctx context.Context, now time.Time, limit int) ([]*webhooks.Delivery, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+deliveryColumns+` FROM webhook_deliveries
		WHERE delivered_at IS NULL
		  AND next_retry_at IS NOT NULL
		  AND next_retry_at <= $1
		ORDER BY next_retry_at
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending retries: %w", err)
	}
	return collectDeliveries(rows)
}

func (s *Storage) DeleteDeliveriesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM webhook_deliveries WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete deliveries: %w", err)
	}
	return tag.RowsAffected(), nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
