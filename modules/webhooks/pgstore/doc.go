// Package pgstore provides the PostgreSQL implementation of
// webhooks.Storage, including the embedded schema migrations.
//
// The schema keeps webhook health state (failure_count, enabled,
// disabled_reason) in the webhooks table, so restarts and horizontally
// scaled workers share one view of endpoint health. Delivery attempts
// are append-only rows in webhook_deliveries; a partial index on
// next_retry_at keeps the retry poll cheap regardless of history size.
package pgstore
