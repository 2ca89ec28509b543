// Package events defines the domain events emitted by the Opsdesk backend
// and the in-memory broadcaster that fans them out to interested
// subsystems.
//
// Each event carries a Kind from a closed set. Kinds split into two
// groups: those exposed on the webhook surface (Kind.WebhookType returns
// the stable "ticket.created"-style string) and internal ephemeral kinds
// (heartbeats, viewer counts, notification pushes) that are deliberately
// never delivered to webhooks.
//
// # Delivery guarantees
//
// The broadcaster is best-effort by design: Publish never blocks on a slow
// subscriber. When a subscription's buffer is full the event is dropped
// for that subscription and its dropped counter is incremented, so
// consumers can observe that they lagged without ever slowing the event
// producer down. Consumers that need at-least-once capture must be fed
// from a durable log instead.
package events
