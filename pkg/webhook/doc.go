// Package webhook implements the low-level HTTP mechanics of outbound
// webhook delivery: building the signed POST request, sanitizing
// operator-configured headers, and classifying the outcome of a single
// attempt.
//
// The sender performs exactly one HTTP attempt per call. Retry chains are
// persisted by the owning subsystem (see modules/webhooks), which records
// every attempt and schedules the next one from durable state, so an
// in-process retry loop here would only hide attempts from the delivery
// history.
//
// # Outbound contract
//
// Every request is a POST with:
//
//	Content-Type:        application/json
//	User-Agent:          Opsdesk-Webhook/1.0
//	X-Opsdesk-Signature: sha256=<hex HMAC of the body>
//	X-Opsdesk-Event:     <event type string>
//	X-Opsdesk-Delivery:  <envelope UUID>
//
// plus any custom headers configured on the webhook. Host, User-Agent and
// Authorization are always stripped from custom headers (SanitizeHeaders)
// so admin-configured data cannot override connection-level or identity
// headers.
//
// # Backoff
//
// BackoffStrategy computes the delay before the next attempt of a failed
// delivery chain. The default ExponentialBackoff doubles a base delay per
// attempt and adds uniform jitter of up to half the base, capped at one
// hour:
//
//	delay(a) = min(initial * 2^(a-1) + uniform(0, base/2), max)
package webhook
