// Package webhooks implements the outbound webhook delivery subsystem:
// it turns domain events into signed, retried HTTP callbacks to externally
// registered endpoints with at-least-once semantics.
//
// # Architecture
//
// Three long-running tasks share a bounded task channel and the Storage
// collaborator:
//
//   - The event listener subscribes to the domain event broadcaster, maps
//     each event to its webhook event-type string, looks up enabled
//     webhooks subscribed to that type, and enqueues one delivery task per
//     match.
//   - The delivery worker is the single consumer of the task channel. It
//     serializes the envelope once, signs those exact bytes, records a
//     delivery row before the network call, performs the POST, and then
//     persists the outcome: success resets the webhook's failure counter;
//     failure schedules the next attempt with jittered exponential backoff
//     and increments the counter, auto-disabling the webhook once the
//     threshold is reached.
//   - The retry scheduler polls Storage for delivery rows whose retry time
//     has passed and re-enqueues them with the original payload bytes and
//     an incremented attempt number.
//
// Delivery state lives entirely in Storage, not in process memory, so
// several process instances can share webhook health, and a restart loses
// at most the tasks that were queued in the channel.
//
// # Tradeoffs
//
// Delivery is serialized through one worker: a slow endpoint delays
// deliveries to every other webhook. Event ingestion is best-effort: a
// lagging listener drops events (the broadcaster counts drops) rather
// than slowing domain-event producers. Both are deliberate simplicity
// tradeoffs; the storage layer already uses atomic failure-count updates,
// so sharding the worker by webhook id is safe if throughput demands it.
package webhooks
