// Package replica implements the per-actor operational-transformation state
// machine.
//
// A State owns one Buffer and evolves it through three operations:
//
//  1. LocalUpdate: derive instructions from the new text, apply each
//     locally, publish it as a Message and keep it as outgoing until the
//     peer acknowledges it
//  2. Receive: buffer a structural clone of a peer message
//  3. ProcessReceived: for each buffered message, trim acknowledged
//     outgoing entries, verify causal order, transform the message against
//     every remaining outgoing entry and apply the result
//
// CONCURRENCY:
//
// State is single-threaded and synchronous; callers must serialize access.
// Loop provides that serialization as a single-writer event loop, so
// transports delivering from their own goroutines can feed a replica safely.
//
// TIE-BREAK:
//
// When a received instruction and an outgoing instruction insert at the
// same index, the instruction authored by the lower creator id lands first.
// Both replicas evaluate the same rule with roles flipped, which is what
// makes their transforms mirror images.
//
// DIAGNOSTICS:
//
// State never logs or prints directly. Every transition is reported to an
// injected Observer; LogObserver adapts it to slog.
package replica
