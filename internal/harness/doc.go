// Package harness runs scripted editing sessions against real replicas.
//
// A scenario names one or two replicas sharing an initial document, a list
// of steps (local updates, authored inserts and deletes, raw wire
// deliveries, processing) and assertions on the outcome. Replicas exchange
// messages over in-memory channels using the JSON wire codec, and every
// replica event is recorded in a fresh SQLite store. The trace read back
// from that store is what assertions and golden files compare against.
//
// # Scenario format
//
//	name: concurrent_inserts
//	initial: "12345"
//	replicas:
//	  - {id: 123, label: A}
//	  - {id: 124, label: B}
//	steps:
//	  - update: {replica: A, text: "1b2345"}
//	  - update: {replica: B, text: "1a2345"}
//	  - process: {replica: A}
//	  - process: {replica: B}
//	assertions:
//	  - {type: converged, text: "1ba2345"}
//
// Publishing is synchronous: a step's messages are already queued at the
// peer when the next step starts, and are applied only by a process step.
//
// # Fuzzing
//
// Fuzz drives two replicas with seeded random edits and random processing
// points and reports every seed whose replicas diverge.
package harness
