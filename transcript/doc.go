// Package transcript persists the durable record of a simulation: trainee
// users, dialogue turns and debrief results.
//
// Stores implement core.TranscriptStore. Writes are append-only with no
// rollback: a failed write surfaces a *StoreError and leaves previously
// written rows untouched, so a retried operation may produce duplicate turn
// or result rows. Consumers that need a single debrief per session should
// keep the latest row by timestamp.
package transcript
