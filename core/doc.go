// Package core provides the foundational domain types and contracts used by
// patientsim. It defines the core abstractions for:
//
//   - Speakers and Turns (role-tagged utterances of a conversation)
//   - The Window (append-only turn log owned by a session)
//   - Sessions (stateful conversation containers with a strict lifecycle)
//   - Pluggable stores for live sessions and durable transcripts
//
// The package intentionally keeps implementation concerns (persistence,
// model providers, orchestration) out of scope, exposing small interfaces to
// enable custom backends and extensions.
package core
