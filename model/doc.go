// Package model defines the provider-agnostic abstractions for interacting
// with language models inside patientsim.
//
// Core goals:
//   - Keep request/response shapes minimal and transport independent
//   - Classify provider failures (rate limit, transient, fatal) so the
//     retry layer can decide without vendor branching
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (e.g. OpenAI, Anthropic) implement the Model interface from this
// package so higher layers remain decoupled from vendor SDKs.
package model
