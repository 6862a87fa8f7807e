// Package session holds per-client state for the HTTP API.
//
// Every API client works in its own Session, identified by a random UUID.
// A Session owns at most one Run: the crawled records, their embeddings and
// the figures built from them. Nothing is shared between sessions, and no
// result is kept in process-wide variables.
package session
