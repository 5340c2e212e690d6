// Package internal documents the gatherings server internals.
//
// The internal tree is organized by responsibility:
// - api: HTTP routing, handlers, middleware, problem responses and pagination
// - domain: access policy, events, RSVPs, reviews and member accounts
// - storage: repository contracts and the Postgres implementation
// - mcp: read-only agent access to public events
// - auth, audit, config, metrics, telemetry, sanitize, validation: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
