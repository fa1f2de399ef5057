// Package knowledge maintains the shared entity catalog built up while a
// document is processed: characters, creatures, places, and items, each with
// a base description and an append-only list of source-tagged enrichments.
//
// The catalog persists as JSON beside the manifest, with a deterministic
// human-readable projection (Elements.md) regenerated after every change.
// Enrichment is idempotent: a detail is appended only if it does not already
// occur, case-insensitively, in the entity's base description or any prior
// enrichment. Concurrent enrichers serialize through the catalog's
// filesystem lock with the same reload-then-mutate-then-persist cycle the
// manifest uses; no in-memory copy is ever trusted as authoritative.
package knowledge
