// Package manifest maintains the authoritative processing record for one
// document: a per-unit state machine plus whole-document phase flags,
// persisted as JSON in the document's working directory.
//
// Every mutation goes through Store.Update, which acquires the manifest's
// filesystem lock, reloads the freshest persisted state, applies the
// mutation, stamps LastUpdated, and writes atomically. Cached in-memory
// copies are never trusted across that boundary; concurrent mutators in
// other processes may have written in between. Reads outside the lock
// (UnitsByStatus, Load) are eventually consistent snapshots.
package manifest
