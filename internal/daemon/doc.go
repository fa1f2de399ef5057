// Package daemon coordinates the long-running limner process.
//
// It wires configuration, the intake watcher, and per-document workflow
// managers into a single lifecycle with flock-based locking to prevent
// multiple instances. Keep orchestration logic here: pipeline phases live in
// the workflow package while the daemon focuses on startup, shutdown, and
// document ingestion.
package daemon
