// Package workflow drives a document through the illustration pipeline:
// entity seeding, concurrent scene analysis with shared knowledge base
// enrichment, and concurrent illustration behind the knowledge base phase
// barrier. All cross-worker coordination happens through the manifest and
// knowledge base files; workers never talk to each other directly.
package workflow
