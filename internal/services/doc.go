// Package services provides cross-cutting support for pipeline components:
// a sentinel error taxonomy used for failure classification, and context
// carriers for document/unit/phase identifiers consumed by structured logging.
package services
