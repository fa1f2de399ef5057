// Package logging configures structured logging for limner.
//
// Loggers are built on log/slog with two output formats: a human-oriented
// console handler and a machine-oriented JSON handler. Components derive
// child loggers via NewComponentLogger so every record carries a stable
// component attribute, and standardized field keys keep document, unit, and
// phase identifiers greppable across the whole pipeline.
package logging
