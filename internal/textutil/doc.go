// Package textutil provides text matching and filename helpers.
//
// Matching is Unicode case-folded (not just ASCII lowercase) because entity
// names arrive from free-form prose and may carry accents or non-Latin
// scripts. Filename sanitization keeps generated illustration files safe for
// the filesystem.
package textutil
