// Package illustrationcache stores a content-addressed map from scene
// descriptions to rendered illustration files, so re-running a document does
// not redraw scenes whose inputs have not changed. The cache lives in a
// SQLite database keyed by a hash of the scene text plus the illustration
// style.
package illustrationcache
