// Package series coordinates metadata across multiple documents that share
// one knowledge base: membership, ordering, and per-document processing
// status. It applies the same lock-serialized load-mutate-persist discipline
// as the per-document manifest, over a single .series.json file at the
// series root.
package series
