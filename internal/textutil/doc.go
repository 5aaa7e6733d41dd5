// Package textutil holds small text helpers shared across the pipeline:
// term-frequency fingerprints with cosine-similarity and containment
// scoring (used to sanity-check model-reported transcript quotes), and
// sanitizers that turn episode titles and identifiers into safe file names.
package textutil
