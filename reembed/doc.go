// Package reembed re-encodes every entry of a local vector index with the
// current embedding model.
//
// Entries are read in pages, their documents embedded in passage mode with
// retry and exponential backoff, and written back under the same ids.
// Metadata and documents are preserved. The new model must produce vectors
// of the index's existing dimension.
package reembed
