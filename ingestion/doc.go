// Package ingestion turns streams of source records into vector index entries.
//
// The Pipeline consumes one record stream per source object. Each record is
// validated, its metadata normalized and its text split into chunks; chunks
// accumulate in a Batch of bounded capacity. A full batch is flushed: the
// chunk texts are embedded in passage mode with a single EmbedTexts call and
// the resulting entries are written with a single VectorIndex.Add call, in
// the order the chunks were appended. The remainder is flushed when the
// stream ends.
//
// Processing is single-threaded and synchronous. A stream or flush error
// aborts the run: the unflushed remainder of the current object is dropped
// and entries flushed earlier stay in the index.
package ingestion
