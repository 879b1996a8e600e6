// Package ingestion provides concurrent batch ingestion of records.
//
// The Pipeline type submits each record of a batch to a worker pool, waits
// for the batch to finish and reports the offsets in input order. Every
// record that fails is reported in the joined error; records that succeed
// stay stored regardless of failures elsewhere in the batch.
//
// The repository still serializes writes, so the pool bounds the number of
// callers waiting on it rather than adding write parallelism.
package ingestion
