// Package reindex rebuilds the time-series and spatial indices of a
// repository from its record log.
//
// The log is the only source of truth, so indices that are missing, stale
// or corrupt can always be recreated. The Reindexer counts the log, runs
// the rebuild with retries and reports progress to a writer.
package reindex
