// Package orchestrator runs repository updates on a bounded worker pool.
//
// Paths are pulled from the discovery sequence only after a worker slot is
// free, so cancelling the run stops both dispatch and traversal. Units that
// are already running finish on a context detached from cancellation.
package orchestrator
