// Package reconciler drives a single encode task through the external job
// queue: submission, polling until the job is terminal, validation of the
// encoded file, and finally promotion of the result or rollback.
//
// A task moves through
//
//	not submitted -> submitted -> running -> done | failed | vanished
//
// and a finished job with output is then validated as accepted, rejected or
// inconclusive. Accepted files replace the origin and the movie is marked
// encoded. Rejected files are deleted and the movie is marked failed.
// Inconclusive results are left on disk for manual review and the registry
// is not touched.
//
// Cancelling the context while waiting leaves the queued job and any temp
// file alone; the next run finds the job again by its command string.
package reconciler
