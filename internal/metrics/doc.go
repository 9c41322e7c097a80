// Package metrics provides Prometheus instrumentation for encarne.
//
// All metrics are prefixed with "encarne_". A run usually lasts as long as
// the slowest encode in the queue, so the metrics can be scraped live through
// Server while the reconciler waits, or written once at the end of a run with
// WriteTextfile for the node_exporter textfile collector.
//
// # Metric Categories
//
// ## Database Metrics
//   - DBQueryTotal, DBQueryDuration: queries by operation
//   - DBTransactionDuration: transaction time by commit/rollback
//   - DBConnectionsOpen: open SQLite connections
//
// ## Registry Metrics
//   - RegistryResolutions: identity lookups by result
//   - RegistryDuplicates: records sharing a hash with an older one
//   - RegistryHashDuration: content hashing time
//   - RegistryPurged: purge outcomes
//   - MoviesTotal, SavedBytes: library totals
//
// ## Scanner Metrics
//   - ScannerFilesFound, FilterDecisions, ProbeFailures
//
// ## Queue and Reconciler Metrics
//   - QueueRequests, JobsSubmitted, JobPolls, JobOutcomes, JobWaitDuration
//   - ValidationVerdicts, BytesReclaimed
//
// ## Run Metrics
//   - RunLastTimestamp, RunLastDuration, RunTasks, RunIsActive
//
// ## Filesystem Metrics
//   - FilesystemRetryAttempts, FilesystemRetrySuccess,
//     FilesystemRetryFailures, FilesystemStaleErrors
package metrics
