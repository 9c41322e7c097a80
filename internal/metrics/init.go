package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, op := range []string{"find_by_location", "find_by_hash", "get_movie", "insert_movie",
		"update_movie", "delete_movie", "list_movies", "stats", "begin_transaction", "vacuum"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, r := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(r)
	}

	for _, r := range []string{"location", "renamed", "created", "vanished"} {
		RegistryResolutions.WithLabelValues(r)
	}

	for _, r := range []string{"followed", "deleted"} {
		RegistryPurged.WithLabelValues(r)
	}

	for _, s := range []string{"encoded", "failed", "pending"} {
		MoviesTotal.WithLabelValues(s)
	}

	for _, d := range []string{"task", "done", "already_encoded", "too_small", "duplicate", "vanished", "error"} {
		FilterDecisions.WithLabelValues(d)
	}

	for _, backend := range []string{"pueue", "http"} {
		for _, op := range []string{"status", "add"} {
			QueueRequests.WithLabelValues(backend, op, "success")
			QueueRequests.WithLabelValues(backend, op, "error")
		}
	}

	for _, r := range []string{"submitted", "existing", "stale"} {
		JobsSubmitted.WithLabelValues(r)
	}

	for _, s := range []string{"done", "failed", "vanished"} {
		JobOutcomes.WithLabelValues(s)
	}

	for _, v := range []string{"accepted", "rejected", "inconclusive"} {
		ValidationVerdicts.WithLabelValues(v)
	}

	for _, o := range []string{"accepted", "rejected", "inconclusive", "failed", "vanished"} {
		RunTasks.WithLabelValues(o)
	}

	volumes := []string{"library", "scratch", "database", "unknown"}
	for _, op := range []string{"stat", "open"} {
		for _, vol := range volumes {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
		}
	}
}
