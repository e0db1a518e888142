package metrics

// InitializeMetrics pre-populates the expected label combinations so
// that every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, outcome := range []string{"stored", "rejected", "failed"} {
		UploadsTotal.WithLabelValues(outcome)
	}

	for _, status := range []string{"ready", "failed", "skipped"} {
		TranscodeJobsTotal.WithLabelValues(status)
	}

	for _, result := range []string{"success", "failure"} {
		AuthAttemptsTotal.WithLabelValues(result)
	}

	for _, op := range []string{
		"initialize_schema", "create_video", "get_video", "list_videos",
		"increment_views", "set_manifest", "set_transcode_status",
		"create_user", "validate_credentials", "create_session",
		"validate_session", "delete_session", "clean_sessions",
		"add_comment", "list_comments", "toggle_like", "toggle_follow",
	} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
}
