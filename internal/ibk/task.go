package ibk

// BackupTask is one unit of work for the worker pool.
type BackupTask struct {
	Entry      Entry
	SourcePath string
	StoredName string
	Reason     Reason
	// Prior is the manifest entry from the previous run, nil for new files.
	Prior    *ManifestEntry
	Compress bool
	Encrypt  bool
}

// ResultStatus is the outcome of a task.
type ResultStatus string

const (
	StatusCopied  ResultStatus = "copied"
	StatusSkipped ResultStatus = "skipped"
	StatusFailed  ResultStatus = "failed"
)

// BackupResult is what a worker hands back to the orchestrator.
type BackupResult struct {
	RelativePath string
	Status       ResultStatus
	Reason       Reason
	// Entry is the manifest entry to record. It is set for copied files and
	// for skipped files whose modification time was refreshed after a
	// matching re-hash. It is nil in dry runs.
	Entry *ManifestEntry
	// Refreshed marks a file whose modification time changed but whose
	// content hash still matches.
	Refreshed bool
	Err       error
	// BytesRead is the number of source bytes streamed into the stored copy,
	// or in a dry run the size that would be copied.
	BytesRead int64
}

func failed(relativePath string, reason Reason, err error) BackupResult {
	return BackupResult{RelativePath: relativePath, Status: StatusFailed, Reason: reason, Err: err}
}
