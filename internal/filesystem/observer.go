package filesystem

// Observer records filesystem operation metrics. Implementations are provided
// by the metrics package to break the import cycle between filesystem and metrics.
type Observer interface {
	// ObserveOperation records duration and error status for a file mover operation.
	// volume is the resolved mount point label (e.g., "media", "staging").
	// operation is one of "copy", "move", "delete", "rename", "stat".
	ObserveOperation(volume, operation string, durationSeconds float64, err error)

	// ObserveBytesCopied records bytes streamed by Copy.
	ObserveBytesCopied(volume string, n int64)

	// ObserveRetry* record retry-specific metrics for NFS resilience.
	// retryOp is the retry operation: "stat" or "open".
	ObserveRetryAttempt(retryOp, volume string)
	ObserveRetrySuccess(retryOp, volume string)
	ObserveRetryFailure(retryOp, volume string)
	ObserveStaleError(retryOp, volume string)
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, string, float64, error) {}
func (nopObserver) ObserveBytesCopied(string, int64)                 {}
func (nopObserver) ObserveRetryAttempt(string, string)               {}
func (nopObserver) ObserveRetrySuccess(string, string)               {}
func (nopObserver) ObserveRetryFailure(string, string)               {}
func (nopObserver) ObserveStaleError(string, string)                 {}

// defaultObserver is the package-level observer set at startup.
// If nil, metric recording is silently skipped (safe for tests).
var defaultObserver Observer

// SetObserver sets the package-level metrics observer.
// Call this once at startup after creating the observer implementation.
func SetObserver(o Observer) {
	defaultObserver = o
}

// observe is a nil-safe accessor for the package-level observer.
func observe() Observer {
	if defaultObserver == nil {
		return nopObserver{}
	}
	return defaultObserver
}
