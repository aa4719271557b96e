// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
type Recorder interface {
	// Mango writes
	IncMangoCreated()
	IncMangoUpdated()
	IncMangoDeleted()

	// Rejections
	IncMangoAccessDenied()
	IncMangoValidationFailed()

	// Single-record store reads
	ObserveMangoLookupDuration(duration time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
