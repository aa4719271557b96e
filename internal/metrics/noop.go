package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return NoopRecorder{}
}

func (NoopRecorder) IncMangoCreated()                         {}
func (NoopRecorder) IncMangoUpdated()                         {}
func (NoopRecorder) IncMangoDeleted()                         {}
func (NoopRecorder) IncMangoAccessDenied()                    {}
func (NoopRecorder) IncMangoValidationFailed()                {}
func (NoopRecorder) ObserveMangoLookupDuration(time.Duration) {}
