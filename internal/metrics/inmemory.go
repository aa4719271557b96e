package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	MangosCreated         uint64
	MangosUpdated         uint64
	MangosDeleted         uint64
	AccessDenied          uint64
	ValidationFailed      uint64
	LookupDurationCount   uint64
	LookupDurationTotalNs int64
}

// InMemoryRecorder keeps counters in process memory. It backs /metrics and tests.
type InMemoryRecorder struct {
	mangosCreated         atomic.Uint64
	mangosUpdated         atomic.Uint64
	mangosDeleted         atomic.Uint64
	accessDenied          atomic.Uint64
	validationFailed      atomic.Uint64
	lookupDurationCount   atomic.Uint64
	lookupDurationTotalNs atomic.Int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		MangosCreated:         m.mangosCreated.Load(),
		MangosUpdated:         m.mangosUpdated.Load(),
		MangosDeleted:         m.mangosDeleted.Load(),
		AccessDenied:          m.accessDenied.Load(),
		ValidationFailed:      m.validationFailed.Load(),
		LookupDurationCount:   m.lookupDurationCount.Load(),
		LookupDurationTotalNs: m.lookupDurationTotalNs.Load(),
	}
}

func (m *InMemoryRecorder) IncMangoCreated()          { m.mangosCreated.Add(1) }
func (m *InMemoryRecorder) IncMangoUpdated()          { m.mangosUpdated.Add(1) }
func (m *InMemoryRecorder) IncMangoDeleted()          { m.mangosDeleted.Add(1) }
func (m *InMemoryRecorder) IncMangoAccessDenied()     { m.accessDenied.Add(1) }
func (m *InMemoryRecorder) IncMangoValidationFailed() { m.validationFailed.Add(1) }

// ObserveMangoLookupDuration records the time spent loading a mango from the store.
func (m *InMemoryRecorder) ObserveMangoLookupDuration(d time.Duration) {
	m.lookupDurationCount.Add(1)
	m.lookupDurationTotalNs.Add(d.Nanoseconds())
}
