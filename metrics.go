package uringrt

import "sync/atomic"

// Metrics holds opt-in runtime counters, attached via WithMetrics. All
// fields are safe for concurrent reads; increments happen only from the
// worker/task rendezvous window (see runtime.go) except TasksSpawned,
// which is incremented from whichever goroutine calls Spawn, SpawnOn or
// Runtime.Spawn.
type Metrics struct {
	TasksSpawned   atomic.Uint64
	TasksCompleted atomic.Uint64
	OpsSubmitted   atomic.Uint64
	OpsCompleted   atomic.Uint64
	OpsCancelled   atomic.Uint64
	ParkCount      atomic.Uint64
}

func newMetrics(enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	return &Metrics{}
}

func (m *Metrics) incTasksSpawned() {
	if m != nil {
		m.TasksSpawned.Add(1)
	}
}

func (m *Metrics) incTasksCompleted() {
	if m != nil {
		m.TasksCompleted.Add(1)
	}
}

func (m *Metrics) incOpsSubmitted() {
	if m != nil {
		m.OpsSubmitted.Add(1)
	}
}

func (m *Metrics) incOpsCompleted() {
	if m != nil {
		m.OpsCompleted.Add(1)
	}
}

func (m *Metrics) incOpsCancelled() {
	if m != nil {
		m.OpsCancelled.Add(1)
	}
}

func (m *Metrics) incParkCount() {
	if m != nil {
		m.ParkCount.Add(1)
	}
}
