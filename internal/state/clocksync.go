package state

// SyncState is the clock-sync engine's state machine value.
type SyncState string

const (
	Unsynced SyncState = "unsynced"
	Synced   SyncState = "synced"
	Degraded SyncState = "degraded"
)

// ClockSync is the per-MCU clock synchronization snapshot (spec.md §3.4).
type ClockSync struct {
	State         SyncState
	OffsetNS      int64
	RTTMinUS      int64
	DriftUSPerS   float64
	SampleCount   int
	LastSyncMonoNS int64
}
