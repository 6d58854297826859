package types

// SnapshotState tells which of the three outcomes a topology fetch produced
type SnapshotState int

const (
	// SnapshotConfigured means the authority answered and at least one zone exists
	SnapshotConfigured SnapshotState = iota
	// SnapshotUnconfigured means the authority answered but defines no zones
	SnapshotUnconfigured
	// SnapshotFailed means the authority could not be queried or answered garbage
	SnapshotFailed
)

func (s SnapshotState) String() string {
	switch s {
	case SnapshotConfigured:
		return "configured"
	case SnapshotUnconfigured:
		return "unconfigured"
	case SnapshotFailed:
		return "failed"
	default:
		return "invalid"
	}
}

// Snapshot is the per-zone view produced by one authority.
// Callers must switch on State before reading Zones.
type Snapshot[T any] struct {
	State SnapshotState
	Zones map[string]T
	Err   error
}

// Configured wraps a non-empty zone mapping
func Configured[T any](zones map[string]T) Snapshot[T] {
	return Snapshot[T]{State: SnapshotConfigured, Zones: zones}
}

// Unconfigured reports a reachable authority without zones
func Unconfigured[T any]() Snapshot[T] {
	return Snapshot[T]{State: SnapshotUnconfigured}
}

// Failed reports an authority fault
func Failed[T any](err error) Snapshot[T] {
	return Snapshot[T]{State: SnapshotFailed, Err: err}
}

// Zone returns the entry for name. It is safe on every state.
func (s Snapshot[T]) Zone(name string) (T, bool) {
	var zero T
	if s.State != SnapshotConfigured {
		return zero, false
	}
	z, ok := s.Zones[name]
	return z, ok
}

// KubeSnapshot is the Node Topology Mapper output
type KubeSnapshot = Snapshot[KubeZone]

// StorageSnapshot is the Storage Topology Mapper output
type StorageSnapshot = Snapshot[[]StorageNode]
