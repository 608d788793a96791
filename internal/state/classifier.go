package state

// SyncState classifies one mapping relative to its base snapshots.
type SyncState string

const (
	// InSync means neither side changed since the last successful sync.
	InSync SyncState = "in-sync"
	// NeedsPush means only the local side changed.
	NeedsPush SyncState = "needs-push"
	// NeedsPull means only the remote side changed.
	NeedsPull SyncState = "needs-pull"
	// Conflict means both sides changed.
	Conflict SyncState = "conflict"
	// Unknown means at least one base snapshot is missing, so no three-way
	// comparison is possible. The next successful sync rebuilds it.
	Unknown SyncState = "unknown"
)

// Classify derives the sync state of a mapping from the current hashes of
// both sides and the hashes of the base snapshots. Empty snapshot hashes
// mean the snapshot is absent. Pure function; no other logic belongs here.
func Classify(currentLocalHash, currentRemoteHash, snapshotLocalHash, snapshotRemoteHash string) SyncState {
	if snapshotLocalHash == "" || snapshotRemoteHash == "" {
		return Unknown
	}
	localChanged := currentLocalHash != snapshotLocalHash
	remoteChanged := currentRemoteHash != snapshotRemoteHash
	switch {
	case localChanged && remoteChanged:
		return Conflict
	case localChanged:
		return NeedsPush
	case remoteChanged:
		return NeedsPull
	default:
		return InSync
	}
}
