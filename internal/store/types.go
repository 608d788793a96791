package store

import (
	"time"

	"tasksync/internal/normalize"
)

// Side identifies which endpoint a snapshot describes.
type Side string

const (
	SideLocal  Side = "local"
	SideRemote Side = "remote"
)

// Mapping binds one local task to one remote issue. Exactly one mapping per
// bound pair; each localId maps to at most one remoteKey and vice versa.
type Mapping struct {
	LocalID   string    `json:"localId"`
	RemoteKey string    `json:"remoteKey"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Snapshot stores the canonical payload observed for one side of a mapping
// at the last successful reconciliation. Its hash is the base for all
// future three-way comparisons.
type Snapshot struct {
	LocalID   string            `json:"localId"`
	Side      Side              `json:"side"`
	Hash      string            `json:"hash"`
	Payload   normalize.Payload `json:"payload"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Operation names for the op log.
const (
	OpMap     = "map"
	OpUnmap   = "unmap"
	OpPush    = "push"
	OpPull    = "pull"
	OpSync    = "sync"
	OpResolve = "resolve"
	OpImport  = "import"
)

// OpStatus is the outcome of a logged operation.
type OpStatus string

const (
	OpOK     OpStatus = "ok"
	OpFailed OpStatus = "failed"
)

// OpEntry is one append-only audit record. Read only by humans and debug
// views; the engine never branches on it.
type OpEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Operation string    `json:"operation"`
	LocalID   string    `json:"localId,omitempty"`
	RemoteKey string    `json:"remoteKey,omitempty"`
	Status    OpStatus  `json:"status"`
	Detail    string    `json:"detail,omitempty"`
}
