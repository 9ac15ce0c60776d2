// Package volsnapshot implements the Snapshot Manager (spec.md §4.4,
// C4): create/release point-in-time volume snapshots (local) or remote
// junction-mounted snapshots, layered under the Orchestrator for
// consistent source reads (spec.md §1(d)).
package volsnapshot

import "time"

// JunctionInfo describes a local directory that transparently redirects
// clients to a remote snapshot through an existing network share
// (spec.md §3, glossary "Junction").
type JunctionInfo struct {
	LocalJunctionPath    string
	ClientAccessiblePath string
}

// Snapshot is one shadow of a source volume or remote share (spec.md
// §3).
type Snapshot struct {
	ShadowID     string
	ShadowPath   string
	SourceVolume string

	ServerName     string // remote only
	ShareLocalPath string // remote only

	CreatedAt time.Time
	IsRemote  bool

	Junction *JunctionInfo // non-nil when a junction is used
}

// RegistryEntry is one row of the persistent tracking registry (spec.md
// §4.4): "{ShadowId, SourceVolume, CreatedAt, optional ServerName,
// IsRemote}".
type RegistryEntry struct {
	ShadowID     string    `json:"shadowId"`
	SourceVolume string    `json:"sourceVolume"`
	CreatedAt    time.Time `json:"createdAt"`
	ServerName   string    `json:"serverName,omitempty"`
	IsRemote     bool      `json:"isRemote"`
}
