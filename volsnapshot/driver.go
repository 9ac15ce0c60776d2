package volsnapshot

import (
	"context"
	"errors"
)

// Driver creates and releases platform snapshots. The production
// implementation (driver_windows.go) wraps github.com/mxk/go-vss and
// golang.org/x/sys/windows; non-Windows builds get driver_other.go's
// stub so the rest of the module still compiles and tests (spec.md
// §4.4 is inherently Windows/VSS-specific, matching the copier's own
// Windows-only nature, spec.md §1).
type Driver interface {
	// CreateLocalShadow snapshots the volume hosting path (e.g. "C:").
	CreateLocalShadow(ctx context.Context, volume string) (*Snapshot, error)

	// CreateRemoteShadow snapshots the volume backing a remote share
	// and returns a Snapshot whose Junction, once Mount is called,
	// exposes the shadow through the existing network mount.
	CreateRemoteShadow(ctx context.Context, serverName, shareLocalPath string) (*Snapshot, error)

	// MountJunction creates the local junction redirecting
	// clientAccessiblePath into snap's shadow path.
	MountJunction(ctx context.Context, snap *Snapshot, clientAccessiblePath string) error

	// UnmountJunction removes a previously created junction. Safe to
	// call on a Snapshot with no Junction.
	UnmountJunction(ctx context.Context, snap *Snapshot) error

	// RemoveShadow deletes the shadow itself.
	RemoveShadow(ctx context.Context, snap *Snapshot) error

	// ListShadows enumerates all shadows present on the system for
	// volume, including ones this process did not create (spec.md
	// §4.4 retention: "externally-created shadows are reported but
	// never deleted").
	ListShadows(ctx context.Context, volume string) ([]*Snapshot, error)
}

// ErrUnsupportedPlatform is returned by the non-Windows stub driver.
var ErrUnsupportedPlatform = errors.New("volsnapshot: VSS snapshots are only supported on Windows")
