//go:build !windows

package volsnapshot

import "context"

// stubDriver backs non-Windows builds and tests: the Manager and
// registry logic above it are platform-neutral, but actual shadow
// creation is Windows/VSS-only (spec.md §4.4, §1).
type stubDriver struct{}

// NewDriver returns a Driver that always fails with
// ErrUnsupportedPlatform. Production builds run on Windows, where
// driver_windows.go's vssDriver is used instead.
func NewDriver() Driver { return &stubDriver{} }

func (stubDriver) CreateLocalShadow(context.Context, string) (*Snapshot, error) {
	return nil, ErrUnsupportedPlatform
}

func (stubDriver) CreateRemoteShadow(context.Context, string, string) (*Snapshot, error) {
	return nil, ErrUnsupportedPlatform
}

func (stubDriver) MountJunction(context.Context, *Snapshot, string) error {
	return ErrUnsupportedPlatform
}

func (stubDriver) UnmountJunction(context.Context, *Snapshot) error {
	return nil
}

func (stubDriver) RemoveShadow(context.Context, *Snapshot) error {
	return nil
}

func (stubDriver) ListShadows(context.Context, string) ([]*Snapshot, error) {
	return nil, nil
}
