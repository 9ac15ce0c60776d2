//go:build windows

package volsnapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/mxk/go-vss"
)

// vssDriver is the production Driver, grounded on
// tests/os_snapshot_test/os_snapshot_windows_test.go's use of
// github.com/mxk/go-vss (vss.Get, vss.Create) and golang.org/x/sys/windows
// for junction plumbing (junction_windows.go).
type vssDriver struct{}

// NewDriver returns the Windows VSS-backed Driver.
func NewDriver() Driver { return &vssDriver{} }

func (d *vssDriver) CreateLocalShadow(ctx context.Context, volume string) (*Snapshot, error) {
	sc, err := vss.Create(volume)
	if err != nil {
		return nil, classifyVSSError("CreateLocalShadow", err)
	}

	return &Snapshot{
		ShadowID:     sc.ID,
		ShadowPath:   sc.DeviceObject,
		SourceVolume: volume,
		CreatedAt:    timeNow(),
		IsRemote:     false,
	}, nil
}

func (d *vssDriver) CreateRemoteShadow(ctx context.Context, serverName, shareLocalPath string) (*Snapshot, error) {
	sc, err := vss.Create(shareLocalPath)
	if err != nil {
		return nil, classifyVSSError("CreateRemoteShadow", err)
	}

	return &Snapshot{
		ShadowID:       sc.ID,
		ShadowPath:     sc.DeviceObject,
		SourceVolume:   shareLocalPath,
		ServerName:     serverName,
		ShareLocalPath: shareLocalPath,
		CreatedAt:      timeNow(),
		IsRemote:       true,
	}, nil
}

func (d *vssDriver) RemoveShadow(ctx context.Context, snap *Snapshot) error {
	sc, err := vss.Get(snap.ShadowID)
	if err != nil {
		// Already gone: removal is idempotent per spec.md §4.4
		// reconciliation ("entries whose shadow is gone -> drop").
		return nil
	}

	if err := sc.Remove(); err != nil {
		return classifyVSSError("RemoveShadow", err)
	}

	return nil
}

func (d *vssDriver) ListShadows(ctx context.Context, volume string) ([]*Snapshot, error) {
	all, err := vss.List()
	if err != nil {
		return nil, classifyVSSError("ListShadows", err)
	}

	out := make([]*Snapshot, 0, len(all))

	for _, sc := range all {
		if sc.VolumeName != volume {
			continue
		}

		out = append(out, &Snapshot{
			ShadowID:     sc.ID,
			ShadowPath:   sc.DeviceObject,
			SourceVolume: volume,
			CreatedAt:    sc.InstallDate,
		})
	}

	return out, nil
}

// classifyVSSError wraps err as a *DriverError. go-vss surfaces COM
// HRESULTs as plain error strings, so only the phrase-matching
// fallback in retry.go applies here (spec.md §4.4: "fall back to a
// small English-phrase pattern list").
func classifyVSSError(op string, err error) error {
	return NewDriverError(op, fmt.Errorf("vss: %w", err))
}

func timeNow() time.Time { return time.Now() }
