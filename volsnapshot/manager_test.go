package volsnapshot_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pacepace/robocurse/internal/clock"
	"github.com/pacepace/robocurse/volsnapshot"
)

type fakeDriver struct {
	createAttempts   atomic.Int32
	failUntilAttempt int32
	createErr        error // non-retryable error to return, if set

	mounted   atomic.Bool
	unmounted atomic.Bool
	removed   atomic.Bool

	shadows []*volsnapshot.Snapshot
}

func (d *fakeDriver) CreateLocalShadow(_ context.Context, volume string) (*volsnapshot.Snapshot, error) {
	n := d.createAttempts.Add(1)

	if d.createErr != nil {
		return nil, d.createErr
	}

	if n < d.failUntilAttempt {
		return nil, volsnapshot.NewDriverError("Create", fmt.Errorf("snapshot creation timed out"))
	}

	return &volsnapshot.Snapshot{ShadowID: "shadow-1", ShadowPath: `\\?\GLOBALROOT\Device\Shadow1`, SourceVolume: volume, CreatedAt: time.Now()}, nil
}

func (d *fakeDriver) CreateRemoteShadow(_ context.Context, server, share string) (*volsnapshot.Snapshot, error) {
	return &volsnapshot.Snapshot{ShadowID: "shadow-remote", ShadowPath: `\\?\GLOBALROOT\Device\ShadowR`, SourceVolume: share, ServerName: server, IsRemote: true, CreatedAt: time.Now()}, nil
}

func (d *fakeDriver) MountJunction(_ context.Context, snap *volsnapshot.Snapshot, clientPath string) error {
	d.mounted.Store(true)
	snap.Junction = &volsnapshot.JunctionInfo{LocalJunctionPath: clientPath, ClientAccessiblePath: clientPath}

	return nil
}

func (d *fakeDriver) UnmountJunction(_ context.Context, snap *volsnapshot.Snapshot) error {
	d.unmounted.Store(true)
	return nil
}

func (d *fakeDriver) RemoveShadow(_ context.Context, snap *volsnapshot.Snapshot) error {
	d.removed.Store(true)
	return nil
}

func (d *fakeDriver) ListShadows(_ context.Context, volume string) ([]*volsnapshot.Snapshot, error) {
	return d.shadows, nil
}

func newTestRegistry(t *testing.T) *volsnapshot.Registry {
	t.Helper()

	dir := t.TempDir()
	return volsnapshot.NewRegistry(filepath.Join(dir, "shadows.json"), filepath.Join(dir, "shadows.lock"), clock.Real{})
}

func TestWithSnapshotLocalSuccess(t *testing.T) {
	driver := &fakeDriver{}
	reg := newTestRegistry(t)
	mgr := volsnapshot.NewManager(driver, reg, clock.Real{}, volsnapshot.RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond})

	var seenPath string

	result, err := mgr.WithSnapshot(context.Background(), volsnapshot.VolumeSource{Volume: `C:`}, func(path string) error {
		seenPath = path
		return nil
	})

	require.NoError(t, err)
	require.NoError(t, result.BodyErr)
	require.Equal(t, `\\?\GLOBALROOT\Device\Shadow1`, seenPath)
	require.True(t, driver.removed.Load())
	require.False(t, driver.mounted.Load())
}

func TestWithSnapshotRemoteMountsJunction(t *testing.T) {
	driver := &fakeDriver{}
	reg := newTestRegistry(t)
	mgr := volsnapshot.NewManager(driver, reg, clock.Real{}, volsnapshot.RetryPolicy{MaxAttempts: 1, Delay: time.Millisecond})

	junctionPath := filepath.Join(t.TempDir(), "junction")

	_, err := mgr.WithSnapshot(context.Background(), volsnapshot.VolumeSource{
		IsRemote: true, ServerName: "fileserver01", ShareLocalPath: `D:\Shares\Data`, JunctionMountPath: junctionPath,
	}, func(path string) error {
		require.Equal(t, junctionPath, path)
		return nil
	})

	require.NoError(t, err)
	require.True(t, driver.mounted.Load())
	require.True(t, driver.unmounted.Load())
}

func TestWithSnapshotRetriesRetryableFailures(t *testing.T) {
	driver := &fakeDriver{failUntilAttempt: 3}
	reg := newTestRegistry(t)
	mgr := volsnapshot.NewManager(driver, reg, clock.Real{}, volsnapshot.RetryPolicy{MaxAttempts: 5, Delay: time.Millisecond})

	_, err := mgr.WithSnapshot(context.Background(), volsnapshot.VolumeSource{Volume: `C:`}, func(string) error { return nil })

	require.NoError(t, err)
	require.EqualValues(t, 3, driver.createAttempts.Load())
}

func TestWithSnapshotNonRetryableFailsImmediately(t *testing.T) {
	driver := &fakeDriver{createErr: volsnapshot.NewDriverError("Create", fmt.Errorf("access is denied"))}
	reg := newTestRegistry(t)
	mgr := volsnapshot.NewManager(driver, reg, clock.Real{}, volsnapshot.RetryPolicy{MaxAttempts: 5, Delay: time.Millisecond})

	_, err := mgr.WithSnapshot(context.Background(), volsnapshot.VolumeSource{Volume: `C:`}, func(string) error { return nil })

	require.Error(t, err)
	require.EqualValues(t, 1, driver.createAttempts.Load())
}

func TestWithSnapshotReleasesOnBodyPanic(t *testing.T) {
	driver := &fakeDriver{}
	reg := newTestRegistry(t)
	mgr := volsnapshot.NewManager(driver, reg, clock.Real{}, volsnapshot.RetryPolicy{MaxAttempts: 1, Delay: time.Millisecond})

	result, err := mgr.WithSnapshot(context.Background(), volsnapshot.VolumeSource{Volume: `C:`}, func(string) error {
		panic("copier subprocess crashed")
	})

	require.NoError(t, err)
	require.Error(t, result.BodyErr)
	require.Contains(t, result.BodyErr.Error(), "panicked")
	require.True(t, driver.removed.Load())
}

func TestWithSnapshotReleasesOnBodyError(t *testing.T) {
	driver := &fakeDriver{}
	reg := newTestRegistry(t)
	mgr := volsnapshot.NewManager(driver, reg, clock.Real{}, volsnapshot.RetryPolicy{MaxAttempts: 1, Delay: time.Millisecond})

	result, err := mgr.WithSnapshot(context.Background(), volsnapshot.VolumeSource{Volume: `C:`}, func(string) error {
		return fmt.Errorf("copy failed")
	})

	require.NoError(t, err)
	require.Error(t, result.BodyErr)
	require.True(t, driver.removed.Load())
}

func TestApplyRetentionDeletesOnlyOldestManagedShadows(t *testing.T) {
	driver := &fakeDriver{}
	reg := newTestRegistry(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	shadows := []*volsnapshot.Snapshot{
		{ShadowID: "s1", SourceVolume: `C:`, CreatedAt: base},
		{ShadowID: "s2", SourceVolume: `C:`, CreatedAt: base.Add(time.Hour)},
		{ShadowID: "s3", SourceVolume: `C:`, CreatedAt: base.Add(2 * time.Hour)},
		{ShadowID: "external", SourceVolume: `C:`, CreatedAt: base.Add(-time.Hour)}, // not in registry
	}
	driver.shadows = shadows

	for _, s := range shadows[:3] {
		require.NoError(t, reg.Add(context.Background(), s))
	}

	mgr := volsnapshot.NewManager(driver, reg, clock.Real{}, volsnapshot.DefaultRetryPolicy)
	require.NoError(t, mgr.ApplyRetention(context.Background(), `C:`, 2))

	entries, err := reg.Load()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	ids := map[string]bool{}
	for _, e := range entries {
		ids[e.ShadowID] = true
	}

	require.False(t, ids["s1"])
	require.True(t, ids["s2"])
	require.True(t, ids["s3"])
}

func TestApplyRetentionNoopWhenUnderKeepCount(t *testing.T) {
	driver := &fakeDriver{}
	reg := newTestRegistry(t)
	mgr := volsnapshot.NewManager(driver, reg, clock.Real{}, volsnapshot.DefaultRetryPolicy)

	require.NoError(t, mgr.ApplyRetention(context.Background(), `C:`, 5))
}

func TestCreateTrackedRegistersWithoutReleasing(t *testing.T) {
	driver := &fakeDriver{}
	reg := newTestRegistry(t)
	mgr := volsnapshot.NewManager(driver, reg, clock.Real{}, volsnapshot.DefaultRetryPolicy)

	snap, err := mgr.CreateTracked(context.Background(), `C:`)
	require.NoError(t, err)
	require.Equal(t, "shadow-1", snap.ShadowID)
	require.False(t, driver.removed.Load())

	entries, err := reg.Load()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "shadow-1", entries[0].ShadowID)
}

func TestRemoveByIDDropsTrackedShadow(t *testing.T) {
	driver := &fakeDriver{
		shadows: []*volsnapshot.Snapshot{{ShadowID: "shadow-1", SourceVolume: `C:`, CreatedAt: time.Now()}},
	}
	reg := newTestRegistry(t)
	mgr := volsnapshot.NewManager(driver, reg, clock.Real{}, volsnapshot.DefaultRetryPolicy)

	require.NoError(t, reg.Add(context.Background(), driver.shadows[0]))
	require.NoError(t, mgr.RemoveByID(context.Background(), `C:`, "shadow-1"))
	require.True(t, driver.removed.Load())

	entries, err := reg.Load()
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRemoveByIDUnknownIDErrors(t *testing.T) {
	driver := &fakeDriver{}
	reg := newTestRegistry(t)
	mgr := volsnapshot.NewManager(driver, reg, clock.Real{}, volsnapshot.DefaultRetryPolicy)

	err := mgr.RemoveByID(context.Background(), `C:`, "missing")
	require.Error(t, err)
}
