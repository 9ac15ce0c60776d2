package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/stretchr/testify/require"

	"github.com/pacepace/robocurse/external"
	"github.com/pacepace/robocurse/internal/clock"
	"github.com/pacepace/robocurse/profile"
	"github.com/pacepace/robocurse/volsnapshot"
)

// fakeSnapshotDriver is an in-memory volsnapshot.Driver, grounded on
// the pattern volsnapshot/manager_test.go uses for its own fakeDriver.
type fakeSnapshotDriver struct {
	shadows []*volsnapshot.Snapshot
	nextID  int
}

func (d *fakeSnapshotDriver) CreateLocalShadow(_ context.Context, volume string) (*volsnapshot.Snapshot, error) {
	d.nextID++
	s := &volsnapshot.Snapshot{
		ShadowID:     fmt.Sprintf("shadow-%d", d.nextID),
		ShadowPath:   filepath.Join(`\\?\GLOBALROOT\Device\Shadow`, fmt.Sprintf("%d", d.nextID)),
		SourceVolume: volume,
		CreatedAt:    time.Now(),
	}
	d.shadows = append(d.shadows, s)

	return s, nil
}

func (d *fakeSnapshotDriver) CreateRemoteShadow(context.Context, string, string) (*volsnapshot.Snapshot, error) {
	return nil, volsnapshot.ErrUnsupportedPlatform
}

func (d *fakeSnapshotDriver) MountJunction(context.Context, *volsnapshot.Snapshot, string) error {
	return nil
}

func (d *fakeSnapshotDriver) UnmountJunction(context.Context, *volsnapshot.Snapshot) error {
	return nil
}

func (d *fakeSnapshotDriver) RemoveShadow(_ context.Context, snap *volsnapshot.Snapshot) error {
	for i, s := range d.shadows {
		if s.ShadowID == snap.ShadowID {
			d.shadows = append(d.shadows[:i], d.shadows[i+1:]...)
			return nil
		}
	}

	return nil
}

func (d *fakeSnapshotDriver) ListShadows(_ context.Context, volume string) ([]*volsnapshot.Snapshot, error) {
	var out []*volsnapshot.Snapshot

	for _, s := range d.shadows {
		if s.SourceVolume == volume {
			out = append(out, s)
		}
	}

	return out, nil
}

// snapshotAppServices wires a real volsnapshot.Manager over a fake
// driver, so command_snapshot.go/command_retention.go exercise their
// actual production call path.
type snapshotAppServices struct {
	mgr       *volsnapshot.Manager
	stdoutBuf bytes.Buffer
	stderrBuf bytes.Buffer
}

func newSnapshotAppServices(t *testing.T, driver *fakeSnapshotDriver) *snapshotAppServices {
	t.Helper()

	dir := t.TempDir()
	registry := volsnapshot.NewRegistry(filepath.Join(dir, "registry.json"), filepath.Join(dir, "registry.lock"), clock.Real{})
	mgr := volsnapshot.NewManager(driver, registry, clock.Real{}, volsnapshot.RetryPolicy{MaxAttempts: 1, Delay: time.Millisecond})

	return &snapshotAppServices{mgr: mgr}
}

func (s *snapshotAppServices) noopAction(act func(ctx context.Context) error) func(*kingpin.ParseContext) error {
	return func(*kingpin.ParseContext) error {
		return act(context.Background())
	}
}
func (s *snapshotAppServices) runProfile(context.Context, profile.Profile, bool) (external.Status, error) {
	return external.Success, nil
}
func (s *snapshotAppServices) loadProfiles() ([]profile.Profile, error)       { return nil, nil }
func (s *snapshotAppServices) snapshotManager() (*volsnapshot.Manager, error) { return s.mgr, nil }
func (s *snapshotAppServices) stdout() io.Writer                             { return &s.stdoutBuf }
func (s *snapshotAppServices) stderr() io.Writer                             { return &s.stderrBuf }

func TestSnapshotCreateListDelete(t *testing.T) {
	driver := &fakeSnapshotDriver{}
	svc := newSnapshotAppServices(t, driver)

	create := &commandSnapshotCreate{volume: `C:`, svc: svc}
	require.NoError(t, create.run(context.Background()))
	require.Contains(t, svc.stdoutBuf.String(), "shadow-1")

	svc.stdoutBuf.Reset()

	list := &commandSnapshotList{volume: `C:`, svc: svc}
	require.NoError(t, list.run(context.Background()))
	require.Contains(t, svc.stdoutBuf.String(), "shadow-1")

	del := &commandSnapshotDelete{volume: `C:`, shadowID: "shadow-1", svc: svc}
	require.NoError(t, del.run(context.Background()))

	svc.stdoutBuf.Reset()
	require.NoError(t, list.run(context.Background()))
	require.Empty(t, svc.stdoutBuf.String())
}

func TestSnapshotDeleteUnknownIDErrors(t *testing.T) {
	driver := &fakeSnapshotDriver{}
	svc := newSnapshotAppServices(t, driver)

	del := &commandSnapshotDelete{volume: `C:`, shadowID: "nope", svc: svc}
	err := del.run(context.Background())
	require.Error(t, err)
	require.IsType(t, &PreflightError{}, err)
}
