package volsnapshot

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/pacepace/robocurse/internal/clock"
	"github.com/pacepace/robocurse/internal/rlog"
)

// RetryPolicy bounds snapshot-creation retries (spec.md §4.4: "retries
// up to N times with fixed delay on retryable errors").
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy matches the copier's own retry defaults
// (spec.md §4.6) since both sit behind the same fixed-delay model.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, Delay: 5 * time.Second}

// Manager implements WithSnapshot (spec.md §4.4).
type Manager struct {
	driver   Driver
	registry *Registry
	clk      clock.Clock
	retry    RetryPolicy
}

// NewManager builds a Manager over driver, persisting its tracking
// registry through registry.
func NewManager(driver Driver, registry *Registry, clk clock.Clock, retry RetryPolicy) *Manager {
	if clk == nil {
		clk = clock.Real{}
	}

	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryPolicy
	}

	return &Manager{driver: driver, registry: registry, clk: clk, retry: retry}
}

// Result is returned by WithSnapshot (spec.md §4.4).
type Result struct {
	Snapshot *Snapshot
	BodyErr  error
}

// WithSnapshot creates a snapshot covering source's volume (or, for a
// remote share, the share's hosting volume), invokes body with a path
// reachable through the snapshot, and releases the snapshot (junction
// first, then shadow) on every exit path: success, body error, panic,
// or cancellation (spec.md §4.4).
func (m *Manager) WithSnapshot(ctx context.Context, source VolumeSource, body func(snapshotSourcePath string) error) (Result, error) {
	snap, err := m.createWithRetry(ctx, source)
	if err != nil {
		return Result{}, err
	}

	if err := m.registry.Add(ctx, snap); err != nil {
		logMod(ctx).Warn("tracking registry update failed, continuing with unregistered shadow",
			rlog.String("shadowId", snap.ShadowID), rlog.Err(err))
	}

	snapshotPath := snap.ShadowPath

	if source.IsRemote {
		if err := m.driver.MountJunction(ctx, snap, source.JunctionMountPath); err != nil {
			m.release(ctx, snap)
			return Result{}, errors.Wrap(err, "mounting junction")
		}

		snapshotPath = source.JunctionMountPath
	}

	defer m.release(ctx, snap)

	bodyErr := runBody(ctx, body, snapshotPath)

	return Result{Snapshot: snap, BodyErr: bodyErr}, nil
}

// runBody invokes body and converts a panic into a returned error so
// WithSnapshot's deferred release always runs (spec.md §4.4: "In all
// exit paths (success, body error, panic, cancellation) release").
func runBody(ctx context.Context, body func(string) error, path string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("snapshot body panicked: %v", r)
		}
	}()

	return body(path)
}

func (m *Manager) release(ctx context.Context, snap *Snapshot) {
	if snap.Junction != nil {
		if err := m.driver.UnmountJunction(ctx, snap); err != nil {
			logMod(ctx).Warn("failed to unmount junction", rlog.String("shadowId", snap.ShadowID), rlog.Err(err))
		}
	}

	if err := m.driver.RemoveShadow(ctx, snap); err != nil {
		logMod(ctx).Warn("failed to remove shadow", rlog.String("shadowId", snap.ShadowID), rlog.Err(err))
		return
	}

	if err := m.registry.Remove(ctx, snap.ShadowID); err != nil {
		logMod(ctx).Warn("failed to drop shadow from tracking registry", rlog.String("shadowId", snap.ShadowID), rlog.Err(err))
	}
}

// VolumeSource names what WithSnapshot should snapshot: a local
// volume, or a remote share whose hosting volume gets snapshotted and
// re-exposed through a junction at JunctionMountPath.
type VolumeSource struct {
	Volume            string
	IsRemote          bool
	ServerName        string
	ShareLocalPath    string
	JunctionMountPath string
}

func (m *Manager) createWithRetry(ctx context.Context, source VolumeSource) (*Snapshot, error) {
	var lastErr error

	for attempt := 1; attempt <= m.retry.MaxAttempts; attempt++ {
		var (
			snap *Snapshot
			err  error
		)

		if source.IsRemote {
			snap, err = m.driver.CreateRemoteShadow(ctx, source.ServerName, source.ShareLocalPath)
		} else {
			snap, err = m.driver.CreateLocalShadow(ctx, source.Volume)
		}

		if err == nil {
			return snap, nil
		}

		lastErr = err

		if !IsRetryable(err) {
			return nil, errors.Wrap(err, "creating snapshot (non-retryable)")
		}

		logMod(ctx).Warn("retryable snapshot creation failure",
			rlog.Int("attempt", attempt), rlog.Err(err))

		if attempt == m.retry.MaxAttempts {
			break
		}

		if !clock.SleepInterruptibly(ctx, m.retry.Delay) {
			return nil, ctx.Err()
		}
	}

	return nil, errors.Wrapf(lastErr, "creating snapshot failed after %d attempts", m.retry.MaxAttempts)
}

// Registry exposes the tracking registry backing this Manager, for
// callers that need to list tracked shadows directly (e.g. the `robocurse
// snapshot list` command).
func (m *Manager) Registry() *Registry {
	return m.registry
}

// CreateTracked creates a shadow of volume, registers it, and returns it
// without releasing — the operator-facing counterpart to WithSnapshot's
// create-use-release cycle, for `robocurse snapshot create` where the
// shadow must outlive the command.
func (m *Manager) CreateTracked(ctx context.Context, volume string) (*Snapshot, error) {
	snap, err := m.createWithRetry(ctx, VolumeSource{Volume: volume})
	if err != nil {
		return nil, err
	}

	if err := m.registry.Add(ctx, snap); err != nil {
		return nil, errors.Wrap(err, "recording shadow in tracking registry")
	}

	return snap, nil
}

// RemoveByID removes one tracked shadow of volume by its shadow id,
// the single-snapshot counterpart to ApplyRetention's bulk sweep. A
// shadow missing from the tracking registry is not removed.
func (m *Manager) RemoveByID(ctx context.Context, volume, shadowID string) error {
	all, err := m.driver.ListShadows(ctx, volume)
	if err != nil {
		return errors.Wrap(err, "listing shadows")
	}

	for _, s := range all {
		if s.ShadowID != shadowID {
			continue
		}

		entries, err := m.registry.Load()
		if err != nil {
			return errors.Wrap(err, "loading tracking registry")
		}

		if !registered(entries, shadowID) {
			return errors.Errorf("shadow %q is not in the tracking registry", shadowID)
		}

		if err := m.driver.RemoveShadow(ctx, s); err != nil {
			return errors.Wrap(err, "removing shadow")
		}

		return errors.Wrap(m.registry.Remove(ctx, shadowID), "dropping shadow from tracking registry")
	}

	return errors.Errorf("no shadow %q found for volume %q", shadowID, volume)
}

// ApplyRetention enforces KeepCount for volume per spec.md §4.4: list
// all shadows, sort by CreatedAt ascending, delete the oldest
// count-KeepCount. Only shadows present in the tracking registry are
// eligible for deletion.
func (m *Manager) ApplyRetention(ctx context.Context, volume string, keepCount int) error {
	all, err := m.driver.ListShadows(ctx, volume)
	if err != nil {
		return errors.Wrap(err, "listing shadows for retention")
	}

	registryEntries, err := m.registry.Load()
	if err != nil {
		return errors.Wrap(err, "loading tracking registry for retention")
	}

	managed := make([]*Snapshot, 0, len(all))

	for _, s := range all {
		if registered(registryEntries, s.ShadowID) {
			managed = append(managed, s)
		}
	}

	sort.Slice(managed, func(i, j int) bool { return managed[i].CreatedAt.Before(managed[j].CreatedAt) })

	overflow := len(managed) - keepCount
	if overflow <= 0 {
		return nil
	}

	for _, s := range managed[:overflow] {
		if err := m.driver.RemoveShadow(ctx, s); err != nil {
			logMod(ctx).Warn("retention: failed to remove shadow", rlog.String("shadowId", s.ShadowID), rlog.Err(err))
			continue
		}

		if err := m.registry.Remove(ctx, s.ShadowID); err != nil {
			logMod(ctx).Warn("retention: failed to drop shadow from registry", rlog.String("shadowId", s.ShadowID), rlog.Err(err))
		}
	}

	return nil
}
