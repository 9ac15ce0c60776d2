package cli

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// commandSnapshot implements `robocurse snapshot list|create|delete`,
// a direct operator-facing wrapper around the Snapshot Manager's
// tracking registry and driver (spec.md §4.4).
type commandSnapshot struct {
	list   commandSnapshotList
	create commandSnapshotCreate
	delete commandSnapshotDelete
}

func (c *commandSnapshot) setup(svc appServices, parent commandParent) {
	cmd := parent.Command("snapshot", "Manage volume snapshots")
	c.list.setup(svc, cmd)
	c.create.setup(svc, cmd)
	c.delete.setup(svc, cmd)
}

type commandSnapshotList struct {
	volume string
	svc    appServices
}

func (c *commandSnapshotList) setup(svc appServices, parent commandParent) {
	cmd := parent.Command("list", "List tracked snapshots")
	cmd.Arg("volume", "Volume to list shadows for").Required().StringVar(&c.volume)

	c.svc = svc
	cmd.Action(svc.noopAction(c.run))
}

func (c *commandSnapshotList) run(ctx context.Context) error {
	mgr, err := c.svc.snapshotManager()
	if err != nil {
		return &PreflightError{Err: err}
	}

	entries, err := mgr.Registry().Load()
	if err != nil {
		return &PreflightError{Err: errors.Wrap(err, "loading tracking registry")}
	}

	for _, e := range entries {
		if e.SourceVolume == c.volume {
			fmt.Fprintf(c.svc.stdout(), "%s\t%s\t%s\n", e.ShadowID, e.SourceVolume, e.CreatedAt.Format("2006-01-02T15:04:05Z07:00")) //nolint:errcheck
		}
	}

	return nil
}

type commandSnapshotCreate struct {
	volume string
	svc    appServices
}

func (c *commandSnapshotCreate) setup(svc appServices, parent commandParent) {
	cmd := parent.Command("create", "Create a snapshot of a volume and print its shadow id")
	cmd.Arg("volume", "Volume to snapshot").Required().StringVar(&c.volume)

	c.svc = svc
	cmd.Action(svc.noopAction(c.run))
}

func (c *commandSnapshotCreate) run(ctx context.Context) error {
	mgr, err := c.svc.snapshotManager()
	if err != nil {
		return &PreflightError{Err: err}
	}

	snap, err := mgr.CreateTracked(ctx, c.volume)
	if err != nil {
		return &PreflightError{Err: errors.Wrap(err, "creating snapshot")}
	}

	fmt.Fprintf(c.svc.stdout(), "%s\n", snap.ShadowID) //nolint:errcheck

	return nil
}

type commandSnapshotDelete struct {
	shadowID string
	volume   string
	svc      appServices
}

func (c *commandSnapshotDelete) setup(svc appServices, parent commandParent) {
	cmd := parent.Command("delete", "Remove a tracked snapshot by shadow id")
	cmd.Arg("volume", "Volume the shadow belongs to").Required().StringVar(&c.volume)
	cmd.Arg("shadow-id", "Shadow id to remove").Required().StringVar(&c.shadowID)

	c.svc = svc
	cmd.Action(svc.noopAction(c.run))
}

func (c *commandSnapshotDelete) run(ctx context.Context) error {
	mgr, err := c.svc.snapshotManager()
	if err != nil {
		return &PreflightError{Err: err}
	}

	if err := mgr.RemoveByID(ctx, c.volume, c.shadowID); err != nil {
		return &PreflightError{Err: errors.Wrap(err, "deleting snapshot")}
	}

	return nil
}
