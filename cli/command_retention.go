package cli

import (
	"context"

	"github.com/pkg/errors"
)

// commandRetention implements `robocurse retention apply`, the operator
// hook onto the Snapshot Manager's ApplyRetention (spec.md §4.4).
type commandRetention struct {
	apply commandRetentionApply
}

func (c *commandRetention) setup(svc appServices, parent commandParent) {
	cmd := parent.Command("retention", "Apply snapshot retention policy")
	c.apply.setup(svc, cmd)
}

type commandRetentionApply struct {
	volume    string
	keepCount int

	svc appServices
}

func (c *commandRetentionApply) setup(svc appServices, parent commandParent) {
	cmd := parent.Command("apply", "Delete tracked snapshots beyond the keep count")
	cmd.Arg("volume", "Volume whose snapshots should be pruned").Required().StringVar(&c.volume)
	cmd.Flag("keep", "Number of most recent snapshots to retain").Default("1").IntVar(&c.keepCount)

	c.svc = svc
	cmd.Action(svc.noopAction(c.run))
}

func (c *commandRetentionApply) run(ctx context.Context) error {
	mgr, err := c.svc.snapshotManager()
	if err != nil {
		return &PreflightError{Err: err}
	}

	if err := mgr.ApplyRetention(ctx, c.volume, c.keepCount); err != nil {
		return &PreflightError{Err: errors.Wrap(err, "applying retention policy")}
	}

	return nil
}
