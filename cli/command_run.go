package cli

import (
	"context"

	"github.com/pkg/errors"

	"github.com/pacepace/robocurse/profile"
)

// commandRun implements `robocurse run`, the entry point for actually
// replicating one or every enabled profile (spec.md §1, §6).
type commandRun struct {
	profileName string
	all         bool
	dryRun      bool

	svc appServices
}

func (c *commandRun) setup(svc appServices, parent commandParent) {
	cmd := parent.Command("run", "Replicate one or more profiles")
	cmd.Arg("profile", "Name of the profile to run (omit with --all)").StringVar(&c.profileName)
	cmd.Flag("all", "Run every enabled profile from the configuration file").BoolVar(&c.all)
	cmd.Flag("dry-run", "Scan and chunk but do not invoke the copier").BoolVar(&c.dryRun)

	c.svc = svc
	cmd.Action(svc.noopAction(c.run))
}

func (c *commandRun) run(ctx context.Context) error {
	if !c.all && c.profileName == "" {
		return errors.New("specify a profile name or pass --all")
	}

	profiles, err := c.svc.loadProfiles()
	if err != nil {
		return &PreflightError{Err: err}
	}

	selected, err := c.selectProfiles(profiles)
	if err != nil {
		return err
	}

	var firstErr error

	for _, p := range selected {
		if _, err := c.svc.runProfile(ctx, p, c.dryRun); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

func (c *commandRun) selectProfiles(profiles []profile.Profile) ([]profile.Profile, error) {
	if c.all {
		selected := make([]profile.Profile, 0, len(profiles))

		for _, p := range profiles {
			if p.Enabled {
				selected = append(selected, p)
			}
		}

		return selected, nil
	}

	for _, p := range profiles {
		if p.Name == c.profileName {
			return []profile.Profile{p}, nil
		}
	}

	return nil, &PreflightError{Err: errors.Errorf("no profile named %q in configuration", c.profileName)}
}
