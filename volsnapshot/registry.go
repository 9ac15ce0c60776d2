package volsnapshot

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/pacepace/robocurse/internal/atomicwrite"
	"github.com/pacepace/robocurse/internal/clock"
	"github.com/pacepace/robocurse/internal/rlog"
)

var logMod = rlog.Module("robocurse/volsnapshot")

// Registry is the JSON tracking file of every shadow this process has
// created (spec.md §4.4). All mutations are serialized through a
// NamedMutex and persisted with write-temp->rename (+.bak), matching
// the Checkpoint Store's persistence pattern (spec.md §4.7).
type Registry struct {
	path  string
	mutex *atomicwrite.NamedMutex
	clk   clock.Clock

	lockTimeout    time.Duration
	lockRetryDelay time.Duration
}

// NewRegistry opens the tracking registry backed by path, guarded by a
// lock file at lockPath (spec.md §5: "scope its name by user/session").
func NewRegistry(path, lockPath string, clk clock.Clock) *Registry {
	if clk == nil {
		clk = clock.Real{}
	}

	return &Registry{
		path:           path,
		mutex:          atomicwrite.NewNamedMutex(lockPath),
		clk:            clk,
		lockTimeout:    30 * time.Second,
		lockRetryDelay: 100 * time.Millisecond,
	}
}

// Load reads the current registry entries. A missing file is treated
// as an empty registry (first run).
func (r *Registry) Load() ([]RegistryEntry, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, errors.Wrap(err, "reading tracking registry")
	}

	var entries []RegistryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrap(err, "parsing tracking registry")
	}

	return entries, nil
}

func (r *Registry) save(entries []RegistryEntry) error {
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.Before(entries[j].CreatedAt) })

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding tracking registry")
	}

	return atomicwrite.WriteFileKeepingBackup(r.path, data)
}

// Add appends an entry for a newly created shadow, serialized by the
// named mutex (spec.md §4.4: "All registry mutations are serialized by
// a named, session-scoped mutex with timeout").
func (r *Registry) Add(ctx context.Context, snap *Snapshot) error {
	return r.mutex.WithLock(ctx, r.lockTimeout, r.lockRetryDelay, func() error {
		entries, err := r.Load()
		if err != nil {
			return err
		}

		entries = append(entries, RegistryEntry{
			ShadowID:     snap.ShadowID,
			SourceVolume: snap.SourceVolume,
			CreatedAt:    snap.CreatedAt,
			ServerName:   snap.ServerName,
			IsRemote:     snap.IsRemote,
		})

		return r.save(entries)
	})
}

// Remove drops shadowID from the registry.
func (r *Registry) Remove(ctx context.Context, shadowID string) error {
	return r.mutex.WithLock(ctx, r.lockTimeout, r.lockRetryDelay, func() error {
		entries, err := r.Load()
		if err != nil {
			return err
		}

		kept := entries[:0]

		for _, e := range entries {
			if e.ShadowID != shadowID {
				kept = append(kept, e)
			}
		}

		return r.save(kept)
	})
}

// orphanThreshold is how long an unregistered, tool-created-looking
// shadow is left alone before Reconcile removes it (spec.md §4.4:
// "if older than the configured orphan threshold, remove the shadow").
const orphanThreshold = 24 * time.Hour

// Reconcile drops registry entries whose shadow no longer exists and
// removes orphaned shadows (those missing from the registry but older
// than orphanThreshold) for every volume in volumes (spec.md §4.4).
func (r *Registry) Reconcile(ctx context.Context, driver Driver, volumes []string) error {
	return r.mutex.WithLock(ctx, r.lockTimeout, r.lockRetryDelay, func() error {
		entries, err := r.Load()
		if err != nil {
			return err
		}

		kept := make([]RegistryEntry, 0, len(entries))
		listed := make(map[string]bool, len(volumes))

		for _, vol := range volumes {
			actual, err := driver.ListShadows(ctx, vol)
			if err != nil {
				logMod(ctx).Warn("reconcile: could not list shadows", rlog.String("volume", vol), rlog.Err(err))
				continue
			}

			listed[vol] = true

			actualByID := make(map[string]*Snapshot, len(actual))
			for _, s := range actual {
				actualByID[s.ShadowID] = s
			}

			for _, e := range entries {
				if e.SourceVolume != vol {
					continue
				}

				if _, exists := actualByID[e.ShadowID]; exists {
					kept = append(kept, e)
				}
				// else: shadow gone, drop the registry row by omission.
			}

			for _, s := range actual {
				if registered(entries, s.ShadowID) {
					continue
				}

				if r.clk.Now().Sub(s.CreatedAt) > orphanThreshold {
					logMod(ctx).Warn("removing orphaned shadow", rlog.String("shadowId", s.ShadowID))

					if err := driver.RemoveShadow(ctx, s); err != nil {
						logMod(ctx).Warn("failed removing orphan shadow", rlog.String("shadowId", s.ShadowID), rlog.Err(err))
					}
				}
			}
		}

		// Entries of volumes that were not listed cannot be checked; keep them.
		for _, e := range entries {
			if !listed[e.SourceVolume] {
				kept = append(kept, e)
			}
		}

		return r.save(kept)
	})
}

func registered(entries []RegistryEntry, shadowID string) bool {
	for _, e := range entries {
		if e.ShadowID == shadowID {
			return true
		}
	}

	return false
}
