package dirtree

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// BuildProfiles profiles each path, returning path -> DirectoryProfile.
// Fewer than 3 paths profile sequentially; otherwise up to parallelism
// workers run concurrently (spec.md §4.2). Grounded on golang.org/x/sync
// (semaphore), the same package the teacher uses for bounded
// concurrency in cli/command_repository_sync.go (errgroup).
func (c *Cache) BuildProfiles(ctx context.Context, paths []string, parallelism int) map[string]DirectoryProfile {
	results := make(map[string]DirectoryProfile, len(paths))

	if len(paths) < 3 {
		for _, p := range paths {
			results[p] = c.GetProfile(ctx, p)
		}

		return results
	}

	if parallelism < 1 {
		parallelism = 1
	}

	sem := semaphore.NewWeighted(int64(parallelism))

	var mu sync.Mutex

	var wg sync.WaitGroup

	for _, p := range paths {
		p := p

		if err := sem.Acquire(ctx, 1); err != nil {
			// context cancelled: record as failure for remaining paths.
			mu.Lock()
			results[p] = failedProfile(p, err)
			mu.Unlock()

			continue
		}

		wg.Add(1)

		go func() {
			defer wg.Done()
			defer sem.Release(1)

			profile := c.GetProfile(ctx, p)

			mu.Lock()
			results[p] = profile
			mu.Unlock()
		}()
	}

	wg.Wait()

	return results
}
