package dirtree_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pacepace/robocurse/internal/clock"

	"github.com/pacepace/robocurse/dirtree"
)

func TestCacheHitsAndMisses(t *testing.T) {
	lister := &fakeLister{output: "New File 10 a.txt"}
	clk := clock.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	c := dirtree.NewCache(lister, 10, time.Hour, clk)

	p1 := c.GetProfile(context.Background(), `C:\Data`)
	require.True(t, p1.ProfileSuccess)
	require.Equal(t, int64(10), p1.TotalSize)

	stats := c.Stats()
	require.Equal(t, int64(1), stats.Misses)
	require.Equal(t, int64(0), stats.Hits)

	p2 := c.GetProfile(context.Background(), `c:\data`) // case-insensitive key
	require.Equal(t, p1.TotalSize, p2.TotalSize)

	stats = c.Stats()
	require.Equal(t, int64(1), stats.Hits)
}

func TestCacheExpiresAfterMaxAge(t *testing.T) {
	lister := &fakeLister{output: "New File 10 a.txt"}
	clk := clock.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	c := dirtree.NewCache(lister, 10, time.Minute, clk)

	c.GetProfile(context.Background(), `C:\Data`)
	clk.Advance(2 * time.Minute)
	c.GetProfile(context.Background(), `C:\Data`)

	stats := c.Stats()
	require.Equal(t, int64(2), stats.Misses)
}

func TestCacheFailureNeverThrows(t *testing.T) {
	lister := &fakeLister{err: fmt.Errorf("boom")}
	c := dirtree.NewCache(lister, 10, time.Hour, nil)

	p := c.GetProfile(context.Background(), `C:\Missing`)
	require.False(t, p.ProfileSuccess)
	require.Contains(t, p.ProfileError, "boom")
}

func TestCacheApproximateEviction(t *testing.T) {
	lister := &fakeLister{output: "New File 1 a.txt"}
	clk := clock.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	c := dirtree.NewCache(lister, 5, time.Hour, clk)

	for i := 0; i < 20; i++ {
		c.GetProfile(context.Background(), fmt.Sprintf(`C:\Data%d`, i))
		clk.Advance(time.Second)
	}

	stats := c.Stats()
	require.Greater(t, stats.Evictions, int64(0))
}

func TestBuildProfilesSequentialBelowThreshold(t *testing.T) {
	lister := &fakeLister{output: "New File 1 a.txt"}
	c := dirtree.NewCache(lister, 10, time.Hour, nil)

	results := c.BuildProfiles(context.Background(), []string{`C:\A`, `C:\B`}, 4)
	require.Len(t, results, 2)
}

func TestBuildProfilesParallel(t *testing.T) {
	lister := &fakeLister{output: "New File 1 a.txt"}
	c := dirtree.NewCache(lister, 10, time.Hour, nil)

	paths := []string{`C:\A`, `C:\B`, `C:\C`, `C:\D`, `C:\E`}
	results := c.BuildProfiles(context.Background(), paths, 3)
	require.Len(t, results, len(paths))

	for _, p := range paths {
		require.True(t, results[p].ProfileSuccess)
	}
}
