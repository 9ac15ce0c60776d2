package chunker_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pacepace/robocurse/chunker"
	"github.com/pacepace/robocurse/dirtree"
	"github.com/pacepace/robocurse/profile"
)

type fakeLister struct{ output string }

func (f *fakeLister) List(_ context.Context, _ string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.output)), nil
}

func buildTree(t *testing.T, lines []string) *dirtree.Node {
	t.Helper()

	tree, err := dirtree.Build(context.Background(), &fakeLister{output: strings.Join(lines, "\n")}, `C:\Data`, 0, nil)
	require.NoError(t, err)

	return tree
}

func TestInvalidLimits(t *testing.T) {
	tree := buildTree(t, []string{`New File 1 a.txt`})

	_, err := chunker.New().Chunk(context.Background(), tree, `C:\Data`, `E:\Dest`, profile.Limits{
		MaxSizeBytes: 10,
		MinSizeBytes: 10,
	})
	require.Error(t, err)

	var ile *chunker.InvalidLimitsError
	require.ErrorAs(t, err, &ile)
}

func TestSmallTreeEmitsOneChunk(t *testing.T) {
	tree := buildTree(t, []string{`New File 100 a.txt`, `New File 200 Sub\b.txt`})

	chunks, err := chunker.New().Chunk(context.Background(), tree, `C:\Data`, `E:\Dest`, profile.Limits{
		MaxSizeBytes: 1_000,
		MaxFiles:     100,
		MaxDepth:     -1,
		MinSizeBytes: 1,
	})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.False(t, chunks[0].IsFilesOnly)
	require.Equal(t, `E:\Dest`, chunks[0].DestinationPath)
}

func TestFilesOnlyChunkEmittedAlongsideChildren(t *testing.T) {
	// Directory D has 3 direct files (1KB) plus 3 oversized children.
	lines := []string{
		`New File 300 a.txt`,
		`New File 400 b.txt`,
		`New File 300 c.txt`,
		`New File 2000 Child1\x.txt`,
		`New File 2000 Child2\y.txt`,
		`New File 2000 Child3\z.txt`,
	}
	tree := buildTree(t, lines)

	chunks, err := chunker.New().Chunk(context.Background(), tree, `C:\Data`, `E:\Dest`, profile.Limits{
		MaxSizeBytes: 1500,
		MaxFiles:     100,
		MaxDepth:     -1,
		MinSizeBytes: 1,
	})
	require.NoError(t, err)

	var filesOnly *chunker.Chunk

	childChunks := 0

	for _, c := range chunks {
		if c.IsFilesOnly {
			filesOnly = c
		} else if c.SourcePath != `C:\Data` {
			childChunks++
		}
	}

	require.NotNil(t, filesOnly)
	require.Equal(t, int64(1000), filesOnly.EstimatedSize)
	require.Equal(t, int64(3), filesOnly.EstimatedFiles)
	require.Equal(t, 3, childChunks)
}

func TestMaxDepthExceptionEmitsOverThresholdChunk(t *testing.T) {
	lines := []string{`New File 100000 Sub\a.txt`}
	tree := buildTree(t, lines)

	chunks, err := chunker.New().Chunk(context.Background(), tree, `C:\Data`, `E:\Dest`, profile.Limits{
		MaxSizeBytes: 10,
		MaxFiles:     1,
		MaxDepth:     0,
		MinSizeBytes: 1,
	})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.Greater(t, chunks[0].EstimatedSize, int64(10))
}

func TestMinSizePreventsFragmentation(t *testing.T) {
	lines := []string{`New File 5 Sub\a.txt`}
	tree := buildTree(t, lines)

	chunks, err := chunker.New().Chunk(context.Background(), tree, `C:\Data`, `E:\Dest`, profile.Limits{
		MaxSizeBytes: 2000,
		MaxFiles:     0,
		MaxDepth:     -1,
		MinSizeBytes: 1000,
	})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
}

func TestChunkIdsUniqueAndMonotonic(t *testing.T) {
	lines := []string{
		`New File 2000 A\x.txt`,
		`New File 2000 B\y.txt`,
	}
	tree := buildTree(t, lines)

	c := chunker.New()
	chunks, err := c.Chunk(context.Background(), tree, `C:\Data`, `E:\Dest`, profile.Limits{
		MaxSizeBytes: 1,
		MaxFiles:     1,
		MaxDepth:     -1,
		MinSizeBytes: 0,
	})
	require.NoError(t, err)

	seen := map[int64]bool{}
	var prev int64
	for _, c := range chunks {
		require.False(t, seen[c.ChunkID])
		seen[c.ChunkID] = true
		require.Greater(t, c.ChunkID, prev)
		prev = c.ChunkID
	}
}

func TestSmartVsFlatWrappers(t *testing.T) {
	tree := buildTree(t, []string{`New File 2000 A\B\C\x.txt`})
	c := chunker.New()

	smart, err := c.ChunkSmart(context.Background(), tree, `C:\Data`, `E:\Dest`, profile.Limits{
		MaxSizeBytes: 1, MaxFiles: 1, MinSizeBytes: 0,
	})
	require.NoError(t, err)

	flat, err := c.ChunkFlat(context.Background(), tree, `C:\Data`, `E:\Dest`, profile.Limits{
		MaxSizeBytes: 1, MaxFiles: 1, MinSizeBytes: 0,
	}, 1)
	require.NoError(t, err)

	require.NotEqual(t, len(smart), 0)
	require.NotEqual(t, len(flat), 0)
}
