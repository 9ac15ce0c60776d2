package dirtree_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pacepace/robocurse/dirtree"
)

type fakeLister struct {
	output string
	err    error
}

func (f *fakeLister) List(_ context.Context, _ string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}

	return io.NopCloser(strings.NewReader(f.output)), nil
}

func TestBuildAggregatesSizesAndCounts(t *testing.T) {
	lister := &fakeLister{output: strings.Join([]string{
		`New Dir 0 C:\Data\Sub`,
		`New File 100 a.txt`,
		`New File 200 Sub\b.txt`,
		`New File 50 Sub\c.txt`,
	}, "\n")}

	tree, err := dirtree.Build(context.Background(), lister, `C:\Data`, 0, nil)
	require.NoError(t, err)

	require.Equal(t, int64(100), tree.DirectSize)
	require.Equal(t, int64(1), tree.DirectFileCount)
	require.Equal(t, int64(350), tree.TotalSize)
	require.Equal(t, int64(3), tree.TotalFileCount)

	require.Len(t, tree.Children(), 1)

	sub := tree.Children()[0]
	require.Equal(t, int64(250), sub.DirectSize)
	require.Equal(t, int64(2), sub.DirectFileCount)
	require.Equal(t, sub.TotalSize, sub.DirectSize)
}

func TestBuildLegacyFormatDirectoryTrailingSlash(t *testing.T) {
	lister := &fakeLister{output: strings.Join([]string{
		`0 Sub\`,
		`42 Sub\file.txt`,
	}, "\n")}

	tree, err := dirtree.Build(context.Background(), lister, `C:\Data`, 0, nil)
	require.NoError(t, err)
	require.Equal(t, int64(42), tree.TotalSize)
	require.Len(t, tree.Children(), 1)
}

func TestBuildUnknownLinesIgnored(t *testing.T) {
	lister := &fakeLister{output: strings.Join([]string{
		`garbage line that matches nothing`,
		`New File 10 a.txt`,
	}, "\n")}

	tree, err := dirtree.Build(context.Background(), lister, `C:\Data`, 0, nil)
	require.NoError(t, err)
	require.Equal(t, int64(10), tree.TotalSize)
}

func TestBuildProgressCallback(t *testing.T) {
	lister := &fakeLister{output: strings.Join([]string{
		`New File 1 a.txt`,
		`New File 1 b.txt`,
		`New File 1 c.txt`,
	}, "\n")}

	var calls []int

	_, err := dirtree.Build(context.Background(), lister, `C:\Data`, 2, func(n int) {
		calls = append(calls, n)
	})
	require.NoError(t, err)
	require.Contains(t, calls, 2)
}
