package pathmap_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pacepace/robocurse/pathmap"
)

func TestNormalize(t *testing.T) {
	cases := []struct{ in, want string }{
		{`C:/Data/x.txt`, `C:\Data\x.txt`},
		{`C:\Data\x.txt\`, `C:\Data\x.txt`},
		{`C:\`, `C:\`},
		{`\\server\share$\Data\`, `\\server\share$\Data`},
	}

	for _, c := range cases {
		require.Equal(t, c.want, pathmap.Normalize(c.in))
	}
}

func TestEqualCaseInsensitive(t *testing.T) {
	require.True(t, pathmap.Equal(`C:\Data\X.txt`, `c:\data\x.TXT`))
	require.False(t, pathmap.Equal(`C:\Data\X.txt`, `C:\Data2\X.txt`))
}

func TestMapToDestination(t *testing.T) {
	got, err := pathmap.MapToDestination(`\\SERVER\Share$\Data\x.txt`, `\\server\share$`, `E:\Replicas`)
	require.NoError(t, err)
	require.Equal(t, `E:\Replicas\Data\x.txt`, got)
}

func TestMapToDestinationRoot(t *testing.T) {
	got, err := pathmap.MapToDestination(`\\server\share$`, `\\server\share$`, `E:\Replicas`)
	require.NoError(t, err)
	require.Equal(t, `E:\Replicas`, got)
}

func TestMapToDestinationMismatch(t *testing.T) {
	_, err := pathmap.MapToDestination(`C:\Other\x.txt`, `C:\Data`, `E:\Replicas`)
	require.Error(t, err)

	var mismatch *pathmap.PathMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestMapToDestinationSiblingPrefixNotMatched(t *testing.T) {
	_, err := pathmap.MapToDestination(`\\server\share2\x.txt`, `\\server\share`, `E:\Replicas`)
	require.Error(t, err)
}

func TestMapToDestinationIdempotentUnderReNormalization(t *testing.T) {
	got1, err := pathmap.MapToDestination(`C:/Data/x.txt`, `C:\Data`, `E:\Replicas`)
	require.NoError(t, err)

	got2, err := pathmap.MapToDestination(
		pathmap.Normalize(`C:/Data/x.txt`),
		pathmap.Normalize(`C:\Data`),
		pathmap.Normalize(`E:\Replicas`))
	require.NoError(t, err)
	require.Equal(t, got1, got2)
}
