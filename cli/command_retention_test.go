package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRetentionApplyPrunesOldestFirst(t *testing.T) {
	driver := &fakeSnapshotDriver{}
	svc := newSnapshotAppServices(t, driver)

	for i := 0; i < 3; i++ {
		create := &commandSnapshotCreate{volume: `C:`, svc: svc}
		require.NoError(t, create.run(context.Background()))
	}

	apply := &commandRetentionApply{volume: `C:`, keepCount: 1, svc: svc}
	require.NoError(t, apply.run(context.Background()))

	entries, err := svc.mgr.Registry().Load()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "shadow-3", entries[0].ShadowID)
}

func TestRetentionApplyNoopWhenUnderKeepCount(t *testing.T) {
	driver := &fakeSnapshotDriver{}
	svc := newSnapshotAppServices(t, driver)

	create := &commandSnapshotCreate{volume: `C:`, svc: svc}
	require.NoError(t, create.run(context.Background()))

	apply := &commandRetentionApply{volume: `C:`, keepCount: 5, svc: svc}
	require.NoError(t, apply.run(context.Background()))

	entries, err := svc.mgr.Registry().Load()
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
