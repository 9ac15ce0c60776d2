package volsnapshot_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pacepace/robocurse/volsnapshot"
)

func TestIsRetryableByCode(t *testing.T) {
	err := volsnapshot.NewDriverErrorCode("Create", 0x8004230F, fmt.Errorf("snapshot set busy"))
	require.True(t, volsnapshot.IsRetryable(err))
}

func TestIsRetryableByPhraseFallback(t *testing.T) {
	err := volsnapshot.NewDriverError("Create", fmt.Errorf("operation timed out waiting for writer"))
	require.True(t, volsnapshot.IsRetryable(err))
}

func TestNonRetryablePhraseWinsOverLooseMatch(t *testing.T) {
	err := volsnapshot.NewDriverError("Create", fmt.Errorf("access is denied (resource busy earlier)"))
	require.False(t, volsnapshot.IsRetryable(err))
}

func TestUnknownErrorIsNotRetryable(t *testing.T) {
	err := volsnapshot.NewDriverError("Create", fmt.Errorf("volume does not support shadow copies"))
	require.False(t, volsnapshot.IsRetryable(err))
}

func TestNilErrorIsNotRetryable(t *testing.T) {
	require.False(t, volsnapshot.IsRetryable(nil))
}
