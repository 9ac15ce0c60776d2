package health_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pacepace/robocurse/health"
)

func TestBytesCompleteSumsActiveJobs(t *testing.T) {
	total := health.BytesComplete(1000, []health.ActiveJobProgress{{BytesCopied: 100}, {BytesCopied: 250}})
	require.Equal(t, int64(1350), total)
}

func TestComputeETANullBelowOneMillisecond(t *testing.T) {
	eta := health.ComputeETA(100, 1000, 500*time.Microsecond)
	require.False(t, eta.Valid)
}

func TestComputeETANullWhenBytesCompleteZero(t *testing.T) {
	eta := health.ComputeETA(0, 1000, time.Second)
	require.False(t, eta.Valid)
}

func TestComputeETANullWhenTotalBytesZero(t *testing.T) {
	eta := health.ComputeETA(100, 0, time.Second)
	require.False(t, eta.Valid)
}

func TestComputeETANullWhenThroughputSubOneBps(t *testing.T) {
	eta := health.ComputeETA(1, 1_000_000_000, time.Hour)
	require.False(t, eta.Valid)
}

func TestComputeETACapsAtMaxEtaDays(t *testing.T) {
	// 1 byte/sec, huge remaining distance.
	eta := health.ComputeETA(10, 1_000_000_000, 10*time.Second)
	require.True(t, eta.Valid)
	require.True(t, eta.Capped)
	require.Equal(t, time.Duration(health.MaxEtaDays*24)*time.Hour, eta.Value)
}

func TestComputeETAUncappedNormalCase(t *testing.T) {
	eta := health.ComputeETA(100, 200, time.Second)
	require.True(t, eta.Valid)
	require.False(t, eta.Capped)
	require.Equal(t, time.Second, eta.Value)
}

func TestComputeETAZeroWhenAlreadyComplete(t *testing.T) {
	eta := health.ComputeETA(200, 200, time.Second)
	require.True(t, eta.Valid)
	require.Equal(t, time.Duration(0), eta.Value)
}

func TestClampProgressWithinBounds(t *testing.T) {
	require.InDelta(t, 50.0, health.ClampProgress(50, 100), 0.001)
}

func TestClampProgressClampsOverTotal(t *testing.T) {
	require.InDelta(t, 100.0, health.ClampProgress(150, 100), 0.001)
}

func TestClampProgressZeroTotal(t *testing.T) {
	require.Equal(t, 0.0, health.ClampProgress(10, 0))
}
