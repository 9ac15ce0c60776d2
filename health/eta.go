// Package health implements Progress & Health (spec.md §4.8, C8):
// BytesComplete/ETA computation, the periodic atomic status-file
// writer and staleness-aware reader, and Prometheus metrics exposed
// alongside the status file.
package health

import (
	"math"
	"time"
)

// ActiveJobProgress is a live snapshot of one running chunk's copy
// progress, as reported by the copier adapter's Job.LiveProgress.
type ActiveJobProgress struct {
	BytesCopied int64
}

// BytesComplete returns CompletedChunkBytes plus the live progress of
// every active job (spec.md §4.8: "CompletedChunkBytes + Σ
// (live-progress of ActiveJobs)").
func BytesComplete(completedChunkBytes int64, active []ActiveJobProgress) int64 {
	total := completedChunkBytes

	for _, a := range active {
		total += a.BytesCopied
	}

	return total
}

// ETA is the outcome of an ETA computation (spec.md §4.8).
type ETA struct {
	Valid  bool
	Value  time.Duration
	Capped bool
}

// MaxEtaDays bounds a runaway ETA estimate (spec.md §4.8: "if bps would
// give ETA > MaxEtaDays, cap at MaxEtaDays and flag as capped").
const MaxEtaDays = 30

// ComputeETA implements spec.md §4.8's ETA rules exactly: null
// (Valid=false) if elapsed < 1ms, BytesComplete = 0, or TotalBytes = 0;
// null if the derived bytes-per-second is < 1; capped at MaxEtaDays if
// the estimate would exceed it; null on NaN/Infinity.
func ComputeETA(bytesComplete, totalBytes int64, elapsed time.Duration) ETA {
	if elapsed < time.Millisecond || bytesComplete <= 0 || totalBytes <= 0 {
		return ETA{}
	}

	bps := float64(bytesComplete) / elapsed.Seconds()
	if bps < 1 || math.IsNaN(bps) || math.IsInf(bps, 0) {
		return ETA{}
	}

	remaining := totalBytes - bytesComplete
	if remaining <= 0 {
		return ETA{Valid: true, Value: 0}
	}

	secondsLeft := float64(remaining) / bps
	if math.IsNaN(secondsLeft) || math.IsInf(secondsLeft, 0) {
		return ETA{}
	}

	maxSeconds := float64(MaxEtaDays * 24 * time.Hour / time.Second)
	if secondsLeft > maxSeconds {
		return ETA{Valid: true, Value: time.Duration(maxSeconds) * time.Second, Capped: true}
	}

	return ETA{Valid: true, Value: time.Duration(secondsLeft * float64(time.Second))}
}

// ClampProgress returns completed/total as a percentage clamped to
// [0,100] (spec.md §4.8: "clamped to absorb race conditions where
// completed > total"). Returns 0 when total <= 0.
func ClampProgress(completed, total int64) float64 {
	if total <= 0 {
		return 0
	}

	pct := float64(completed) / float64(total) * 100

	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	default:
		return pct
	}
}
