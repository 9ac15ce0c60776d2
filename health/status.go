package health

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/pacepace/robocurse/internal/atomicwrite"
	"github.com/pacepace/robocurse/internal/clock"
)

// Status is the periodically-written health document (spec.md §4.8,
// §6 persisted state layout: "<runtime-dir>/health.json").
type Status struct {
	Timestamp       time.Time `json:"timestamp"`
	Phase           string    `json:"phase"`
	CurrentProfile  string    `json:"currentProfile"`
	ProfileIndex    int       `json:"profileIndex"`
	ProfileCount    int       `json:"profileCount"`
	ChunksCompleted int64     `json:"chunksCompleted"`
	ChunksTotal     int64     `json:"chunksTotal"`
	ChunksPending   int64     `json:"chunksPending"`
	ChunksFailed    int64     `json:"chunksFailed"`
	ActiveJobs      int       `json:"activeJobs"`
	BytesCompleted  int64     `json:"bytesCompleted"`
	EtaSeconds      *float64  `json:"etaSeconds"`
	SessionID       string    `json:"sessionId"`
	SessionNickname string    `json:"sessionNickname,omitempty"`
	Healthy         bool      `json:"healthy"`
	Message         string    `json:"message"`
}

// Writer periodically serializes a Status to path via write-temp then
// atomic rename, skipping writes that arrive before the configured
// update interval unless Forced (spec.md §4.8: "skip if interval not
// elapsed unless forced").
type Writer struct {
	path     string
	interval time.Duration
	clk      clock.Clock

	mu        sync.Mutex
	lastWrite time.Time
}

// NewWriter returns a Writer that throttles updates to at most once
// per interval, writing status.json-style documents to path.
func NewWriter(path string, interval time.Duration, clk clock.Clock) *Writer {
	if clk == nil {
		clk = clock.Real{}
	}

	return &Writer{path: path, interval: interval, clk: clk}
}

// Write serializes status to disk, skipping the write if interval
// hasn't elapsed since the last successful write and forced is false.
func (w *Writer) Write(status Status, forced bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clk.Now()
	if !forced && !w.lastWrite.IsZero() && now.Sub(w.lastWrite) < w.interval {
		return nil
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding health status")
	}

	if err := atomicwrite.WriteFile(w.path, data); err != nil {
		return errors.Wrap(err, "writing health status")
	}

	w.lastWrite = now

	return nil
}

// Reader reads the health status file and applies a staleness check.
type Reader struct {
	path string
	clk  clock.Clock
}

// NewReader returns a Reader for path.
func NewReader(path string, clk clock.Clock) *Reader {
	if clk == nil {
		clk = clock.Real{}
	}

	return &Reader{path: path, clk: clk}
}

// Read loads the status file and, if maxAge > 0, marks it stale and
// overrides Healthy=false when it is older than maxAge (spec.md §4.8:
// "mark IsStale = (Now - Timestamp) > MaxAgeSeconds and override
// Healthy = false").
func (r *Reader) Read(maxAge time.Duration) (Status, bool, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return Status{}, false, errors.Wrap(err, "reading health status")
	}

	var status Status
	if err := json.Unmarshal(data, &status); err != nil {
		return Status{}, false, errors.Wrap(err, "parsing health status")
	}

	isStale := maxAge > 0 && r.clk.Now().Sub(status.Timestamp) > maxAge
	if isStale {
		status.Healthy = false
	}

	return status, isStale, nil
}
