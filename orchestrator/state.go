// Package orchestrator implements the Orchestrator (spec.md §4.6, C6):
// the Phase state machine, tick-loop scheduling, admission with a
// circuit breaker, and completion dispatch tying together the
// directory profiler, chunker, snapshot manager, copier adapter,
// checkpoint store, and health reporter.
package orchestrator

import (
	"time"

	"github.com/pacepace/robocurse/chunker"
)

// Phase is OrchestrationState's state machine position (spec.md §3, §4.6).
type Phase int

const (
	Idle Phase = iota
	Scanning
	Chunking
	Replicating
	Paused
	Stopping
	Complete
	Stopped
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "Idle"
	case Scanning:
		return "Scanning"
	case Chunking:
		return "Chunking"
	case Replicating:
		return "Replicating"
	case Paused:
		return "Paused"
	case Stopping:
		return "Stopping"
	case Complete:
		return "Complete"
	case Stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Terminal reports whether p is one of the two terminal phases (spec.md
// §4.6: "Terminal: Complete, Stopped").
func (p Phase) Terminal() bool { return p == Complete || p == Stopped }

// CircuitBreakerState tracks consecutive chunk failures (spec.md §4.6).
type CircuitBreakerState struct {
	ConsecutiveFailures int
	Tripped             bool
	TrippedAt           time.Time
	Reason              string
}

// ActiveJobHandle is what OrchestrationState tracks per in-flight chunk.
type ActiveJobHandle struct {
	Chunk     *chunker.Chunk
	Job       ActiveJob
	StartedAt time.Time
}

// OrchestrationState is the in-memory run state (spec.md §3).
type OrchestrationState struct {
	Phase        Phase
	StartTime    time.Time
	SessionID    string
	ProfileIndex int
	ProfileCount int

	TotalChunks int64

	ChunkQueue []*chunker.Chunk
	ActiveJobs map[int64]*ActiveJobHandle
	Completed  []*chunker.Chunk
	Failed     []*chunker.Chunk
	Warnings   []*chunker.Chunk

	CompletedChunkBytes int64
	CompletedChunkFiles int64
	TotalFilesSkipped   int64
	TotalFilesFailed    int64

	CircuitBreaker CircuitBreakerState

	StopReason string
}

// NewOrchestrationState returns a fresh, Idle state.
func NewOrchestrationState() *OrchestrationState {
	return &OrchestrationState{
		Phase:      Idle,
		ActiveJobs: make(map[int64]*ActiveJobHandle),
	}
}

// PendingCount, ActiveCount, and the other accessors below back the
// invariant TotalChunks = |Pending| + |Active| + |Completed| + |Failed|
// + |Warning| (spec.md §3).
func (s *OrchestrationState) PendingCount() int64   { return int64(len(s.ChunkQueue)) }
func (s *OrchestrationState) ActiveCount() int64    { return int64(len(s.ActiveJobs)) }
func (s *OrchestrationState) CompletedCount() int64 { return int64(len(s.Completed)) }
func (s *OrchestrationState) FailedCount() int64    { return int64(len(s.Failed)) }
func (s *OrchestrationState) WarningCount() int64   { return int64(len(s.Warnings)) }
