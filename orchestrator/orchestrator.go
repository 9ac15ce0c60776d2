package orchestrator

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/pacepace/robocurse/checkpoint"
	"github.com/pacepace/robocurse/chunker"
	"github.com/pacepace/robocurse/copier"
	"github.com/pacepace/robocurse/internal/clock"
	"github.com/pacepace/robocurse/internal/rlog"
)

var logMod = rlog.Module("robocurse/orchestrator")

// Config bounds the orchestrator's concurrency and retry behavior
// (spec.md §4.6).
type Config struct {
	MaxConcurrentJobs int
	MaxRetries        int
	BaseBackoff       time.Duration
	MaxBackoff        time.Duration
	CBThreshold       int
	PerWorkerIPG      int
}

// DefaultConfig matches spec.md §4.6's suggested shape: a handful of
// concurrent jobs, exponential backoff capped at a few minutes.
var DefaultConfig = Config{
	MaxConcurrentJobs: 4,
	MaxRetries:        3,
	BaseBackoff:       time.Second,
	MaxBackoff:        5 * time.Minute,
	CBThreshold:       5,
}

// Orchestrator runs one profile's replication to completion across
// repeated Tick calls (spec.md §4.6). One Orchestrator instance
// belongs to a single run; the tick loop itself is single-threaded
// (spec.md §5: "The tick loop itself is single-threaded and owns
// OrchestrationState mutation").
type Orchestrator struct {
	cfg             Config
	clk             clock.Clock
	runner          JobRunner
	checkpointStore *checkpoint.Store
	profileName     string

	mu    sync.Mutex
	state *OrchestrationState

	rng *rand.Rand
}

// New builds an Orchestrator. clk defaults to the real clock; rngSeed
// lets tests make jitter deterministic. A zero MaxRetries means a failed
// chunk is not retried; other zero limits take DefaultConfig's values.
func New(cfg Config, clk clock.Clock, runner JobRunner, checkpointStore *checkpoint.Store, profileName string, rngSeed int64) *Orchestrator {
	if clk == nil {
		clk = clock.Real{}
	}

	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = DefaultConfig.MaxConcurrentJobs
	}

	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultConfig.MaxRetries
	}

	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = DefaultConfig.BaseBackoff
	}

	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultConfig.MaxBackoff
	}

	if cfg.CBThreshold <= 0 {
		cfg.CBThreshold = DefaultConfig.CBThreshold
	}

	return &Orchestrator{
		cfg:             cfg,
		clk:             clk,
		runner:          runner,
		checkpointStore: checkpointStore,
		profileName:     profileName,
		state:           NewOrchestrationState(),
		rng:             rand.New(rand.NewSource(rngSeed)), //nolint:gosec // jitter only, not security-sensitive
	}
}

// StartReplicating seeds the queue with chunks (already resumed against
// a checkpoint by the caller, spec.md §4.7) and moves Phase to
// Replicating — the only phase that admits new jobs (spec.md §4.6
// invariant).
func (o *Orchestrator) StartReplicating(sessionID string, chunks []*chunker.Chunk) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.state.SessionID = sessionID
	o.state.StartTime = o.clk.Now()
	o.state.TotalChunks = int64(len(chunks))
	o.state.Phase = Replicating

	o.state.ChunkQueue = o.state.ChunkQueue[:0]

	for _, c := range chunks {
		switch c.Status {
		case chunker.Complete:
			o.state.Completed = append(o.state.Completed, c)
			o.state.CompletedChunkBytes += c.EstimatedSize
			o.state.CompletedChunkFiles += c.EstimatedFiles
		default:
			c.Status = chunker.Pending
			o.state.ChunkQueue = append(o.state.ChunkQueue, c)
		}
	}
}

// Snapshot returns a copy of the read-only fields of the current state
// for reporting purposes (health status, CLI output).
func (o *Orchestrator) Snapshot() OrchestrationState {
	o.mu.Lock()
	defer o.mu.Unlock()

	return *o.state
}

// Pause sets Phase = Paused; running jobs finish their current chunk
// (spec.md §4.6: "do not interrupt mid-chunk").
func (o *Orchestrator) Pause() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Phase == Replicating {
		o.state.Phase = Paused
	}
}

// Resume restores Replicating after a Pause.
func (o *Orchestrator) Resume() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Phase == Paused {
		o.state.Phase = Replicating
	}
}

// Stop begins an orderly shutdown: Phase = Stopping, every ActiveJob is
// cancelled; the tick loop drains them to Stopped (spec.md §4.6).
func (o *Orchestrator) Stop(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Phase.Terminal() {
		return
	}

	o.state.Phase = Stopping
	o.state.StopReason = reason

	for _, handle := range o.state.ActiveJobs {
		handle.Job.Cancel()
	}
}

// ResetCircuitBreaker clears the consecutive-failure counter and
// returns Phase to Replicating only if the queue has remaining work
// (spec.md §4.6: "Operator Reset clears the counter and returns Phase
// to Replicating only if the queue has remaining work").
func (o *Orchestrator) ResetCircuitBreaker() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.state.CircuitBreaker = CircuitBreakerState{}

	if o.state.Phase == Stopping && len(o.state.ChunkQueue) > 0 {
		o.state.Phase = Replicating
	}
}

// Tick executes one scheduling pass (spec.md §4.6 Scheduling, steps 1-5).
func (o *Orchestrator) Tick(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Phase != Paused && o.state.Phase != Stopping {
		o.admitLocked(ctx)
	}

	o.pollActiveLocked(ctx)

	if o.state.Phase == Stopping && len(o.state.ActiveJobs) == 0 {
		o.state.Phase = Stopped
		return
	}

	if o.state.Phase == Replicating &&
		len(o.state.ActiveJobs) == 0 &&
		len(o.state.ChunkQueue) == 0 {
		o.state.Phase = Complete
	}
}

func (o *Orchestrator) admitLocked(ctx context.Context) {
	if o.state.CircuitBreaker.Tripped {
		return
	}

	now := o.clk.Now()

	for len(o.state.ActiveJobs) < o.cfg.MaxConcurrentJobs && len(o.state.ChunkQueue) > 0 {
		head := o.state.ChunkQueue[0]

		if head.RetryAfter != nil && time.Unix(0, *head.RetryAfter).After(now) {
			break // head not due yet; no priority queue, so stop scanning (spec.md §4.6 Ordering)
		}

		o.state.ChunkQueue = o.state.ChunkQueue[1:]

		job, err := o.runner.Start(ctx, head, o.cfg.PerWorkerIPG)
		if err != nil {
			logMod(ctx).Error("failed to start copier job", rlog.Int64("chunkId", head.ChunkID), rlog.Err(err))
			head.Status = chunker.Failed
			head.LastErrorMessage = err.Error()
			o.state.Failed = append(o.state.Failed, head)
			o.recordFailureLocked()

			continue
		}

		head.Status = chunker.Running
		o.state.ActiveJobs[head.ChunkID] = &ActiveJobHandle{Chunk: head, Job: job, StartedAt: now}
	}
}

func (o *Orchestrator) pollActiveLocked(ctx context.Context) {
	for id, handle := range o.state.ActiveJobs {
		done, outcome, err := handle.Job.Poll()
		if !done {
			continue
		}

		delete(o.state.ActiveJobs, id)
		o.dispatchCompletionLocked(ctx, handle.Chunk, outcome, err)
	}
}

// dispatchCompletionLocked implements spec.md §4.6's Completion dispatch
// table.
func (o *Orchestrator) dispatchCompletionLocked(ctx context.Context, chunk *chunker.Chunk, outcome copier.ChunkOutcome, err error) {
	if err != nil {
		chunk.Status = chunker.Failed
		chunk.LastErrorMessage = err.Error()
		o.state.Failed = append(o.state.Failed, chunk)
		o.recordFailureLocked()

		return
	}

	chunk.LastExitCode = outcome.ExitCode
	chunk.LastErrorMessage = outcome.LastErrorMessage

	switch outcome.Outcome {
	case copier.Success:
		chunk.Status = chunker.Complete
		o.state.Completed = append(o.state.Completed, chunk)
		o.state.CompletedChunkBytes += outcome.BytesCopied
		o.state.CompletedChunkFiles += outcome.FilesCopied
		o.resetConsecutiveFailuresLocked()
		o.persistCheckpointLocked(ctx)

	case copier.SuccessWithSkipped:
		chunk.Status = chunker.Complete
		o.state.Completed = append(o.state.Completed, chunk)
		o.state.CompletedChunkBytes += outcome.BytesCopied
		o.state.CompletedChunkFiles += outcome.FilesCopied
		o.state.TotalFilesSkipped += outcome.FilesSkipped
		o.resetConsecutiveFailuresLocked()
		o.persistCheckpointLocked(ctx)

	case copier.Warning:
		chunk.Status = chunker.Warning
		o.state.Warnings = append(o.state.Warnings, chunk)
		o.state.CompletedChunkBytes += outcome.BytesCopied
		o.state.CompletedChunkFiles += outcome.FilesCopied
		o.state.TotalFilesFailed += outcome.FilesFailed
		o.resetConsecutiveFailuresLocked()
		o.persistCheckpointLocked(ctx)

	case copier.Failure:
		o.state.TotalFilesFailed += outcome.FilesFailed
		o.dispatchFailureLocked(chunk)

	case copier.Cancelled:
		chunk.Status = chunker.Pending
		o.state.ChunkQueue = append(o.state.ChunkQueue, chunk)
	}
}

func (o *Orchestrator) dispatchFailureLocked(chunk *chunker.Chunk) {
	if chunk.RetryCount < o.cfg.MaxRetries {
		chunk.Status = chunker.Pending
		chunk.RetryCount++

		delay := o.backoffDelay(chunk.RetryCount)
		retryAt := o.clk.Now().Add(delay).UnixNano()
		chunk.RetryAfter = &retryAt

		o.state.ChunkQueue = append(o.state.ChunkQueue, chunk)

		return
	}

	chunk.Status = chunker.Failed
	o.state.Failed = append(o.state.Failed, chunk)
	o.recordFailureLocked()
}

// backoffDelay is exponential with a small random jitter, capped at
// MaxBackoff (spec.md §4.6: "RetryAfter = Now + base*2^RetryCount
// (exponential backoff with a small random jitter capped at
// MaxBackoff)").
func (o *Orchestrator) backoffDelay(retryCount int) time.Duration {
	shift := retryCount
	if shift > 30 {
		shift = 30 // guard against overflow on pathological RetryCount
	}

	base := o.cfg.BaseBackoff * time.Duration(1<<uint(shift)) //nolint:gosec // shift bounded above
	jitter := time.Duration(o.rng.Int63n(int64(o.cfg.BaseBackoff) + 1))

	delay := base + jitter
	if delay > o.cfg.MaxBackoff {
		delay = o.cfg.MaxBackoff
	}

	return delay
}

func (o *Orchestrator) recordFailureLocked() {
	o.state.CircuitBreaker.ConsecutiveFailures++

	if o.state.CircuitBreaker.ConsecutiveFailures >= o.cfg.CBThreshold && !o.state.CircuitBreaker.Tripped {
		o.state.CircuitBreaker.Tripped = true
		o.state.CircuitBreaker.TrippedAt = o.clk.Now()
		o.state.CircuitBreaker.Reason = "consecutive chunk failure threshold exceeded"
		o.state.Phase = Stopping
		o.state.StopReason = o.state.CircuitBreaker.Reason

		for _, handle := range o.state.ActiveJobs {
			handle.Job.Cancel()
		}
	}
}

func (o *Orchestrator) resetConsecutiveFailuresLocked() {
	o.state.CircuitBreaker.ConsecutiveFailures = 0
}

func (o *Orchestrator) persistCheckpointLocked(ctx context.Context) {
	if o.checkpointStore == nil {
		return
	}

	fingerprints := make([]string, 0, len(o.state.Completed)+len(o.state.Warnings))
	for _, c := range o.state.Completed {
		fingerprints = append(fingerprints, c.Fingerprint())
	}

	for _, c := range o.state.Warnings {
		fingerprints = append(fingerprints, c.Fingerprint())
	}

	err := o.checkpointStore.Save(checkpoint.State{
		SessionID:                  o.state.SessionID,
		ProfileName:                o.profileName,
		CompletedChunkFingerprints: fingerprints,
		CompletedBytes:             o.state.CompletedChunkBytes,
		CompletedFiles:             o.state.CompletedChunkFiles,
	})
	if err != nil {
		logMod(ctx).Warn("checkpoint save failed", rlog.Err(err))
	}
}
