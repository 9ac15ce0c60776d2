package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pacepace/robocurse/chunker"
	"github.com/pacepace/robocurse/copier"
)

// ActiveJob is the orchestrator's non-blocking handle onto a running
// copier invocation (spec.md §3 OrchestrationState.ActiveJobs,
// §5 "poll progress (non-blocking)"). Satisfied by *copier.Job.
type ActiveJob interface {
	Poll() (done bool, outcome copier.ChunkOutcome, err error)
	Cancel()
	LiveProgress() (bytesCopied, filesCopied int64)
}

// JobRunner starts a chunk's copier invocation. The production
// implementation wraps a *copier.Adapter; tests substitute a fake that
// completes chunks under direct control.
type JobRunner interface {
	Start(ctx context.Context, chunk *chunker.Chunk, perWorkerIPG int) (ActiveJob, error)
}

// AdapterJobRunner is the production JobRunner (spec.md §4.5 integration).
type AdapterJobRunner struct {
	Adapter *copier.Adapter
	LogDir  string
}

// NewAdapterJobRunner returns a JobRunner backed by adapter, writing
// per-chunk logs under logDir (spec.md §6: "Jobs/Chunk_NNN.log").
func NewAdapterJobRunner(adapter *copier.Adapter, logDir string) *AdapterJobRunner {
	return &AdapterJobRunner{Adapter: adapter, LogDir: logDir}
}

func (r *AdapterJobRunner) Start(ctx context.Context, chunk *chunker.Chunk, perWorkerIPG int) (ActiveJob, error) {
	var logFile *os.File

	if r.LogDir != "" {
		path := filepath.Join(r.LogDir, chunkLogName(chunk))
		chunk.LogPath = path

		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}

		logFile = f
	}

	return r.Adapter.Start(ctx, chunk, perWorkerIPG, logFile)
}

func chunkLogName(chunk *chunker.Chunk) string {
	return fmt.Sprintf("Chunk_%05d.log", chunk.ChunkID)
}
