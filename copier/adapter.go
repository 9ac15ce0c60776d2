package copier

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"

	"github.com/pacepace/robocurse/chunker"
	"github.com/pacepace/robocurse/internal/rlog"
)

var logMod = rlog.Module("robocurse/copier")

// Adapter launches the external copier subprocess per chunk (spec.md
// §4.5). Grounded on the teacher's CLIExeRunner
// (tests/testenv/cli_exe_runner.go): exec.Command, StdoutPipe, a
// dedicated reader goroutine, and Wait on a background channel so the
// caller's context can race it.
type Adapter struct {
	// ExecutablePath is the copier binary to launch.
	ExecutablePath string
}

// NewAdapter returns an Adapter invoking executablePath for every
// chunk.
func NewAdapter(executablePath string) *Adapter {
	return &Adapter{ExecutablePath: executablePath}
}

// Job is a single in-flight RunChunk invocation. The orchestrator's
// tick loop polls LiveProgress non-blockingly (spec.md §5) while
// Wait runs on a worker goroutine.
type Job struct {
	chunk    *chunker.Chunk
	progress liveProgress
	cmd      *exec.Cmd
	done     chan struct{}
	outcome  ChunkOutcome
	err      error
}

// LiveProgress returns the job's current bytes/files copied so far.
func (j *Job) LiveProgress() (bytesCopied, filesCopied int64) {
	return j.progress.Snapshot()
}

// buildArgs constructs the copier's argv from chunk and the per-worker
// bandwidth share (spec.md §4.5: "arguments built from the chunk
// (source, destination, IsFilesOnly single-level flag, bandwidth IPG
// derived from the per-worker share of the global limit)").
func buildArgs(chunk *chunker.Chunk, perWorkerIPG int) []string {
	args := []string{chunk.SourcePath, chunk.DestinationPath}
	args = append(args, chunk.CopierArgs...)

	if perWorkerIPG > 0 {
		args = append(args, "/IPG:"+strconv.Itoa(perWorkerIPG))
	}

	return args
}

// Start launches the copier subprocess for chunk and begins streaming
// its stdout into logWriter while tracking live progress. The returned
// Job's Wait must be called exactly once.
func (a *Adapter) Start(ctx context.Context, chunk *chunker.Chunk, perWorkerIPG int, logWriter *os.File) (*Job, error) {
	args := buildArgs(chunk, perWorkerIPG)

	cmd := exec.CommandContext(ctx, a.ExecutablePath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}

	if logWriter != nil {
		cmd.Stderr = logWriter
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting copier: %w", err)
	}

	job := &Job{chunk: chunk, cmd: cmd, done: make(chan struct{})}

	go job.stream(ctx, stdout, logWriter)

	return job, nil
}

func (j *Job) stream(ctx context.Context, stdout io.ReadCloser, logWriter *os.File) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		j.progress.parseLine(line)

		if logWriter != nil {
			fmt.Fprintln(logWriter, line) //nolint:errcheck // best-effort log append, per spec.md §5
		}
	}

	waitErr := j.cmd.Wait()

	j.outcome, j.err = classify(ctx, &j.progress, waitErr)

	close(j.done)
}

// Wait blocks until the copier subprocess exits and returns its
// classified outcome.
func (j *Job) Wait() (ChunkOutcome, error) {
	<-j.done
	return j.outcome, j.err
}

// Poll is Wait's non-blocking counterpart, used by the orchestrator's
// tick loop (spec.md §5: "poll progress (non-blocking)").
func (j *Job) Poll() (done bool, outcome ChunkOutcome, err error) {
	select {
	case <-j.done:
		return true, j.outcome, j.err
	default:
		return false, ChunkOutcome{}, nil
	}
}

// Cancel terminates the copier subprocess. The background stream
// goroutine observes the resulting exit and, combined with the
// caller's cancelled context, produces a Cancelled outcome.
func (j *Job) Cancel() {
	if j.cmd.Process != nil {
		_ = j.cmd.Process.Kill()
	}
}

// Chunk returns the chunk this job is running, for callers that only
// hold the Job handle (e.g. the orchestrator's ActiveJobs map).
func (j *Job) Chunk() *chunker.Chunk { return j.chunk }

func classify(ctx context.Context, progress *liveProgress, waitErr error) (ChunkOutcome, error) {
	bytesCopied, filesCopied := progress.Snapshot()

	out := ChunkOutcome{
		BytesCopied:  bytesCopied,
		FilesCopied:  filesCopied,
		FilesSkipped: progress.filesSkipped.Load(),
		FilesFailed:  progress.filesFailed.Load(),
	}

	if ctx.Err() != nil {
		out.Outcome = Cancelled
		out.LastErrorMessage = "cancelled"

		return out, nil
	}

	exitCode := 0

	var exitErr *exec.ExitError
	if waitErr != nil {
		if asExitError(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			out.Outcome = Failure
			out.LastErrorMessage = waitErr.Error()

			return out, nil
		}
	}

	out.ExitCode = exitCode
	out.Outcome = classifyExitCode(exitCode)

	if out.Outcome == Failure {
		out.LastErrorMessage = fmt.Sprintf("copier exited with code %d", exitCode)
	}

	return out, nil
}

func asExitError(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError) //nolint:errorlint // exec.Wait only ever returns *exec.ExitError or a start/pipe error
	if !ok {
		return false
	}

	*target = ee

	return true
}

// RunChunk is the blocking convenience form of Start+Wait (spec.md
// §4.5: "RunChunk(chunk, ctx) -> ChunkOutcome"). Callers needing live
// progress mid-run should use Start directly.
func (a *Adapter) RunChunk(ctx context.Context, chunk *chunker.Chunk, perWorkerIPG int, logWriter *os.File) (ChunkOutcome, error) {
	job, err := a.Start(ctx, chunk, perWorkerIPG, logWriter)
	if err != nil {
		return ChunkOutcome{}, err
	}

	logMod(ctx).Debug("copier started", rlog.Int64("chunkId", chunk.ChunkID), rlog.String("source", chunk.SourcePath))

	outcome, err := job.Wait()
	outcome.LogPath = chunk.LogPath

	return outcome, err
}
