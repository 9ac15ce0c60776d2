package copier

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// liveProgress accumulates the running totals the adapter streams out
// so RunChunk's caller can see live BytesCopied mid-run (spec.md §4.5:
// "parses progress lines incrementally so the orchestrator can compute
// BytesCopied mid-run"). One goroutine reads the subprocess's stdout
// and calls parseLine; the orchestrator's tick loop polls Snapshot
// concurrently (spec.md §5: "poll progress (non-blocking)"), so every
// field is an atomic.
//
// Lines have the form:
//
//	PROGRESS <bytesCopied> <filesCopied> <percent>
//	SUMMARY <bytesCopied> <filesCopied> <filesSkipped> <filesFailed>
//
// any other line is passed through unparsed (copier diagnostic output,
// written verbatim to the per-chunk log).
type liveProgress struct {
	bytesCopied  atomic.Int64
	filesCopied  atomic.Int64
	filesSkipped atomic.Int64
	filesFailed  atomic.Int64
	haveSummary  atomic.Bool
}

func (p *liveProgress) parseLine(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	switch fields[0] {
	case "PROGRESS":
		if len(fields) < 3 {
			return
		}

		p.bytesCopied.Store(parseInt64(fields[1]))
		p.filesCopied.Store(parseInt64(fields[2]))

	case "SUMMARY":
		if len(fields) < 5 {
			return
		}

		p.bytesCopied.Store(parseInt64(fields[1]))
		p.filesCopied.Store(parseInt64(fields[2]))
		p.filesSkipped.Store(parseInt64(fields[3]))
		p.filesFailed.Store(parseInt64(fields[4]))
		p.haveSummary.Store(true)
	}
}

func parseInt64(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}

	return n
}

// Snapshot is a point-in-time read of the live counters, safe to call
// from any goroutine.
func (p *liveProgress) Snapshot() (bytesCopied, filesCopied int64) {
	return p.bytesCopied.Load(), p.filesCopied.Load()
}
