// Package chunker implements the Chunker (spec.md §4.3, C3): recursive
// decomposition of a dirtree.Node into balanced Chunks respecting
// size/file/depth/min-size thresholds.
package chunker

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/pacepace/robocurse/dirtree"
	"github.com/pacepace/robocurse/internal/rlog"
	"github.com/pacepace/robocurse/pathmap"
	"github.com/pacepace/robocurse/profile"
)

// Status is a Chunk's lifecycle state (spec.md §3).
type Status int

const (
	Pending Status = iota
	Running
	Complete
	Failed
	Skipped
	Warning
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Running:
		return "Running"
	case Complete:
		return "Complete"
	case Failed:
		return "Failed"
	case Skipped:
		return "Skipped"
	case Warning:
		return "Warning"
	default:
		return "Unknown"
	}
}

// Chunk is the atomic unit of replication (spec.md §3).
type Chunk struct {
	ChunkID          int64
	SourcePath       string
	DestinationPath  string
	EstimatedSize    int64
	EstimatedFiles   int64
	Depth            int
	IsFilesOnly      bool
	Status           Status
	RetryCount       int
	RetryAfter       *int64 // unix nanos; nil means no delay pending
	LastExitCode     int
	LastErrorMessage string
	CopierArgs       []string
	LogPath          string
}

// Fingerprint identifies a Chunk for checkpoint purposes (spec.md §4.7):
// (normalized(SourcePath), normalized(DestinationPath), IsFilesOnly).
func (c Chunk) Fingerprint() string {
	return fmt.Sprintf("%s|%s|%v",
		pathmap.Normalize(c.SourcePath), pathmap.Normalize(c.DestinationPath), c.IsFilesOnly)
}

// InvalidLimitsError is returned when MaxSizeBytes <= MinSizeBytes
// (spec.md §4.3 pre-check).
type InvalidLimitsError struct {
	MaxSizeBytes, MinSizeBytes int64
}

func (e *InvalidLimitsError) Error() string {
	return fmt.Sprintf("invalid limits: MaxSizeBytes (%d) must exceed MinSizeBytes (%d)", e.MaxSizeBytes, e.MinSizeBytes)
}

// idCounter assigns monotonically increasing ChunkIds that are unique
// within one Chunker (spec.md §3 invariant: unique within a run). A package-level atomic
// counter would violate the "module-scoped mutable state" redesign note
// in spec.md §9, so it lives on Chunker instead.
type idCounter struct {
	next atomic.Int64
}

func (c *idCounter) nextID() int64 {
	return c.next.Add(1)
}

var logMod = rlog.Module("robocurse/chunker")

// Chunker decomposes directory trees into Chunks. One Chunker should be
// reused for the lifetime of a run so ChunkIds stay unique within it.
type Chunker struct {
	ids idCounter
}

// New creates a Chunker with a fresh ChunkId sequence.
func New() *Chunker {
	return &Chunker{}
}

// Chunk decomposes tree into a list of Chunks per spec.md §4.3's
// algorithm. srcRoot/dstRoot feed pathmap.MapToDestination so every
// chunk's DestinationPath is deterministic (spec.md §3, §8 Destination
// determinism invariant). Uses a growable slice, not array
// concatenation, so total time is O(nodes) (spec.md §4.3).
func (c *Chunker) Chunk(ctx context.Context, tree *dirtree.Node, srcRoot, dstRoot string, limits profile.Limits) ([]*Chunk, error) {
	if limits.MaxSizeBytes <= limits.MinSizeBytes {
		return nil, &InvalidLimitsError{MaxSizeBytes: limits.MaxSizeBytes, MinSizeBytes: limits.MinSizeBytes}
	}

	var out []*Chunk

	c.recurse(ctx, tree, srcRoot, dstRoot, limits, 0, &out)

	return out, nil
}

func (c *Chunker) recurse(ctx context.Context, n *dirtree.Node, srcRoot, dstRoot string, limits profile.Limits, depth int, out *[]*Chunk) {
	children := n.Children()

	switch {
	case n.TotalSize <= limits.MaxSizeBytes && n.TotalFileCount <= limits.MaxFiles:
		c.emitDirectoryWide(n, srcRoot, dstRoot, depth, out)
		return

	case limits.MaxDepth >= 0 && depth >= limits.MaxDepth:
		logMod(ctx).Warn("emitting over-threshold chunk at max depth",
			rlog.String("path", n.Path), rlog.Int("depth", depth))
		c.emitDirectoryWide(n, srcRoot, dstRoot, depth, out)

		return

	case n.TotalSize < limits.MinSizeBytes:
		c.emitDirectoryWide(n, srcRoot, dstRoot, depth, out)
		return

	case len(children) == 0:
		c.emitDirectoryWide(n, srcRoot, dstRoot, depth, out)
		return
	}

	for _, child := range children {
		c.recurse(ctx, child, srcRoot, dstRoot, limits, depth+1, out)
	}

	if n.DirectFileCount > 0 {
		c.emitFilesOnly(n, srcRoot, dstRoot, depth, out)
	}
}

func (c *Chunker) emitDirectoryWide(n *dirtree.Node, srcRoot, dstRoot string, depth int, out *[]*Chunk) {
	dst, err := pathmap.MapToDestination(n.Path, srcRoot, dstRoot)
	if err != nil {
		dst = n.Path // unreachable under correct callers; keep chunking total
	}

	*out = append(*out, &Chunk{
		ChunkID:         c.ids.nextID(),
		SourcePath:      n.Path,
		DestinationPath: dst,
		EstimatedSize:   n.TotalSize,
		EstimatedFiles:  n.TotalFileCount,
		Depth:           depth,
		IsFilesOnly:     false,
		Status:          Pending,
	})
}

// filesOnlySingleLevelFlag is the copier flag marking a "files-only,
// single level" invocation (spec.md §4.3: "CopierArgs include the
// copier's single-level flag").
const filesOnlySingleLevelFlag = "/LEV:1"

func (c *Chunker) emitFilesOnly(n *dirtree.Node, srcRoot, dstRoot string, depth int, out *[]*Chunk) {
	dst, err := pathmap.MapToDestination(n.Path, srcRoot, dstRoot)
	if err != nil {
		dst = n.Path
	}

	*out = append(*out, &Chunk{
		ChunkID:         c.ids.nextID(),
		SourcePath:      n.Path,
		DestinationPath: dst,
		EstimatedSize:   n.DirectSize,
		EstimatedFiles:  n.DirectFileCount,
		Depth:           depth,
		IsFilesOnly:     true,
		Status:          Pending,
		CopierArgs:      []string{filesOnlySingleLevelFlag},
	})
}
