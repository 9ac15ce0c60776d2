package chunker

import (
	"context"

	"github.com/pacepace/robocurse/dirtree"
	"github.com/pacepace/robocurse/profile"
)

// ChunkSmart recurses to unlimited depth (spec.md §4.3: "Smart calls
// with MaxDepth = -1").
func (c *Chunker) ChunkSmart(ctx context.Context, tree *dirtree.Node, srcRoot, dstRoot string, limits profile.Limits) ([]*Chunk, error) {
	limits.MaxDepth = -1
	return c.Chunk(ctx, tree, srcRoot, dstRoot, limits)
}

// ChunkFlat recurses to the caller's bounded depth (spec.md §4.3:
// "Flat with the caller's bounded depth").
func (c *Chunker) ChunkFlat(ctx context.Context, tree *dirtree.Node, srcRoot, dstRoot string, limits profile.Limits, maxDepth int) ([]*Chunk, error) {
	limits.MaxDepth = maxDepth
	return c.Chunk(ctx, tree, srcRoot, dstRoot, limits)
}
