package dirtree

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/pacepace/robocurse/pathmap"
)

// Lister runs the external copier in list-only mode against root and
// returns its streamed stdout. Spec.md §4.2/§6: the copier enumerates
// files and directories as line-oriented output; this package only
// parses the stream, it never launches the process itself (cli's
// subprocessLister does that) — Lister is the seam between them.
type Lister interface {
	List(ctx context.Context, root string) (io.ReadCloser, error)
}

// ProgressFunc is invoked roughly every N lines while the stream is
// being read, so callers can surface scan progress (spec.md §4.2).
type ProgressFunc func(linesRead int)

// Build runs the copier's list-only mode on root exactly once and
// returns the aggregated tree. Each line is matched against the
// "New File " and "New Dir " prefixes first; only a line matching
// neither is parsed in the legacy "<size> <path>" form, where a
// trailing backslash marks a directory (see parseLegacy).
func Build(ctx context.Context, lister Lister, root string, progressEvery int, onProgress ProgressFunc) (*Node, error) {
	root = pathmap.Normalize(root)

	rc, err := lister.List(ctx, root)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	tree := newNode(root)

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lines := 0

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		line := scanner.Text()
		lines++

		if progressEvery > 0 && onProgress != nil && lines%progressEvery == 0 {
			onProgress(lines)
		}

		parseLine(tree, root, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if onProgress != nil {
		onProgress(lines)
	}

	Aggregate(tree)

	return tree, nil
}

// parseLine dispatches one line of the copier's list-only output.
// Unknown lines are ignored (spec.md §4.2).
func parseLine(tree *Node, root, line string) {
	switch {
	case strings.HasPrefix(line, "New File "):
		parseNewFile(tree, root, line)
	case strings.HasPrefix(line, "New Dir "):
		parseNewDir(tree, root, line)
	default:
		parseLegacy(tree, root, line)
	}
}

func parseNewFile(tree *Node, root, line string) {
	rest := strings.TrimPrefix(line, "New File ")

	size, relPath, ok := splitSizeAndPath(rest)
	if !ok {
		return
	}

	dirPath, fileName := splitRelDir(relPath)
	node := ensurePath(tree, root, dirPath)
	node.DirectSize += size
	node.DirectFileCount++
	_ = fileName
}

func parseNewDir(tree *Node, root, line string) {
	rest := strings.TrimPrefix(line, "New Dir ")

	_, absPath, ok := splitSizeAndPath(rest)
	if !ok {
		return
	}

	rel := relativeTo(root, absPath)
	ensurePath(tree, root, rel)
}

// parseLegacy handles `<size> <path>` lines where a trailing backslash
// denotes a directory (spec.md §6). Resolved per the §9 Open Question:
// "New File"/"New Dir" lines are unambiguous and parsed above; legacy
// lines are only reached when neither prefix matched, so there is no
// conflict to break a tie on — the trailing-backslash rule applies
// exclusively to this fallback format.
func parseLegacy(tree *Node, root, line string) {
	size, path, ok := splitSizeAndPath(line)
	if !ok {
		return
	}

	isDir := strings.HasSuffix(path, `\`) || strings.HasSuffix(path, "/")
	path = strings.TrimRight(path, `\/`)

	if isDir {
		rel := relativeTo(root, path)
		ensurePath(tree, root, rel)

		return
	}

	dirPath, _ := splitRelDir(path)
	node := ensurePath(tree, root, dirPath)
	node.DirectSize += size
	node.DirectFileCount++
}

func splitSizeAndPath(s string) (size int64, path string, ok bool) {
	s = strings.TrimSpace(s)

	idx := strings.IndexByte(s, ' ')
	if idx < 0 {
		return 0, "", false
	}

	n, err := strconv.ParseInt(s[:idx], 10, 64)
	if err != nil {
		return 0, "", false
	}

	return n, strings.TrimSpace(s[idx+1:]), true
}

// splitRelDir splits a file's root-relative path into its containing
// directory's root-relative path and its file name.
func splitRelDir(relPath string) (dirPath, fileName string) {
	relPath = strings.Trim(relPath, `\`)

	idx := strings.LastIndexByte(relPath, '\\')
	if idx < 0 {
		return "", relPath
	}

	return relPath[:idx], relPath[idx+1:]
}

func relativeTo(root, absPath string) string {
	absPath = pathmap.Normalize(absPath)
	root = pathmap.Normalize(root)

	upperAbs, upperRoot := strings.ToUpper(absPath), strings.ToUpper(root)
	if !strings.HasPrefix(upperAbs, upperRoot) {
		return absPath
	}

	rel := absPath[len(root):]

	return strings.Trim(rel, `\`)
}

// ensurePath walks/creates intermediate nodes for a root-relative
// directory path ("" means the root itself).
func ensurePath(tree *Node, root, relPath string) *Node {
	if relPath == "" {
		return tree
	}

	cur := tree
	curPath := root

	for _, part := range strings.Split(relPath, `\`) {
		if part == "" {
			continue
		}

		curPath = strings.TrimSuffix(curPath, `\`) + `\` + part
		cur = cur.childOrCreate(part, curPath)
	}

	return cur
}

// Aggregate walks the tree bottom-up, populating TotalSize/TotalFileCount
// per node (spec.md §4.2, §8 Tree aggregation invariant). After this
// call the tree is read-only.
func Aggregate(n *Node) (int64, int64) {
	n.TotalSize = n.DirectSize
	n.TotalFileCount = n.DirectFileCount

	for _, c := range n.children {
		size, count := Aggregate(c)
		n.TotalSize += size
		n.TotalFileCount += count
	}

	return n.TotalSize, n.TotalFileCount
}
