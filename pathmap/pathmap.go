// Package pathmap implements the Path Normalizer (spec.md §4.1, C1):
// canonical form and case-insensitive equality for local and UNC paths,
// and the deterministic source→destination mapping every Chunk's
// DestinationPath is derived from.
package pathmap

import (
	"fmt"
	"strings"
)

// PathMismatchError is returned by MapToDestination when src does not
// start with the normalized srcRoot.
type PathMismatchError struct {
	Path string
	Root string
}

func (e *PathMismatchError) Error() string {
	return fmt.Sprintf("path %q does not start with root %q", e.Path, e.Root)
}

// Normalize converts forward slashes to backslashes and trims trailing
// separators, except for a bare drive root ("C:\"). Case is preserved;
// equality is handled separately by Equal, which is case-insensitive
// ordinal (spec.md §4.1: never locale-aware — see DESIGN.md's rationale
// for not using golang.org/x/text here).
func Normalize(p string) string {
	p = strings.ReplaceAll(p, "/", `\`)

	for len(p) > 1 && strings.HasSuffix(p, `\`) && !isDriveRoot(p) {
		p = p[:len(p)-1]
	}

	return p
}

// isDriveRoot reports whether p is exactly "X:\" for some drive letter.
func isDriveRoot(p string) bool {
	return len(p) == 3 && p[1] == ':' && p[2] == '\\'
}

// Equal compares two paths for case-insensitive ordinal equality after
// normalization.
func Equal(a, b string) bool {
	return strings.EqualFold(Normalize(a), Normalize(b))
}

// MapToDestination strips the normalized srcRoot prefix from the
// normalized src and concatenates the remainder onto dstRoot using the
// destination's separator style (spec.md §4.1). The match is
// case-insensitive; the remainder's original case is preserved exactly
// (spec.md §8 scenario 4).
func MapToDestination(src, srcRoot, dstRoot string) (string, error) {
	nsrc := Normalize(src)
	nroot := Normalize(srcRoot)
	ndst := Normalize(dstRoot)

	upperSrc, upperRoot := strings.ToUpper(nsrc), strings.ToUpper(nroot)

	if !strings.HasPrefix(upperSrc, upperRoot) {
		return "", &PathMismatchError{Path: src, Root: srcRoot}
	}

	remainder := nsrc[len(nroot):]
	if remainder != "" && !strings.HasPrefix(remainder, `\`) && !strings.HasSuffix(nroot, `\`) {
		// e.g. root "\\server\share" must not match src "\\server\share2\x"
		return "", &PathMismatchError{Path: src, Root: srcRoot}
	}

	remainder = strings.TrimPrefix(remainder, `\`)

	if remainder == "" {
		return ndst, nil
	}

	return strings.TrimSuffix(ndst, `\`) + `\` + remainder, nil
}
