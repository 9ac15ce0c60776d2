// Package atomicwrite centralizes the write-temp-then-rename pattern
// spec.md names repeatedly (Checkpoint §4.7, tracking registry §4.4,
// health status file §4.8): "Stored atomically (write-temp-then-rename)".
// Grounded directly on the teacher's go.mod dependency
// github.com/natefinch/atomic, a small, direct require with exactly
// this one job.
package atomicwrite

import (
	"bytes"
	"io"
	"os"

	"github.com/natefinch/atomic"
)

// WriteFile atomically replaces path with data: written to a sibling
// temp file, fsynced, then renamed over path.
func WriteFile(path string, data []byte) error {
	return atomic.WriteFile(path, bytes.NewReader(data))
}

// WriteFileKeepingBackup behaves like WriteFile but first copies any
// existing file at path to path+".bak" before the swap, so a crash
// mid-update always leaves the tracking registry recoverable (spec.md
// §4.4: "keeping a .bak during the swap"). The backup is left in place
// after a successful write; callers reconciling on startup may inspect
// it if the primary file is corrupt (spec.md §7 CorruptState policy).
func WriteFileKeepingBackup(path string, data []byte) error {
	if existing, err := os.ReadFile(path); err == nil {
		if err := atomic.WriteFile(path+".bak", bytes.NewReader(existing)); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	return atomic.WriteFile(path, bytes.NewReader(data))
}

// WriteFrom atomically replaces path with the contents read from r.
func WriteFrom(path string, r io.Reader) error {
	return atomic.WriteFile(path, r)
}
