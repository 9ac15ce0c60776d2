// Package profile defines Profile, the (source, destination, options)
// input tuple spec.md §3 describes as "input, not owned by the core":
// config-file parsing is an external collaborator (spec.md §1), so this
// package only holds the decoded shape and its validation, never a
// parser.
package profile

import (
	"time"

	"github.com/hashicorp/cronexpr"
)

// ScanMode selects how the Chunker bounds recursion depth.
type ScanMode int

const (
	// Smart recurses to unlimited depth (MaxDepth = -1).
	Smart ScanMode = iota
	// Flat recurses to the profile's configured MaxDepth.
	Flat
)

func (m ScanMode) String() string {
	if m == Flat {
		return "Flat"
	}

	return "Smart"
}

// Limits bounds the Chunker's recursive decomposition (spec.md §4.3).
type Limits struct {
	MaxSizeBytes int64
	MaxFiles     int64
	MaxDepth     int // -1 means unlimited
	MinSizeBytes int64
}

// Profile is one named (source, destination, options) tuple.
type Profile struct {
	Name          string
	Source        string
	Destination   string
	UseSnapshot   bool
	ScanMode      ScanMode
	Limits        Limits
	Enabled       bool
	CopierArgs    []string
	MaxConcurrent int

	// Schedule is an optional supplement (SPEC_FULL.md Part D.1) to the
	// original spec: a cron expression read by NextFireAfter. No command
	// evaluates it; a profile runs only when explicitly invoked.
	Schedule string
}

// EffectiveLimits returns Limits with MaxDepth forced according to
// ScanMode: Smart is a thin wrapper over MaxDepth=-1, Flat uses the
// caller's bounded depth verbatim (spec.md §4.3 "Smart vs Flat are thin
// wrappers").
func (p Profile) EffectiveLimits() Limits {
	l := p.Limits
	if p.ScanMode == Smart {
		l.MaxDepth = -1
	}

	return l
}

// NextFireAfter computes the next scheduled fire time strictly after
// `after` using the Schedule cron expression (SPEC_FULL.md Part D.1).
// ok is false when Schedule is empty or fails to parse — an invalid
// schedule never fires, it does not error the whole profile.
func (p Profile) NextFireAfter(after time.Time) (next time.Time, ok bool) {
	if p.Schedule == "" {
		return time.Time{}, false
	}

	expr, err := cronexpr.Parse(p.Schedule)
	if err != nil {
		return time.Time{}, false
	}

	return expr.Next(after), true
}
