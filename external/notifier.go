// Package external defines the injected collaborators the core talks to
// but never implements itself (spec.md §6): the Notifier, and the
// RunSummary it is handed on terminal events. The Copier subprocess
// contract, Snapshot driver, and Clock live in their own packages
// (copier, volsnapshot, internal/clock); this package holds the
// remaining externals that don't already have a natural home.
package external

import (
	"context"
	"time"
)

// Status is the terminal state of a run, handed to Notifier.NotifyCompletion
// (spec.md §6: "status ∈ {Success, Warning, Failed}").
type Status int

const (
	Success Status = iota
	Warning
	Failed
)

func (s Status) String() string {
	switch s {
	case Success:
		return "Success"
	case Warning:
		return "Warning"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// RunSummary is the formatted-nothing, data-only record a Notifier
// receives (spec.md §6: "Core never formats messages itself"). Every
// field is something the orchestrator already tracks in
// OrchestrationState.
type RunSummary struct {
	SessionID    string
	ProfileName  string
	StartTime    time.Time
	EndTime      time.Time
	TotalChunks  int64
	Completed    int64
	Failed       int64
	Warnings     int64
	BytesCopied  int64
	FilesCopied  int64
	FilesSkipped int64
	FilesFailed  int64
	StopReason   string
}

// Attachment is a file path the Notifier may include verbatim (e.g. a
// session log or the checkpoint snapshot at time of failure).
type Attachment struct {
	Path  string
	Label string
}

// Notifier is invoked on terminal run events (spec.md §6). Core code
// depends only on this interface; concrete notifiers (SMTP, webhook,
// no-op) live outside the core.
type Notifier interface {
	NotifyCompletion(ctx context.Context, summary RunSummary, status Status, attachments []Attachment) error
}

// NoopNotifier discards every notification. Useful as the default when
// no notifier is configured (spec.md §6 notes the CLI's notification
// exit code "3" is optional and disabled by default).
type NoopNotifier struct{}

func (NoopNotifier) NotifyCompletion(context.Context, RunSummary, Status, []Attachment) error {
	return nil
}
