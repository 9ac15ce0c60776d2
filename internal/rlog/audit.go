package rlog

import (
	"context"
	"time"
)

// AuditEvent is one of the structured, single-line JSON audit events
// spec.md §6 requires the Logger to emit on a parallel channel:
// SessionStart, SessionEnd, ChunkStart, ChunkComplete, ChunkError,
// ConfigChange, EmailSent, VssSnapshotCreated, VssSnapshotRemoved.
type AuditEvent string

const (
	EventSessionStart       AuditEvent = "SessionStart"
	EventSessionEnd         AuditEvent = "SessionEnd"
	EventChunkStart         AuditEvent = "ChunkStart"
	EventChunkComplete      AuditEvent = "ChunkComplete"
	EventChunkError         AuditEvent = "ChunkError"
	EventConfigChange       AuditEvent = "ConfigChange"
	EventEmailSent          AuditEvent = "EmailSent"
	EventVssSnapshotCreated AuditEvent = "VssSnapshotCreated"
	EventVssSnapshotRemoved AuditEvent = "VssSnapshotRemoved"
)

// Auditor appends structured audit events. The session logger's
// implementation writes one JSON object per line with a UTC timestamp,
// to Logs/YYYY-MM-DD/Audit_<id>.jsonl.
type Auditor interface {
	Audit(ctx context.Context, event AuditEvent, fields ...Field)
}

type auditLogger struct {
	base Logger
}

func (a *auditLogger) Audit(_ context.Context, event AuditEvent, fields ...Field) {
	all := make([]Field, 0, len(fields)+2)
	all = append(all, String("event", string(event)), String("timestamp", time.Now().UTC().Format(time.RFC3339Nano)))
	all = append(all, fields...)
	a.base.Info(string(event), all...)
}

// NewAuditor wraps a Logger (normally one whose core writes exclusively
// to the audit JSONL sink) as an Auditor.
func NewAuditor(base Logger) Auditor {
	return &auditLogger{base: base}
}
