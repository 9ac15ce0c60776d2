// Package sessionlog wires together the zap cores a run needs: the
// human-readable session log, per-chunk job logs, and the structured
// audit JSONL stream, all rooted under the data directory layout named
// in spec.md §6:
//
//	Logs/YYYY-MM-DD/Session_<id>.log
//	Logs/YYYY-MM-DD/Audit_<id>.jsonl
//	Logs/YYYY-MM-DD/Jobs/Chunk_NNN.log
//
// Grounded on the teacher's repo/logging (Module/Broadcast pattern,
// only its tests survived retrieval) and on its use of go.uber.org/zap
// in snapshot/snapshotfs/upload_test.go.
package sessionlog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pacepace/robocurse/internal/rlog"
)

// Session owns every log sink opened for one orchestrator run and
// closes them together.
type Session struct {
	dataDir   string
	dateDir   string
	sessionID string

	sessionFile *os.File
	auditFile   *os.File

	Logger  *zap.Logger
	Auditor rlog.Auditor
}

// Open creates Logs/<today>/Session_<id>.log and Audit_<id>.jsonl and
// returns a Session wiring both into one *zap.Logger (session file +
// console) and one audit-only Auditor.
func Open(dataDir, sessionID string, now time.Time, console zapcore.WriteSyncer) (*Session, error) {
	dateDir := filepath.Join(dataDir, "Logs", now.UTC().Format("2006-01-02"))
	if err := os.MkdirAll(filepath.Join(dateDir, "Jobs"), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	sessionPath := filepath.Join(dateDir, fmt.Sprintf("Session_%s.log", sessionID))
	auditPath := filepath.Join(dateDir, fmt.Sprintf("Audit_%s.jsonl", sessionID))

	sessionFile, err := os.OpenFile(sessionPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open session log: %w", err)
	}

	auditFile, err := os.OpenFile(auditPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		sessionFile.Close()
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	sessionCore := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(sessionFile), zapcore.DebugLevel)
	auditCore := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(auditFile), zapcore.InfoLevel)

	cores := []zapcore.Core{sessionCore}
	if console != nil {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), console, zapcore.InfoLevel))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	auditLogger := zap.New(auditCore)

	return &Session{
		dataDir:     dataDir,
		dateDir:     dateDir,
		sessionID:   sessionID,
		sessionFile: sessionFile,
		auditFile:   auditFile,
		Logger:      logger,
		Auditor:     rlog.NewAuditor(&simpleLogger{auditLogger}),
	}, nil
}

// ChunkLogPath returns the per-chunk job log path for a chunk id,
// matching spec.md §3 Chunk.LogPath / §6 Jobs/Chunk_NNN.log.
func (s *Session) ChunkLogPath(chunkID int64) string {
	return filepath.Join(s.JobsDir(), fmt.Sprintf("Chunk_%05d.log", chunkID))
}

// JobsDir returns the directory orchestrator.AdapterJobRunner writes
// per-chunk logs into for this session.
func (s *Session) JobsDir() string {
	return filepath.Join(s.dateDir, "Jobs")
}

// WithLogger returns a context carrying this session's logger, so
// rlog.Module(...)(ctx) resolves to it anywhere downstream.
func (s *Session) WithLogger(ctx context.Context) context.Context {
	return rlog.WithLogger(ctx, s.Logger)
}

// Close flushes and closes the session and audit log files.
func (s *Session) Close() error {
	_ = s.Logger.Sync()

	err1 := s.sessionFile.Close()
	err2 := s.auditFile.Close()

	if err1 != nil {
		return err1
	}

	return err2
}

type simpleLogger struct {
	z *zap.Logger
}

func (l *simpleLogger) Debug(msg string, fields ...rlog.Field) { l.z.Debug(msg, fields...) }
func (l *simpleLogger) Info(msg string, fields ...rlog.Field)  { l.z.Info(msg, fields...) }
func (l *simpleLogger) Warn(msg string, fields ...rlog.Field)  { l.z.Warn(msg, fields...) }
func (l *simpleLogger) Error(msg string, fields ...rlog.Field) { l.z.Error(msg, fields...) }
