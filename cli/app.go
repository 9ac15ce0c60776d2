// Package cli implements the robocurse command-line front end: the
// external-collaborator surface spec.md §6 describes as "the thinnest
// possible external-collaborator stand-in" around the core pipeline
// (Directory Profiler -> Chunker -> Checkpoint Store -> Snapshot
// Manager -> Orchestrator -> Progress & Health -> Notifier).
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/coreos/go-systemd/v22/daemon"
	petname "github.com/dustinkirkland/golang-petname"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/pacepace/robocurse/checkpoint"
	"github.com/pacepace/robocurse/chunker"
	"github.com/pacepace/robocurse/copier"
	"github.com/pacepace/robocurse/dirtree"
	"github.com/pacepace/robocurse/external"
	"github.com/pacepace/robocurse/health"
	"github.com/pacepace/robocurse/internal/clock"
	"github.com/pacepace/robocurse/internal/rerr"
	"github.com/pacepace/robocurse/internal/rlog"
	"github.com/pacepace/robocurse/internal/sessionlog"
	"github.com/pacepace/robocurse/notification"
	"github.com/pacepace/robocurse/notification/sender"
	"github.com/pacepace/robocurse/notification/sender/webhook"
	"github.com/pacepace/robocurse/orchestrator"
	"github.com/pacepace/robocurse/profile"
	"github.com/pacepace/robocurse/volsnapshot"
)

var log = rlog.Module("robocurse/cli")

// nolint:gochecknoglobals
var (
	defaultColor = color.New()
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgHiRed)
	noteColor    = color.New(color.FgHiCyan)
)

// Exit codes, spec.md §6.
const (
	ExitSuccess             = 0
	ExitReplicationFailure  = 1
	ExitPreflightFailure    = 2
	ExitNotificationFailure = 3
)

// ExitCoder is implemented by errors that know which process exit code
// they map to; main.go type-asserts for it and falls back to
// ExitReplicationFailure for plain errors.
type ExitCoder interface {
	ExitCode() int
}

// PreflightError wraps a failure that happened before any chunk ran:
// scanning, chunking, checkpoint loading, or snapshot creation.
type PreflightError struct{ Err error }

func (e *PreflightError) Error() string { return e.Err.Error() }
func (e *PreflightError) Unwrap() error { return e.Err }
func (e *PreflightError) ExitCode() int { return ExitPreflightFailure }

// ReplicationError wraps a run that reached a terminal phase other than
// Complete, or exhausted chunk retries.
type ReplicationError struct{ Err error }

func (e *ReplicationError) Error() string { return e.Err.Error() }
func (e *ReplicationError) Unwrap() error { return e.Err }
func (e *ReplicationError) ExitCode() int { return ExitReplicationFailure }

// NotificationError wraps a Notifier.NotifyCompletion failure. It is
// only ever returned when the run itself otherwise succeeded (spec.md
// §6: exit code 3 is "optional, disabled by default").
type NotificationError struct{ Err error }

func (e *NotificationError) Error() string { return e.Err.Error() }
func (e *NotificationError) Unwrap() error { return e.Err }
func (e *NotificationError) ExitCode() int { return ExitNotificationFailure }

type textOutput struct {
	svc appServices
}

func (o *textOutput) setup(svc appServices) { o.svc = svc }

func (o *textOutput) stdout() io.Writer {
	if o.svc == nil {
		return os.Stdout
	}

	return o.svc.stdout()
}

func (o *textOutput) stderr() io.Writer {
	if o.svc == nil {
		return os.Stderr
	}

	return o.svc.stderr()
}

func (o *textOutput) printStdout(msg string, args ...interface{}) {
	fmt.Fprintf(o.stdout(), msg, args...)
}

// appServices are the methods of *App command handlers are allowed to
// call — the same seam the teacher draws with its own appServices
// interface (cli/app.go), just pointed at our pipeline instead of a
// repository connection.
type appServices interface {
	noopAction(act func(ctx context.Context) error) func(ctx *kingpin.ParseContext) error
	runProfile(ctx context.Context, p profile.Profile, dryRun bool) (external.Status, error)
	loadProfiles() ([]profile.Profile, error)
	snapshotManager() (*volsnapshot.Manager, error)
	stdout() io.Writer
	stderr() io.Writer
}

// commandParent is implemented by App and any command that can itself
// hold sub-commands.
type commandParent interface {
	Command(name, help string) *kingpin.CmdClause
}

// App holds per-invocation flags and wiring. One App per process.
type App struct {
	dataDir         string
	copierPath      string
	profilesPath    string
	metricsListen   string
	webhookEndpoint string
	tickInterval    time.Duration
	statusInterval  time.Duration

	run       commandRun
	snapshot  commandSnapshot
	retention commandRetention

	stdoutWriter io.Writer
	stderrWriter io.Writer
	rootctx      context.Context // nolint:containedctx
}

// NewApp constructs an App wired to real stdio and a background root
// context, mirroring the teacher's NewApp.
func NewApp() *App {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}

	return &App{
		tickInterval:   200 * time.Millisecond,
		statusInterval: 2 * time.Second,
		stdoutWriter:   colorable.NewColorableStdout(),
		stderrWriter:   colorable.NewColorableStderr(),
		rootctx:        context.Background(),
	}
}

// terminalWidth returns the current stdout width, falling back to 80
// columns when stdout isn't a terminal (piped output, CI logs).
func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}

	return 80
}

func truncateToWidth(s string, width int) string {
	if len(s) <= width {
		return s
	}

	return s[:width-1] + "…"
}

func (c *App) stdout() io.Writer { return c.stdoutWriter }
func (c *App) stderr() io.Writer { return c.stderrWriter }

// Attach registers every flag and sub-command onto app.
func (c *App) Attach(app *kingpin.Application) {
	app.Flag("data-dir", "Directory for checkpoints, health status, and per-chunk logs").
		Default("./robocurse-data").Envar("ROBOCURSE_DATA_DIR").StringVar(&c.dataDir)
	app.Flag("copier-path", "Path to the copier executable invoked for each chunk").
		Default("robocopy").Envar("ROBOCURSE_COPIER_PATH").StringVar(&c.copierPath)
	app.Flag("profiles", "Path to the JSON profiles configuration file").
		Default("profiles.json").Envar("ROBOCURSE_PROFILES").StringVar(&c.profilesPath)
	app.Flag("metrics-listen-addr", "Expose Prometheus metrics and /healthz on host:port").
		Envar("ROBOCURSE_METRICS_ADDR").StringVar(&c.metricsListen)
	app.Flag("notify-webhook", "Webhook endpoint notified on run completion (optional)").
		Envar("ROBOCURSE_NOTIFY_WEBHOOK").StringVar(&c.webhookEndpoint)

	c.run.setup(c, app)
	c.snapshot.setup(c, app)
	c.retention.setup(c, app)
}

func (c *App) noopAction(act func(ctx context.Context) error) func(ctx *kingpin.ParseContext) error {
	return func(*kingpin.ParseContext) error {
		return act(c.rootctx)
	}
}

func (c *App) loadProfiles() ([]profile.Profile, error) {
	return LoadProfiles(c.profilesPath)
}

func (c *App) notifier() external.Notifier {
	if c.webhookEndpoint == "" {
		return external.NoopNotifier{}
	}

	p, err := sender.GetSender(context.Background(), "robocurse", webhook.ProviderType, &webhook.Options{
		Endpoint: c.webhookEndpoint,
		Method:   "POST",
	})
	if err != nil {
		log(context.Background()).Warn("invalid --notify-webhook, notifications disabled", rlog.Err(err))
		return external.NoopNotifier{}
	}

	return notification.NewSenderNotifier(p)
}

func (c *App) snapshotRegistry() *volsnapshot.Registry {
	return volsnapshot.NewRegistry(
		filepath.Join(c.dataDir, "shadow-registry.json"),
		filepath.Join(c.dataDir, "shadow-registry.lock"),
		clock.Real{},
	)
}

func (c *App) snapshotManager() (*volsnapshot.Manager, error) {
	return volsnapshot.NewManager(volsnapshot.NewDriver(), c.snapshotRegistry(), clock.Real{}, volsnapshot.DefaultRetryPolicy), nil
}

// runProfile drives the full core pipeline for one profile: scan,
// chunk, resume against any checkpoint, optionally snapshot the
// source, replicate to completion, and notify (spec.md §1 end-to-end
// flow, §6 exit codes).
func (c *App) runProfile(ctx context.Context, p profile.Profile, dryRun bool) (external.Status, error) {
	body := func(sourceRoot string) (external.Status, error) {
		return c.runAgainstSource(ctx, p, sourceRoot, dryRun)
	}

	if !p.UseSnapshot {
		return body(p.Source)
	}

	mgr, err := c.snapshotManager()
	if err != nil {
		return external.Failed, &PreflightError{Err: err}
	}

	var (
		status external.Status
		runErr error
	)

	_, err = mgr.WithSnapshot(ctx, volsnapshot.VolumeSource{Volume: p.Source}, func(snapshotSourcePath string) error {
		status, runErr = body(snapshotSourcePath)
		return runErr
	})
	if err != nil {
		return external.Failed, &PreflightError{Err: errors.Wrap(err, "creating source snapshot")}
	}

	return status, runErr
}

func (c *App) runAgainstSource(ctx context.Context, p profile.Profile, sourceRoot string, dryRun bool) (external.Status, error) {
	lister := newSubprocessLister(c.copierPath)

	width := terminalWidth()

	tree, err := dirtree.Build(ctx, lister, sourceRoot, 1000, func(lines int) {
		msg := truncateToWidth(fmt.Sprintf("  scanned %d lines of %s...", lines, sourceRoot), width)
		noteColor.Fprintf(c.stdout(), "%s\n", msg) //nolint:errcheck
	})
	if err != nil {
		return external.Failed, &PreflightError{Err: rerr.Wrap(rerr.InvalidInput, err, "scanning source tree")}
	}

	ck := chunker.New()

	chunks, err := ck.Chunk(ctx, tree, sourceRoot, p.Destination, p.EffectiveLimits())
	if err != nil {
		return external.Failed, &PreflightError{Err: rerr.Wrap(rerr.InvalidInput, err, "chunking directory tree")}
	}

	store := checkpoint.NewStore(filepath.Join(c.dataDir, "checkpoints"))

	cp, err := store.Load(p.Name)
	if err != nil {
		var corrupt *checkpoint.CorruptCheckpointError
		if !errors.As(err, &corrupt) {
			return external.Failed, &PreflightError{Err: rerr.Wrap(rerr.Transient, err, "loading checkpoint")}
		}

		taggedErr := rerr.Wrap(rerr.CorruptState, err, "checkpoint file is corrupt")
		log(ctx).Warn("starting over without checkpoint", rlog.String("kind", rerr.KindOf(taggedErr).String()), rlog.Err(taggedErr))

		cp = nil
	}

	resumedCount, resumedBytes, resumedFiles := checkpoint.Resume(chunks, cp)
	if resumedCount > 0 {
		defaultColor.Fprintf(c.stdout(), "resumed %d chunks (%d bytes, %d files) from checkpoint\n", //nolint:errcheck
			resumedCount, resumedBytes, resumedFiles)
	}

	sessionID := uuid.NewString()
	if cp != nil {
		sessionID = cp.SessionID
	}

	// nickname is a human-memorable label for this run, shown alongside
	// the session UUID in health.json and log lines — easier to say out
	// loud than a UUID when eyeballing `robocurse` output across runs.
	nickname := petname.Generate(2, "-")

	if dryRun {
		defaultColor.Fprintf(c.stdout(), "dry run: %d chunks would be replicated for profile %q\n", //nolint:errcheck
			len(chunks), p.Name)

		return external.Success, nil
	}

	return c.replicate(ctx, p, sessionID, nickname, chunks, store)
}

// logRetention bounds how long dated Logs/YYYY-MM-DD directories are
// kept before replicate rotates them into a zip archive (spec.md §6
// names the rotated layout but leaves the retention window to
// configuration).
const logRetention = 7 * 24 * time.Hour

// replicate runs the orchestrator's tick loop to completion, writing
// health status/metrics each iteration, then notifies on the terminal
// phase (spec.md §4.6, §4.8, §6).
func (c *App) replicate(ctx context.Context, p profile.Profile, sessionID, nickname string, chunks []*chunker.Chunk, store *checkpoint.Store) (external.Status, error) {
	logsRoot := filepath.Join(c.dataDir, "logs")

	daemonNotify(daemon.SdNotifyReady)

	if err := sessionlog.RotateOlderThan(logsRoot, time.Now().Add(-logRetention)); err != nil {
		log(ctx).Warn("log rotation failed, continuing", rlog.Err(err))
	}

	session, err := sessionlog.Open(logsRoot, sessionID, time.Now(), zapcore.AddSync(c.stdout()))
	if err != nil {
		return external.Failed, &PreflightError{Err: errors.Wrap(err, "opening session log")}
	}
	defer session.Close() //nolint:errcheck

	ctx = session.WithLogger(ctx)
	session.Auditor.Audit(ctx, rlog.EventSessionStart, rlog.String("profile", p.Name), rlog.String("nickname", nickname))

	runner := orchestrator.NewAdapterJobRunner(copier.NewAdapter(c.copierPath), session.JobsDir())

	cfg := orchestrator.DefaultConfig
	if p.MaxConcurrent > 0 {
		cfg.MaxConcurrentJobs = p.MaxConcurrent
	}

	orch := orchestrator.New(cfg, clock.Real{}, runner, store, p.Name, time.Now().UnixNano())
	orch.StartReplicating(sessionID, chunks)

	statusWriter := health.NewWriter(filepath.Join(c.dataDir, "health.json"), c.statusInterval, clock.Real{})
	registry := prometheus.NewRegistry()
	metrics := health.NewMetrics(registry)

	if c.metricsListen != "" {
		srvCtx, stopServer := context.WithCancel(ctx)
		defer stopServer()

		srv := health.NewServer(c.metricsListen, registry, health.NewReader(filepath.Join(c.dataDir, "health.json"), clock.Real{}))

		go func() {
			if err := srv.ListenAndServe(srvCtx); err != nil {
				log(ctx).Warn("metrics listener stopped", rlog.Err(err))
			}
		}()
	}

	startTime := time.Now()

	for {
		orch.Tick(ctx)

		daemonNotify(daemon.SdNotifyWatchdog)

		state := orch.Snapshot()

		active := make([]health.ActiveJobProgress, 0, len(state.ActiveJobs))
		for _, h := range state.ActiveJobs {
			bytesCopied, _ := h.Job.LiveProgress()
			active = append(active, health.ActiveJobProgress{BytesCopied: bytesCopied})
		}

		totalBytes := estimateTotalBytes(chunks)
		bytesComplete := health.BytesComplete(state.CompletedChunkBytes, active)
		eta := health.ComputeETA(bytesComplete, totalBytes, time.Since(startTime))

		var etaSeconds *float64
		if eta.Valid {
			s := eta.Value.Seconds()
			etaSeconds = &s
		}

		status := health.Status{
			Timestamp:       time.Now(),
			Phase:           state.Phase.String(),
			CurrentProfile:  p.Name,
			ProfileIndex:    state.ProfileIndex,
			ProfileCount:    state.ProfileCount,
			ChunksCompleted: state.CompletedCount() + state.WarningCount(),
			ChunksTotal:     state.TotalChunks,
			ChunksPending:   state.PendingCount(),
			ChunksFailed:    state.FailedCount(),
			ActiveJobs:      len(state.ActiveJobs),
			BytesCompleted:  bytesComplete,
			EtaSeconds:      etaSeconds,
			SessionID:       sessionID,
			SessionNickname: nickname,
			Healthy:         !state.CircuitBreaker.Tripped,
			Message:         state.StopReason,
		}

		if err := statusWriter.Write(status, state.Phase.Terminal()); err != nil {
			log(ctx).Warn("failed to write health status", rlog.Err(err))
		}

		metrics.Update(status, eta)

		if state.Phase.Terminal() {
			daemonNotify(daemon.SdNotifyStopping)
			session.Auditor.Audit(ctx, rlog.EventSessionEnd, rlog.String("phase", state.Phase.String()), rlog.Int64("completedChunks", state.CompletedCount()))
			return c.finish(ctx, p, sessionID, startTime, state)
		}

		if !clock.SleepInterruptibly(ctx, c.tickInterval) {
			orch.Stop("context cancelled")
		}
	}
}

func (c *App) finish(ctx context.Context, p profile.Profile, sessionID string, startTime time.Time, state orchestrator.OrchestrationState) (external.Status, error) {
	status := external.Success

	switch {
	case state.FailedCount() > 0 || state.Phase == orchestrator.Stopped:
		status = external.Failed
	case state.WarningCount() > 0:
		status = external.Warning
	}

	summary := external.RunSummary{
		SessionID:    sessionID,
		ProfileName:  p.Name,
		StartTime:    startTime,
		EndTime:      time.Now(),
		TotalChunks:  state.TotalChunks,
		Completed:    state.CompletedCount(),
		Failed:       state.FailedCount(),
		Warnings:     state.WarningCount(),
		BytesCopied:  state.CompletedChunkBytes,
		FilesCopied:  state.CompletedChunkFiles,
		FilesSkipped: state.TotalFilesSkipped,
		FilesFailed:  state.TotalFilesFailed,
		StopReason:   state.StopReason,
	}

	notifyErr := c.notifier().NotifyCompletion(ctx, summary, status, nil)

	if status == external.Failed {
		errorColor.Fprintf(c.stderr(), "profile %q failed: %s\n", p.Name, state.StopReason) //nolint:errcheck
		return status, &ReplicationError{Err: errors.Errorf("profile %q did not complete: %s", p.Name, state.StopReason)}
	}

	if notifyErr != nil {
		warningColor.Fprintf(c.stderr(), "notification failed: %v\n", notifyErr) //nolint:errcheck
		return status, &NotificationError{Err: notifyErr}
	}

	return status, nil
}

func estimateTotalBytes(chunks []*chunker.Chunk) int64 {
	var total int64
	for _, ch := range chunks {
		total += ch.EstimatedSize
	}

	return total
}

// daemonNotify pings systemd's NOTIFY_SOCKET when robocurse runs as a
// systemd service (Type=notify); it's a no-op everywhere else, since
// daemon.SdNotify returns (false, nil) with NOTIFY_SOCKET unset.
func daemonNotify(state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		log(context.Background()).Warn("systemd notify failed", rlog.Err(err))
	}
}
