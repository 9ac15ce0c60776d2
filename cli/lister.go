package cli

import (
	"context"
	"io"
	"os/exec"

	"github.com/pkg/errors"

	"github.com/pacepace/robocurse/dirtree"
)

// listOnlyFlag asks the copier to enumerate without copying (spec.md
// §6: "In list-only mode it prints, per file, lines matching..."; the
// exact flag is left to the copier contract, so this mirrors the
// robocopy convention the domain descends from — see DESIGN.md).
const listOnlyFlag = "/L"

// subprocessLister implements dirtree.Lister by invoking the copier
// binary in list-only mode, streaming its stdout back to the caller
// (spec.md §4.2: "reading its output as a stream so progress can be
// surfaced to the caller every N lines").
type subprocessLister struct {
	executablePath string
}

func newSubprocessLister(executablePath string) *subprocessLister {
	return &subprocessLister{executablePath: executablePath}
}

type cmdReadCloser struct {
	io.ReadCloser
	cmd *exec.Cmd
}

// bitFatalError mirrors copier.classifyExitCode's bit4 (see
// copier/exitcode.go); list mode otherwise exits non-zero routinely
// (e.g. the "files found" bit) so only the fatal bit is treated as a
// genuine list-mode failure here.
const bitFatalError = 16

func (c *cmdReadCloser) Close() error {
	closeErr := c.ReadCloser.Close()

	waitErr := c.cmd.Wait()
	if waitErr == nil {
		return closeErr
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) && exitErr.ExitCode()&bitFatalError == 0 {
		return closeErr
	}

	return errors.Wrap(waitErr, "copier list-mode exited with error")
}

func (l *subprocessLister) List(ctx context.Context, root string) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, l.executablePath, root, root, listOnlyFlag)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "creating stdout pipe for list mode")
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "starting copier in list-only mode")
	}

	return &cmdReadCloser{ReadCloser: stdout, cmd: cmd}, nil
}

var _ dirtree.Lister = (*subprocessLister)(nil)
