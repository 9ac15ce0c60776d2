package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func skipOnWindows(t *testing.T) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("fake copier is a POSIX shell script")
	}
}

func writeFakeListerScript(t *testing.T, code int, lines []string) string {
	t.Helper()
	skipOnWindows(t)

	path := filepath.Join(t.TempDir(), "fakelister.sh")

	body := "#!/bin/sh\n"
	for _, l := range lines {
		body += "echo '" + l + "'\n"
	}

	body += "exit " + strconv.Itoa(code) + "\n"

	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))

	return path
}

func TestSubprocessListerStreamsStdout(t *testing.T) {
	script := writeFakeListerScript(t, 0, []string{"New Dir 0 C:\\src\\", "New File 4 C:\\src\\a.txt"})

	l := newSubprocessLister(script)

	rc, err := l.List(context.Background(), `C:\src`)
	require.NoError(t, err)

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Contains(t, string(data), "New File 4")

	require.NoError(t, rc.Close())
}

func TestSubprocessListerNonFatalExitCodeDoesNotError(t *testing.T) {
	script := writeFakeListerScript(t, 1, []string{"New Dir 0 C:\\src\\"})

	l := newSubprocessLister(script)

	rc, err := l.List(context.Background(), `C:\src`)
	require.NoError(t, err)

	_, err = io.ReadAll(rc)
	require.NoError(t, err)

	require.NoError(t, rc.Close())
}

func TestSubprocessListerFatalExitCodeErrors(t *testing.T) {
	script := writeFakeListerScript(t, 16, []string{"New Dir 0 C:\\src\\"})

	l := newSubprocessLister(script)

	rc, err := l.List(context.Background(), `C:\src`)
	require.NoError(t, err)

	_, err = io.ReadAll(rc)
	require.NoError(t, err)

	require.Error(t, rc.Close())
}
