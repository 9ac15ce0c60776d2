// Command robocurse is the chunked, parallel file-replication
// orchestrator's CLI entry point (spec.md §6).
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/pacepace/robocurse/cli"
)

func main() {
	app := kingpin.New("robocurse", "Chunked parallel directory replication orchestrator")

	a := cli.NewApp()
	a.Attach(app)

	_, err := app.Parse(os.Args[1:])
	if err == nil {
		os.Exit(cli.ExitSuccess)
	}

	fmt.Fprintln(os.Stderr, err) //nolint:errcheck

	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		os.Exit(coder.ExitCode())
	}

	os.Exit(cli.ExitReplicationFailure)
}
