package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"

	"github.com/hylla/kanfile/internal/app"
)

// version is stamped at release build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(exitCode(err))
}

// run executes one CLI invocation. fang prints errors to stderr.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	root := newRootCommand(newCLI(stdin, stdout, stderr, os.Getenv))
	root.SetArgs(args)
	return fang.Execute(ctx, root, fang.WithVersion(version))
}

// exitCode maps run errors to process exit codes: 2 for fatal store
// conditions (lock timeout, IO), 1 for every other failure.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var failed *opError
	if errors.As(err, &failed) {
		if failed.body.Fatal {
			return 2
		}
		return 1
	}
	if errors.Is(err, app.ErrLockTimeout) || errors.Is(err, app.ErrIO) {
		return 2
	}
	return 1
}
