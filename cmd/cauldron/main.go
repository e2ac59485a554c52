// Package main provides the cauldron CLI for building components from recipes.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/ochairo/cauldron/internal/config"
)

// CLI is the root command
type CLI struct {
	Config config.Config `embed:""`

	Build    BuildCmd    `cmd:"" help:"Fetch, configure, compile and install a component."`
	Plan     PlanCmd     `cmd:"" help:"Print the build plan without running it."`
	Verify   VerifyCmd   `cmd:"" help:"Fetch a source archive and verify its checksum."`
	List     ListCmd     `cmd:"" help:"List available recipes."`
	Versions VersionsCmd `cmd:"" help:"List the versions a recipe declares."`
	Outdated OutdatedCmd `cmd:"" help:"Check upstream release pages for versions newer than the declared ones."`
}

// exitCode carries a requested exit status out of kong's Exit hook
type exitCode int

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// run parses args, executes the selected command and returns the process
// exit status: 0 on success, 1 when the command fails, 2 on usage errors
func run(ctx context.Context, args []string, stdout, stderr io.Writer) (code int) {
	defer func() {
		if r := recover(); r != nil {
			c, ok := r.(exitCode)
			if !ok {
				panic(r)
			}
			code = int(c)
		}
	}()

	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name(config.Name),
		kong.Description("Resolve component recipes and run their builds.\n\n"+
			"A recipe declares versions with published checksums and per-platform\n"+
			"profiles. cauldron picks the profile matching the target platform and\n"+
			"runs fetch, extract, configure, compile, install and cleanup."),
		kong.UsageOnError(),
		kong.Vars(config.Vars()),
		kong.Writers(stdout, stderr),
		kong.Exit(func(c int) { panic(exitCode(c)) }),
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.Bind(&output{stdout: stdout, stderr: stderr}),
	)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		var parseErr *kong.ParseError
		if errors.As(err, &parseErr) {
			_ = parseErr.Context.PrintUsage(true)
		}
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if err := cli.Config.Validate(); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if err := kctx.Run(&cli.Config); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// output holds the command output streams
type output struct {
	stdout io.Writer
	stderr io.Writer
}

func (o *output) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(o.stdout, format, args...)
}
