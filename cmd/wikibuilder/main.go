package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/wikibuilder/cmd/wikibuilder/commands"
	ferrors "git.home.luguber.info/inful/wikibuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/wikibuilder/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var cli commands.CLI
	global := &commands.Global{Ctx: ctx, Stdout: stdout, Stderr: stderr}

	parser, err := kong.New(&cli,
		kong.Name("wikibuilder"),
		kong.Description("Static wiki generator"),
		kong.Writers(stdout, stderr),
		kong.Vars{"version": version.String()},
		kong.Bind(global),
	)
	if err != nil {
		panic(err)
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "wikibuilder: %v\n", err)
		return 2
	}

	err = kctx.Run(global, &cli)
	return ferrors.NewCLIErrorAdapter(cli.Verbose, global.Logger).WithOutput(stderr).HandleError(err)
}
