package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docrun/cmd/docrun/commands"
	derrors "git.home.luguber.info/inful/docrun/internal/errors"
	"git.home.luguber.info/inful/docrun/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cli := &commands.CLI{}
	parser, err := kong.New(cli,
		kong.Name("docrun"),
		kong.Description("Verify the documentation submodule, stage its generator config and run the generator."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)
	if err != nil {
		return derrors.NewCLIErrorAdapter(false, nil).Report(derrors.InternalError("failed to build CLI", err))
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		parser.Errorf("%s", err)
		return derrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(derrors.ValidationFailed("arguments", err.Error()))
	}

	global := &commands.Global{Context: ctx, Logger: slog.Default()}
	err = kctx.Run(global, cli)
	return derrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).Report(err)
}
