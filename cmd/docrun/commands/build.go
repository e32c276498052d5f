package commands

import (
	"git.home.luguber.info/inful/docrun/internal/build"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	DryRun bool `name:"dry-run" help:"Verify the submodule and print the generator command without copying or running it"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	s, err := root.prepare()
	if err != nil {
		return err
	}
	if _, err := s.run(g.ctx(), build.BuildOptions{DryRun: b.DryRun}); err != nil {
		return err
	}
	if !b.DryRun {
		root.printf("Build completed successfully\n")
	}
	return nil
}
