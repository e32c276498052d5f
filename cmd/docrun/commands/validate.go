package commands

import (
	"git.home.luguber.info/inful/docrun/internal/build"
)

// ValidateCmd implements the 'validate' command.
type ValidateCmd struct{}

func (v *ValidateCmd) Run(g *Global, root *CLI) error {
	s, err := root.prepare()
	if err != nil {
		return err
	}
	result, err := s.run(g.ctx(), build.BuildOptions{ValidateOnly: true})
	if err != nil {
		return err
	}
	if d := result.Declaration; d != nil {
		root.printf("Declared as submodule %q at %s (%s)\n", d.Name, d.Path, d.URL)
	}
	return nil
}
