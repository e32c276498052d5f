package commands

import (
	"git.home.luguber.info/inful/docrun/internal/config"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite existing configuration file"`
}

func (i *InitCmd) Run(_ *Global, root *CLI) error {
	cfgPath, _ := root.configPath(root.Root)
	root.printf("Writing configuration to %s\n", cfgPath)
	if err := config.Init(cfgPath, i.Force); err != nil {
		root.printf("Initialization failed\n")
		return err
	}
	root.printf("initialized successfully\n")
	return nil
}
