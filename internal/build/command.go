package build

import (
	"fmt"

	"git.home.luguber.info/inful/docrun/internal/config"
	derrors "git.home.luguber.info/inful/docrun/internal/errors"
	"git.home.luguber.info/inful/docrun/internal/runner"
)

// GeneratorCommand assembles the documentation generator invocation:
//
//	<executable...> <entry> -r <readme> -c <config> -d <output_dir> <extra_args...>
//
// Config loading fills every field with its default, so the argv shape is fixed.
// The command runs with dir as its working directory.
func GeneratorCommand(gen config.GeneratorConfig, dir string) (runner.Command, error) {
	args, err := runner.ParseCommandLine(gen.Executable)
	if err != nil {
		return runner.Command{}, derrors.ValidationFailed("generator.executable", fmt.Sprintf("cannot parse %q: %v", gen.Executable, err))
	}

	args = append(args, gen.Entry, "-r", gen.Readme, "-c", gen.Config, "-d", gen.OutputDir)
	args = append(args, gen.ExtraArgs...)

	return runner.Command{Args: args, Dir: dir}, nil
}
