package runner

import (
	"errors"
	"strings"

	"github.com/google/shlex"
)

// Command is a fully assembled process invocation.
type Command struct {
	Args []string // Args[0] is the executable
	Dir  string   // working directory; empty means the current directory
}

// ErrEmptyCommand is returned when a command has no executable.
var ErrEmptyCommand = errors.New("empty command")

// ParseCommandLine splits a command line into arguments using shell word rules
// (quotes and backslash escapes). No expansion or redirection is performed.
func ParseCommandLine(line string) ([]string, error) {
	args, err := shlex.Split(line)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}
	return args, nil
}

// String renders the command for logs, quoting arguments that need it.
func (c Command) String() string {
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = quote(a)
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`|&;<>()*?[]#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
