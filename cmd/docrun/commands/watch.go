package commands

import (
	"context"
	"time"

	"git.home.luguber.info/inful/docrun/internal/build"
	"git.home.luguber.info/inful/docrun/internal/watcher"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Debounce time.Duration `help:"Quiet period after a change before rebuilding" default:"300ms"`
	LockWait time.Duration `name:"lock-wait" help:"How long a rebuild waits for another run in the same root to finish" default:"30s"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	s, err := root.prepare()
	if err != nil {
		return err
	}
	s.ws.WithLockTimeout(w.LockWait)

	wt, err := watcher.New([]string{s.ws.Resolve(s.cfg.Copy.Source)}, func(ctx context.Context) error {
		if _, err := s.run(ctx, build.BuildOptions{}); err != nil {
			return err
		}
		root.printf("Build completed successfully\n")
		return nil
	})
	if err != nil {
		return err
	}
	return wt.WithDebounce(w.Debounce).Run(g.ctx())
}
