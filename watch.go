package main

import (
	"context"
	"os"
	"os/signal"

	zlog "github.com/rs/zerolog/log"
	"github.com/swdunlop/skeleton-go/skeleton/emit"
	"github.com/swdunlop/skeleton-go/skeleton/watcher"
	"github.com/swdunlop/zugzug-go"
	"github.com/swdunlop/zugzug-go/zug/parser"
)

func init() {
	tasks = append(tasks, zugzug.Tasks{
		{Name: "watch", Use: "Builds the project, then rebuilds it whenever a source changes", Fn: runWatch, Parser: parser.New(
			parser.String(&skeletonEnv, "env", "e", "The profile to use, overriding SKELETON_ENV"),
			parser.String(&skeletonRoot, "root", "r", "The project directory, overriding SKELETON_ROOT"),
		), Settings: projectSettings},
	}...)
}

func runWatch(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()
	p, err := openProject()
	if err != nil {
		return err
	}
	defer p.Close()
	return p.watch(ctx, nil)
}

// watch builds the project and rebuilds it after every change below the resolve root until ctx is done.  Build errors
// are logged and passed to built, if given, rather than stopping the watch.
func (p *project) watch(ctx context.Context, built func(*emit.Manifest, error)) error {
	wr, err := watcher.Start(watcher.Directory(p.cfg.Resolve.Root))
	if err != nil {
		return err
	}
	defer wr.Close()

	rebuild := func() {
		m, err := p.build()
		if err != nil {
			zlog.Error().Err(err).Msg(`build failed`)
		}
		if built != nil {
			built(m, err)
		}
	}
	rebuild()
	zlog.Info().Str(`dir`, p.cfg.Resolve.Root).Msg(`watching for changes`)
	for {
		select {
		case <-ctx.Done():
			return nil
		case name := <-wr.Changes():
			zlog.Debug().Str(`file`, name).Msg(`source changed`)
			rebuild()
		case err := <-wr.Errors():
			zlog.Warn().Err(err).Msg(`watcher error`)
		}
	}
}
