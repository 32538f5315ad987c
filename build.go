package main

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/swdunlop/skeleton-go/skeleton"
	"github.com/swdunlop/skeleton-go/skeleton/emit"
	"github.com/swdunlop/skeleton-go/skeleton/esbuild"
	"github.com/swdunlop/skeleton-go/skeleton/sass"
	"github.com/swdunlop/zugzug-go"
	"github.com/swdunlop/zugzug-go/zug/parser"
)

func init() {
	tasks = append(tasks, zugzug.Tasks{
		{Name: "build", Use: "Builds the project once using the SKELETON_ENV profile", Fn: runBuild, Parser: parser.New(
			parser.String(&skeletonEnv, "env", "e", "The profile to use, overriding SKELETON_ENV"),
			parser.String(&skeletonRoot, "root", "r", "The project directory, overriding SKELETON_ROOT"),
		), Settings: projectSettings},
	}...)
}

var projectSettings = zugzug.Settings{
	{Var: &skeletonEnv, Name: `SKELETON_ENV`,
		Use: "Selects the \"production\", \"testing\" or \"development\" profile (default: development)"},
	{Var: &skeletonRoot, Name: `SKELETON_ROOT`,
		Use: "Project directory containing src (default: \".\")"},
	{Var: &sassBinary, Name: `SASS_BINARY`,
		Use: "Dart Sass executable used for Sass stylesheets (default: \"sass\")"},
	{Var: &sassPath, Name: `SASS_PATH`,
		Use: "Extra directories searched by Sass imports, separated like PATH"},
}

var (
	skeletonEnv  string
	skeletonRoot string
	sassBinary   string
	sassPath     string
)

func runBuild(ctx context.Context) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	defer p.Close()
	_, err = p.build()
	return err
}

// A project holds everything needed to build the project repeatedly.
type project struct {
	cfg     *skeleton.Config
	sass    *sass.Compiler
	builder *esbuild.Builder
	emitter *emit.Emitter
}

func openProject() (*project, error) {
	zlog.Info().Msgf(`SKELETON_ENV=%s`, selectedEnv())
	cfg := selectedConfig()
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	zlog.Debug().Str(`profile`, string(cfg.Profile)).Str(`root`, cfg.Root).Msg(`loaded configuration`)

	p := &project{cfg: cfg, sass: sass.New(sassOptions()...)}
	var err error
	p.builder, err = esbuild.New(cfg, esbuild.Sass(p.sass))
	if err != nil {
		_ = p.sass.Close()
		return nil, err
	}
	p.emitter = emit.New(cfg)
	return p, nil
}

// sassOptions configures the Sass compiler from SASS_BINARY and SASS_PATH.  Module paths from the configuration are
// passed by the sass loader with each file.
func sassOptions() []sass.Option {
	var options []sass.Option
	if sassBinary != `` {
		options = append(options, sass.Binary(sassBinary))
	}
	var dirs []string
	for _, dir := range filepath.SplitList(sassPath) {
		if dir != `` {
			dirs = append(dirs, dir)
		}
	}
	if len(dirs) > 0 {
		options = append(options, sass.IncludePaths(dirs...))
	}
	return options
}

// build runs esbuild and emits the result.
func (p *project) build() (*emit.Manifest, error) {
	ret, err := p.builder.Build()
	if err != nil {
		return nil, err
	}
	m, err := p.emitter.Emit(ret)
	if err != nil {
		return nil, err
	}
	evt := zlog.Info().Str(`profile`, string(p.cfg.Profile)).Int(`files`, len(m.Files))
	if m.Hash != `` {
		evt = evt.Str(`hash`, m.Hash)
	}
	if !p.cfg.Output.Empty() {
		evt = evt.Str(`output`, p.cfg.Output.Path)
	}
	evt.Msg(`build complete`)
	return m, nil
}

func (p *project) Close() {
	p.builder.Dispose()
	err := p.sass.Close()
	if err != nil {
		zlog.Warn().Err(err).Msg(`stopping sass`)
	}
}
