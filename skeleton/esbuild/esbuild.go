// Package esbuild builds a skeleton configuration with the esbuild API.  Outputs are kept in memory; the emit package
// decides what gets written.
package esbuild

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	esbuild "github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/swdunlop/skeleton-go/skeleton"
	"github.com/swdunlop/skeleton-go/skeleton/loader"
)

// New prepares an incremental build of cfg.  Call Build for each (re)build and Dispose when done.
func New(cfg *skeleton.Config, options ...Option) (*Builder, error) {
	b := &Builder{cfg: cfg, log: zlog.Logger}
	for _, option := range options {
		option(b)
	}
	reg, err := loader.Builtin(cfg, b.sass)
	if err != nil {
		return nil, err
	}
	opts, err := Options(cfg)
	if err != nil {
		return nil, err
	}
	opts.Plugins = append(opts.Plugins, loader.Plugin(cfg.Module, reg))
	opts.Plugins = append(opts.Plugins, b.plugins...)
	b.options = opts

	ctx, ctxErr := esbuild.Context(opts)
	if ctxErr != nil {
		b.logMessages(zerolog.ErrorLevel, ctxErr.Errors)
		return nil, &BuildError{Messages: ctxErr.Errors}
	}
	b.ctx = ctx
	return b, nil
}

// An Option adjusts a Builder.
type Option func(*Builder)

// Sass sets the compiler used by the sass loader.
func Sass(compiler loader.SassCompiler) Option {
	return func(b *Builder) { b.sass = compiler }
}

// Logger sets the logger used for esbuild diagnostics.
func Logger(log zerolog.Logger) Option {
	return func(b *Builder) { b.log = log }
}

// Plugins appends esbuild plugins after the loader plugin.
func Plugins(plugins ...esbuild.Plugin) Option {
	return func(b *Builder) { b.plugins = append(b.plugins, plugins...) }
}

// A Builder holds an esbuild context for a configuration.
type Builder struct {
	cfg     *skeleton.Config
	log     zerolog.Logger
	sass    loader.SassCompiler
	plugins []esbuild.Plugin
	options esbuild.BuildOptions
	ctx     esbuild.BuildContext
}

// BuildOptions returns the esbuild options used by the builder.
func (b *Builder) BuildOptions() esbuild.BuildOptions { return b.options }

// Build runs the build.  Warnings are logged; if esbuild reports any errors they are logged and returned as a
// *BuildError.
func (b *Builder) Build() (*Result, error) {
	ret := b.ctx.Rebuild()
	b.logMessages(zerolog.WarnLevel, ret.Warnings)
	if len(ret.Errors) > 0 {
		b.logMessages(zerolog.ErrorLevel, ret.Errors)
		return nil, &BuildError{Messages: ret.Errors}
	}
	result := &Result{
		Root:     b.options.AbsWorkingDir,
		Outdir:   b.options.Outdir,
		Files:    ret.OutputFiles,
		Warnings: ret.Warnings,
	}
	err := json.Unmarshal([]byte(ret.Metafile), &result.Metafile)
	if err != nil {
		return nil, fmt.Errorf(`decoding esbuild metafile: %w`, err)
	}
	return result, nil
}

// Dispose releases the esbuild context.
func (b *Builder) Dispose() {
	if b.ctx != nil {
		b.ctx.Dispose()
	}
}

func (b *Builder) logMessages(level zerolog.Level, msgs []esbuild.Message) {
	for _, msg := range msgs {
		evt := b.log.WithLevel(level).Str(`text`, msg.Text)
		if msg.PluginName != `` {
			evt = evt.Str(`plugin`, msg.PluginName)
		}
		if loc := msg.Location; loc != nil {
			evt = evt.Str(`file`, loc.File).Int(`line`, loc.Line).Int(`column`, loc.Column)
		}
		evt.Msg(`esbuild`)
	}
}

// A BuildError carries the error messages reported by esbuild.
type BuildError struct {
	Messages []esbuild.Message
}

func (e *BuildError) Error() string {
	lines := esbuild.FormatMessages(e.Messages, esbuild.FormatMessagesOptions{Kind: esbuild.ErrorMessage})
	return fmt.Sprintf("esbuild failed with %d errors:\n%s", len(e.Messages), strings.Join(lines, ``))
}

// A Result is the in-memory output of a build.
type Result struct {
	Root     string // absolute project root
	Outdir   string // absolute directory that output file paths are under
	Files    []esbuild.OutputFile
	Metafile Metafile
	Warnings []esbuild.Message
}

// Metafile is the part of the esbuild metafile used to find each entry's outputs.  Paths are relative to the project
// root.
type Metafile struct {
	Outputs map[string]MetafileOutput `json:"outputs"`
}

type MetafileOutput struct {
	Bytes      int              `json:"bytes"`
	EntryPoint string           `json:"entryPoint,omitempty"`
	CSSBundle  string           `json:"cssBundle,omitempty"`
	Imports    []MetafileImport `json:"imports"`
}

type MetafileImport struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

// Options translates cfg into esbuild build options without any plugins.
func Options(cfg *skeleton.Config) (esbuild.BuildOptions, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return esbuild.BuildOptions{}, err
	}
	opts := esbuild.BuildOptions{
		AbsWorkingDir: root,
		Bundle:        true,
		Write:         false,
		Metafile:      true,
		Platform:      esbuild.PlatformBrowser,
		Format:        esbuild.FormatIIFE,
		Define:        map[string]string{`DEBUG`: strconv.FormatBool(cfg.Debug)},
		LogLevel:      esbuild.LogLevelSilent,
	}
	// esbuild already walks up through node_modules; other module directories and the resolve root become node paths.
	opts.NodePaths, err = cfg.ModulePaths()
	if err != nil {
		return esbuild.BuildOptions{}, err
	}
	for _, it := range cfg.Entry {
		opts.EntryPointsAdvanced = append(opts.EntryPointsAdvanced, esbuild.EntryPoint{
			InputPath:  it.Path,
			OutputPath: it.Name,
		})
	}

	// esbuild lays out outputs under a directory even when nothing is written.
	opts.Outdir = absolute(root, cfg.Output.Path)
	if cfg.Output.Path == `` {
		opts.Outdir = filepath.Join(root, `dist`)
	}
	if cfg.Output.Filename != `` {
		opts.EntryNames = skeleton.Template(cfg.Output.Filename).ESBuild()
	}
	if cfg.Output.ChunkFilename != `` {
		opts.ChunkNames = skeleton.Template(cfg.Output.ChunkFilename).ESBuild()
	}

	switch cfg.Devtool {
	case skeleton.SourceMap:
		opts.Sourcemap = esbuild.SourceMapLinked
		opts.SourcesContent = esbuild.SourcesContentInclude
	case skeleton.InlineSourceMap:
		opts.Sourcemap = esbuild.SourceMapInline
		opts.SourcesContent = esbuild.SourcesContentInclude
	case skeleton.CheapModuleSourceMap:
		opts.Sourcemap = esbuild.SourceMapLinked
		opts.SourcesContent = esbuild.SourcesContentExclude
	default:
		opts.Sourcemap = esbuild.SourceMapNone
	}

	opts.Target, err = targetFor(cfg.Module)
	if err != nil {
		return esbuild.BuildOptions{}, err
	}
	opts.Engines, err = loader.EnginesFor(cfg.PostCSS)
	if err != nil {
		return esbuild.BuildOptions{}, err
	}

	for _, plugin := range cfg.Plugins {
		switch plugin := plugin.(type) {
		case skeleton.Uglify:
			opts.MinifyWhitespace = !plugin.Beautify
			opts.MinifyIdentifiers = true
			opts.MinifySyntax = true
			opts.KeepNames = plugin.Mangle.KeepFnames
			if !plugin.Comments {
				opts.LegalComments = esbuild.LegalCommentsNone
			}
		case skeleton.Dedupe:
			opts.TreeShaking = esbuild.TreeShakingTrue
		case skeleton.CommonsChunk:
			opts.Splitting = true
			opts.Format = esbuild.FormatESModule
		}
	}
	return opts, nil
}

func absolute(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// targetFor returns ES2015 if a babel loader uses the es2015 preset, otherwise the esbuild default.
func targetFor(module skeleton.Module) (esbuild.Target, error) {
	for _, phase := range [][]skeleton.Rule{module.PreLoaders, module.Loaders} {
		for _, rule := range phase {
			for _, request := range rule.Loaders {
				step, err := loader.ParseRequest(request)
				if err != nil {
					return 0, err
				}
				if step.Name != `babel` {
					continue
				}
				for _, preset := range step.Query[`presets[]`] {
					if preset == `es2015` {
						return esbuild.ES2015, nil
					}
				}
			}
		}
	}
	return esbuild.DefaultTarget, nil
}
