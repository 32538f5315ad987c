// Package emit turns the in-memory result of a build into the files described by the configuration's output and
// plugins: webpack style source map and stylesheet names, copied assets, an HTML page with the bundles injected and
// gzip copies of large files.
package emit

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/swdunlop/skeleton-go/skeleton"
	"github.com/swdunlop/skeleton-go/skeleton/esbuild"
	"github.com/swdunlop/skeleton-go/skeleton/hook"
)

// New returns an emitter for cfg.
func New(cfg *skeleton.Config, options ...Option) *Emitter {
	e := &Emitter{cfg: cfg, log: zlog.Logger}
	for _, option := range options {
		option(e)
	}
	e.steps = hook.Order(stepsFor(cfg)...)
	return e
}

// An Option adjusts an Emitter.
type Option func(*Emitter)

// Logger sets the logger for emitted files.
func Logger(log zerolog.Logger) Option {
	return func(e *Emitter) { e.log = log }
}

// An Emitter writes build results.
type Emitter struct {
	cfg   *skeleton.Config
	log   zerolog.Logger
	steps []Step
}

// Steps returns the names of the emit steps in the order they run.
func (e *Emitter) Steps() []string {
	names := make([]string, len(e.steps))
	for i, step := range e.steps {
		names[i] = step.Name()
	}
	return names
}

// A Step is one stage of emission.  Steps may implement hook.Provider and hook.Dependent to control their order.
type Step interface {
	Name() string
	Emit(*Manifest) error
}

// Emit runs every step against the build result.  If the configuration has an empty output nothing is written and the
// manifest only describes the in-memory files.
func (e *Emitter) Emit(ret *esbuild.Result) (*Manifest, error) {
	m, err := newManifest(e.cfg, ret)
	if err != nil {
		return nil, err
	}
	if e.cfg.Output.Empty() {
		return m, nil
	}
	for _, step := range e.steps {
		err = step.Emit(m)
		if err != nil {
			return nil, fmt.Errorf(`emit %v: %w`, step.Name(), err)
		}
	}
	for _, file := range m.Files {
		if file.Written {
			e.log.Debug().Str(`file`, file.Path).Int(`bytes`, len(file.Contents)).Msg(`emitted`)
		}
	}
	return m, nil
}

// A Manifest lists the files of a build and where each entry's bundle ended up.
type Manifest struct {
	Root    string // absolute project root
	Outdir  string // absolute output directory
	Hash    string // compilation hash
	Module  bool   // bundles are ES modules
	Files   []*File
	Entries map[string]*Assets
}

// A File is an output file.  Path is relative to the output directory and uses forward slashes.
type File struct {
	Path     string
	Contents []byte
	Written  bool
}

// Assets are the files produced for one entry.
type Assets struct {
	Script     string
	Stylesheet string
}

// File returns the file at path, or nil.
func (m *Manifest) File(path string) *File {
	for _, file := range m.Files {
		if file.Path == path {
			return file
		}
	}
	return nil
}

// Put adds or replaces the file at path and returns it.
func (m *Manifest) Put(path string, contents []byte) *File {
	if file := m.File(path); file != nil {
		file.Contents, file.Written = contents, false
		return file
	}
	file := &File{Path: path, Contents: contents}
	m.Files = append(m.Files, file)
	return file
}

// Abs returns the absolute location of a manifest path.
func (m *Manifest) Abs(path string) string {
	return filepath.Join(m.Outdir, filepath.FromSlash(path))
}

// Paths returns the sorted file paths.
func (m *Manifest) Paths() []string {
	seq := make([]string, len(m.Files))
	for i, file := range m.Files {
		seq[i] = file.Path
	}
	sort.Strings(seq)
	return seq
}

func newManifest(cfg *skeleton.Config, ret *esbuild.Result) (*Manifest, error) {
	m := &Manifest{
		Root:    ret.Root,
		Outdir:  ret.Outdir,
		Entries: make(map[string]*Assets, len(cfg.Entry)),
	}
	if _, ok := skeleton.Find[skeleton.CommonsChunk](cfg); ok {
		m.Module = true
	}
	for _, out := range ret.Files {
		rel, err := filepath.Rel(ret.Outdir, out.Path)
		if err != nil {
			return nil, err
		}
		m.Put(filepath.ToSlash(rel), out.Contents)
	}

	// metafile paths are relative to the project root
	outdir, err := filepath.Rel(ret.Root, ret.Outdir)
	if err != nil {
		return nil, err
	}
	outdir = filepath.ToSlash(outdir)
	for key, out := range ret.Metafile.Outputs {
		if out.EntryPoint == `` {
			continue
		}
		name, ok := entryName(cfg.Entry, out.EntryPoint)
		if !ok {
			continue
		}
		assets := &Assets{Script: relTo(outdir, key)}
		if out.CSSBundle != `` {
			assets.Stylesheet = relTo(outdir, out.CSSBundle)
		}
		m.Entries[name] = assets
	}
	return m, nil
}

func entryName(entry skeleton.Entry, source string) (string, bool) {
	source = path.Clean(filepath.ToSlash(source))
	for _, it := range entry {
		if path.Clean(filepath.ToSlash(it.Path)) == source {
			return it.Name, true
		}
	}
	return ``, false
}

func relTo(dir, p string) string {
	if dir == `.` {
		return p
	}
	return strings.TrimPrefix(p, dir+`/`)
}

func stepsFor(cfg *skeleton.Config) []Step {
	steps := []Step{&renameStep{cfg: cfg}, &hashStep{}, &writeStep{}}
	if _, ok := skeleton.Find[skeleton.MD5Hash](cfg); ok {
		steps[1] = &hashStep{md5: true}
	}
	for _, plugin := range cfg.Plugins {
		switch plugin := plugin.(type) {
		case skeleton.Copy:
			steps = append(steps, &copyStep{plugin: plugin})
		case skeleton.HTML:
			steps = append(steps, &htmlStep{plugin: plugin})
		case skeleton.Compression:
			steps = append(steps, &compressStep{plugin: plugin})
		}
	}
	return steps
}
