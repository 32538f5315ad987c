// Package skeleton describes the front-end build configuration for the skeleton project: its entry points, module
// resolution, loader chains and the output and plugin selection for each build profile.
//
// A configuration is plain data.  Use Load to select the configuration for a SKELETON_ENV value, then hand it to the
// esbuild package to build it and to the emit package to write the artifacts.
package skeleton

import (
	"path/filepath"
	"regexp"
)

// Load returns the configuration for the given SKELETON_ENV value, with paths resolved against root.  Load never fails:
// unrecognized values select the development profile.
func Load(env, root string) *Config {
	profile := Select(env)
	cfg := &Config{
		Profile: profile,
		Root:    root,
		Entry:   DefaultEntry(),
		Resolve: Resolve{
			Root:               filepath.Join(root, `src`),
			ModulesDirectories: []string{`node_modules`},
		},
		Module:  DefaultModule(),
		PostCSS: []Processor{Autoprefixer{Browsers: []string{`last 2 versions`}}, CSSNano{Safe: true}},
	}

	switch profile {
	case Production:
		cfg.Devtool = SourceMap
		cfg.Debug = false
		cfg.Output = Output{
			Path:              filepath.Join(root, `dist`),
			Filename:          `[name].[chunkhash].bundle.js`,
			SourceMapFilename: `[name].[chunkhash].bundle.map`,
			ChunkFilename:     `[id].[chunkhash].chunk.js`,
		}
	case Testing:
		cfg.Devtool = InlineSourceMap
		cfg.Debug = false
		cfg.Output = Output{}
	default:
		cfg.Devtool = CheapModuleSourceMap
		cfg.Debug = true
		cfg.Output = Output{
			Path:              filepath.Join(root, `dist`),
			Filename:          `[name].bundle.js`,
			SourceMapFilename: `[name].map`,
			ChunkFilename:     `[id].chunk.js`,
		}
	}

	cfg.Plugins = append(basePlugins(), AdditionalPlugins(profile)...)
	return cfg
}

// A Config is a complete build configuration.
type Config struct {
	Profile Profile `json:"profile"`
	Root    string  `json:"root"`
	Entry   Entry   `json:"entry"`
	Resolve Resolve `json:"resolve"`
	Debug   bool    `json:"debug"`
	Devtool Devtool `json:"devtool"`
	Output  Output  `json:"output"`
	Module  Module  `json:"module"`

	// Plugins are applied in order.  The base plugins come first, followed by the profile's additional plugins.
	Plugins Plugins `json:"plugins"`

	// PostCSS processors run by the postcss loader, in order.
	PostCSS []Processor `json:"postcss"`
}

// Find returns the first plugin of type T in the configuration.
func Find[T Plugin](cfg *Config) (T, bool) {
	for _, plugin := range cfg.Plugins {
		if it, ok := plugin.(T); ok {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// Entry is the ordered entry map, from bundle name to source path.
type Entry []EntryPoint

// An EntryPoint names a bundle and the source file it starts from.
type EntryPoint struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// DefaultEntry returns the entry map shared by every profile.
func DefaultEntry() Entry {
	return Entry{
		{`polyfills`, `./src/js/polyfills.js`},
		{`vendor`, `./src/js/vendor.js`},
		{`main`, `./src/js/main.js`},
	}
}

// Names returns the bundle names in order.
func (e Entry) Names() []string {
	names := make([]string, len(e))
	for i, it := range e {
		names[i] = it.Name
	}
	return names
}

// Lookup returns the source path for the named bundle.
func (e Entry) Lookup(name string) (string, bool) {
	for _, it := range e {
		if it.Name == name {
			return it.Path, true
		}
	}
	return ``, false
}

// Resolve controls how bare module specifiers are found.
type Resolve struct {
	Root               string   `json:"root"`
	ModulesDirectories []string `json:"modulesDirectories"`
}

// ModulePaths returns the absolute directories searched for bare module specifiers: the resolve root, then each
// modules directory under the project root.
func (cfg *Config) ModulePaths() ([]string, error) {
	root, err := filepath.Abs(cfg.Resolve.Root)
	if err != nil {
		return nil, err
	}
	paths := []string{root}
	for _, dir := range cfg.Resolve.ModulesDirectories {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(cfg.Root, dir)
		}
		dir, err = filepath.Abs(dir)
		if err != nil {
			return nil, err
		}
		paths = append(paths, dir)
	}
	return paths, nil
}

// A Devtool selects the source map strategy.
type Devtool string

const (
	SourceMap            Devtool = `source-map`
	InlineSourceMap      Devtool = `inline-source-map`
	CheapModuleSourceMap Devtool = `cheap-module-source-map`
)

// Output describes where bundles are written and how they are named.  The zero Output writes nothing.
type Output struct {
	Path              string `json:"path,omitempty"`
	Filename          string `json:"filename,omitempty"`
	SourceMapFilename string `json:"sourceMapFilename,omitempty"`
	ChunkFilename     string `json:"chunkFilename,omitempty"`
}

// Empty is true if the output configures no artifacts.
func (o Output) Empty() bool { return o == Output{} }

// Module holds the loader rules.
type Module struct {
	PreLoaders []Rule `json:"preLoaders"`
	Loaders    []Rule `json:"loaders"`
}

// A Rule applies its loaders to every file whose path matches Test and does not match Exclude.  Loaders run right to
// left, so the last loader sees the source first.
type Rule struct {
	Test    *regexp.Regexp `json:"test"`
	Loaders []string       `json:"loaders"`
	Exclude *regexp.Regexp `json:"exclude,omitempty"`
}

// Match reports whether the rule applies to path.
func (r Rule) Match(path string) bool {
	path = filepath.ToSlash(path)
	if !r.Test.MatchString(path) {
		return false
	}
	return r.Exclude == nil || !r.Exclude.MatchString(path)
}

var (
	jsFiles     = regexp.MustCompile(`\.js$`)
	styleFiles  = regexp.MustCompile(`\.(scss|sass)$`)
	nodeModules = regexp.MustCompile(`node_modules`)
)

// DefaultModule returns the loader rules shared by every profile.
func DefaultModule() Module {
	return Module{
		PreLoaders: []Rule{
			{Test: jsFiles, Loaders: []string{`source-map`}, Exclude: nodeModules},
			{Test: styleFiles, Loaders: []string{`stylelint`}},
			{Test: jsFiles, Loaders: []string{`eslint`}, Exclude: nodeModules},
		},
		Loaders: []Rule{
			{Test: jsFiles, Loaders: []string{`babel?presets[]=es2015`}, Exclude: nodeModules},
			{Test: styleFiles, Loaders: []string{`css`, `postcss`, `sass`, `stylelint`}},
		},
	}
}
