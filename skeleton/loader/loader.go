// Package loader runs the loader chains of a skeleton.Module as an esbuild plugin.
//
// For each file esbuild loads, the matching pre-loader rules run first and the matching loader rules second.  Within
// each phase the loader names of all matching rules are concatenated in rule order and applied right to left, so the
// last loader named sees the original source.  Files that match no rule are left to esbuild.
package loader

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	esbuild "github.com/evanw/esbuild/pkg/api"
	"github.com/swdunlop/skeleton-go/skeleton"
)

// A Source is a file as it moves through a loader chain.
type Source struct {
	Path     string
	Contents string

	// Loader is the esbuild loader for Contents once the chain has finished.  Loaders that change the language of the
	// contents, such as sass, must update it.
	Loader esbuild.Loader

	// Warnings collected from the loaders in the chain.
	Warnings []esbuild.Message
}

// Warn adds a warning for the source.
func (src *Source) Warn(line int, format string, args ...any) {
	msg := esbuild.Message{Text: fmt.Sprintf(format, args...)}
	if line > 0 {
		msg.Location = &esbuild.Location{File: src.Path, Line: line}
	}
	src.Warnings = append(src.Warnings, msg)
}

// A Func transforms a source in place.  The query holds the options following "?" in the loader request, such as
// presets[]=es2015 in "babel?presets[]=es2015".
type Func func(src *Source, query url.Values) error

// A Registry maps loader names to their implementation.
type Registry map[string]Func

// A Step is one loader application in a chain.
type Step struct {
	Name  string
	Query url.Values
}

func (s Step) String() string {
	if len(s.Query) == 0 {
		return s.Name
	}
	return s.Name + `?` + s.Query.Encode()
}

// ParseRequest parses a loader request like "babel-loader?presets[]=es2015".  The "-loader" suffix is optional.
func ParseRequest(request string) (Step, error) {
	name, query, _ := strings.Cut(request, `?`)
	values, err := url.ParseQuery(query)
	if err != nil {
		return Step{}, fmt.Errorf(`%w in loader %q`, err, request)
	}
	name = strings.TrimSuffix(name, `-loader`)
	if name == `` {
		return Step{}, fmt.Errorf(`empty loader name in %q`, request)
	}
	return Step{Name: name, Query: values}, nil
}

// Chain returns the steps to apply to path, in the order they run.
func Chain(module skeleton.Module, path string) ([]Step, error) {
	var steps []Step
	for _, phase := range [][]skeleton.Rule{module.PreLoaders, module.Loaders} {
		var requests []string
		for _, rule := range phase {
			if rule.Match(path) {
				requests = append(requests, rule.Loaders...)
			}
		}
		for i := len(requests) - 1; i >= 0; i-- {
			step, err := ParseRequest(requests[i])
			if err != nil {
				return nil, err
			}
			steps = append(steps, step)
		}
	}
	return steps, nil
}

// Run applies steps to src using the loaders in the registry.
func (reg Registry) Run(src *Source, steps []Step) error {
	for _, step := range steps {
		fn, ok := reg[step.Name]
		if !ok {
			return fmt.Errorf(`unknown loader %q for %v`, step.Name, src.Path)
		}
		err := fn(src, step.Query)
		if err != nil {
			return fmt.Errorf(`%v loader: %w`, step.Name, err)
		}
	}
	return nil
}

// Plugin returns an esbuild plugin that applies the loader rules in module to every file in the "file" namespace.
func Plugin(module skeleton.Module, reg Registry) esbuild.Plugin {
	return esbuild.Plugin{
		Name: `skeleton-loader`,
		Setup: func(build esbuild.PluginBuild) {
			build.OnLoad(esbuild.OnLoadOptions{Filter: `.*`, Namespace: `file`},
				func(args esbuild.OnLoadArgs) (esbuild.OnLoadResult, error) {
					return load(module, reg, args.Path)
				})
		},
	}
}

func load(module skeleton.Module, reg Registry, path string) (esbuild.OnLoadResult, error) {
	steps, err := Chain(module, path)
	if err != nil || len(steps) == 0 {
		return esbuild.OnLoadResult{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return esbuild.OnLoadResult{}, err
	}
	src := &Source{Path: path, Contents: string(data), Loader: defaultLoader(path)}
	err = reg.Run(src, steps)
	if err != nil {
		return esbuild.OnLoadResult{Warnings: src.Warnings}, err
	}
	return esbuild.OnLoadResult{
		Contents:   &src.Contents,
		Loader:     src.Loader,
		ResolveDir: filepath.Dir(path),
		Warnings:   src.Warnings,
	}, nil
}

func defaultLoader(path string) esbuild.Loader {
	switch filepath.Ext(path) {
	case `.js`, `.mjs`, `.cjs`:
		return esbuild.LoaderJS
	case `.css`:
		return esbuild.LoaderCSS
	default:
		return esbuild.LoaderDefault
	}
}
