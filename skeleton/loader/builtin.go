package loader

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	esbuild "github.com/evanw/esbuild/pkg/api"
	"github.com/swdunlop/skeleton-go/skeleton"
)

// A SassCompiler compiles Sass sources to CSS.  Indented is true for the .sass syntax.  Imports are searched for in
// the directory of path, then in includePaths.
type SassCompiler interface {
	CompileSass(path, source string, indented bool, includePaths ...string) (string, error)
}

// Builtin returns a registry with the loaders named by skeleton.DefaultModule.  The sass loader fails if sass is nil;
// it resolves imports against the configuration's module paths, like bare specifiers in scripts.
func Builtin(cfg *skeleton.Config, sass SassCompiler) (Registry, error) {
	engines, err := EnginesFor(cfg.PostCSS)
	if err != nil {
		return nil, err
	}
	includePaths, err := cfg.ModulePaths()
	if err != nil {
		return nil, err
	}
	var minify, minifySyntax bool
	for _, it := range cfg.PostCSS {
		if nano, ok := it.(skeleton.CSSNano); ok {
			minify = true
			minifySyntax = !nano.Safe
		}
	}
	return Registry{
		`source-map`: SourceMap,
		`eslint`:     ESLint,
		`stylelint`:  StyleLint,
		`babel`:      Babel,
		`css`:        CSS,
		`sass`: func(src *Source, _ url.Values) error {
			if sass == nil {
				return errors.New(`no sass compiler configured`)
			}
			css, err := sass.CompileSass(src.Path, src.Contents, filepath.Ext(src.Path) == `.sass`, includePaths...)
			if err != nil {
				return err
			}
			src.Contents = css
			src.Loader = esbuild.LoaderCSS
			return nil
		},
		`postcss`: func(src *Source, _ url.Values) error {
			ret := esbuild.Transform(src.Contents, esbuild.TransformOptions{
				Loader:           esbuild.LoaderCSS,
				Sourcefile:       src.Path,
				Engines:          engines,
				MinifyWhitespace: minify,
				MinifySyntax:     minifySyntax,
				LogLevel:         esbuild.LogLevelSilent,
			})
			return src.absorb(ret)
		},
	}, nil
}

// absorb takes the code and warnings from a transform, or returns its errors.
func (src *Source) absorb(ret esbuild.TransformResult) error {
	src.Warnings = append(src.Warnings, ret.Warnings...)
	if len(ret.Errors) > 0 {
		return messageError(ret.Errors)
	}
	src.Contents = string(ret.Code)
	return nil
}

func messageError(msgs []esbuild.Message) error {
	errs := make([]error, len(msgs))
	for i, msg := range msgs {
		if msg.Location != nil {
			errs[i] = fmt.Errorf(`%v:%v:%v: %v`, msg.Location.File, msg.Location.Line, msg.Location.Column, msg.Text)
		} else {
			errs[i] = errors.New(msg.Text)
		}
	}
	return errors.Join(errs...)
}

var sourceMappingURL = regexp.MustCompile(`(?m)^[ \t]*//[#@][ \t]*sourceMappingURL=([^\s'"]+)[ \t]*$`)

// SourceMap inlines a source map referenced by a sourceMappingURL comment so that esbuild can chain it into the
// bundle's own map.  Data URLs and remote URLs are left alone; a missing map file is a warning.
func SourceMap(src *Source, _ url.Values) error {
	m := sourceMappingURL.FindStringSubmatchIndex(src.Contents)
	if m == nil {
		return nil
	}
	ref := src.Contents[m[2]:m[3]]
	if strings.HasPrefix(ref, `data:`) || strings.Contains(ref, `://`) {
		return nil
	}
	mapPath := filepath.Join(filepath.Dir(src.Path), filepath.FromSlash(ref))
	data, err := os.ReadFile(mapPath)
	if err != nil {
		src.Warn(lineOf(src.Contents, m[0]), `cannot read source map %q: %v`, ref, err)
		return nil
	}
	inline := `data:application/json;base64,` + base64.StdEncoding.EncodeToString(data)
	src.Contents = src.Contents[:m[2]] + inline + src.Contents[m[3]:]
	return nil
}

// ESLint parses the source, failing on syntax errors and forwarding esbuild's warnings.  The source is not changed.
func ESLint(src *Source, _ url.Values) error {
	ret := esbuild.Transform(src.Contents, esbuild.TransformOptions{
		Loader:     esbuild.LoaderJS,
		Sourcefile: src.Path,
		LogLevel:   esbuild.LogLevelSilent,
	})
	src.Warnings = append(src.Warnings, ret.Warnings...)
	if len(ret.Errors) > 0 {
		return messageError(ret.Errors)
	}
	for i, line := range strings.Split(src.Contents, "\n") {
		if debuggerStatement.MatchString(line) {
			src.Warn(i+1, `unexpected 'debugger' statement`)
		}
	}
	return nil
}

var debuggerStatement = regexp.MustCompile(`^\s*debugger\s*;?\s*$`)

var (
	emptyBlock = regexp.MustCompile(`\{\s*\}`)
	important  = regexp.MustCompile(`!\s*important`)
)

// StyleLint warns about empty blocks and !important in Sass sources.  The source is not changed.
func StyleLint(src *Source, _ url.Values) error {
	for _, loc := range emptyBlock.FindAllStringIndex(src.Contents, -1) {
		src.Warn(lineOf(src.Contents, loc[0]), `unexpected empty block`)
	}
	for _, loc := range important.FindAllStringIndex(src.Contents, -1) {
		src.Warn(lineOf(src.Contents, loc[0]), `unexpected !important`)
	}
	return nil
}

// Babel compiles the source for the presets in the query.  Only es2015 is supported, which esbuild handles by
// targeting ES2015.  The result carries an inline source map back to the original.
func Babel(src *Source, query url.Values) error {
	target := esbuild.ESNext
	for _, preset := range query[`presets[]`] {
		switch preset {
		case `es2015`:
			target = esbuild.ES2015
		default:
			return fmt.Errorf(`unsupported preset %q`, preset)
		}
	}
	ret := esbuild.Transform(src.Contents, esbuild.TransformOptions{
		Loader:     esbuild.LoaderJS,
		Target:     target,
		Sourcefile: src.Path,
		Sourcemap:  esbuild.SourceMapInline,
		LogLevel:   esbuild.LogLevelSilent,
	})
	err := src.absorb(ret)
	if err == nil {
		src.Loader = esbuild.LoaderJS
	}
	return err
}

// CSS marks the source as a stylesheet for esbuild, which resolves its @import and url() references.
func CSS(src *Source, _ url.Values) error {
	src.Loader = esbuild.LoaderCSS
	return nil
}

func lineOf(s string, offset int) int {
	return strings.Count(s[:offset], "\n") + 1
}
