// Package sass compiles Sass with the Dart Sass embedded protocol.  The Dart Sass executable is started the first
// time a file is compiled, so builds without stylesheets never need it.
package sass

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/bep/godartsass/v2"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// New returns a compiler with the given options.
func New(options ...Option) *Compiler {
	c := &Compiler{binary: `sass`, log: zlog.Logger}
	for _, option := range options {
		option(c)
	}
	return c
}

// An Option configures a Compiler.
type Option func(*Compiler)

// Binary sets the Dart Sass executable, which defaults to "sass" on the PATH.
func Binary(path string) Option {
	return func(c *Compiler) { c.binary = path }
}

// IncludePaths adds directories searched by @use and @import.
func IncludePaths(dirs ...string) Option {
	return func(c *Compiler) { c.includePaths = append(c.includePaths, dirs...) }
}

// Logger sets where Sass warnings and debug messages are logged.
func Logger(log zerolog.Logger) Option {
	return func(c *Compiler) { c.log = log }
}

// A Compiler compiles Sass sources using a shared Dart Sass process.
type Compiler struct {
	binary       string
	includePaths []string
	log          zerolog.Logger

	mu         sync.Mutex
	transpiler *godartsass.Transpiler
	startErr   error
}

// CompileSass compiles source, read from path, to CSS.  Imports are resolved against the directory of path, then
// includePaths, then the directories given to IncludePaths.
func (c *Compiler) CompileSass(path, source string, indented bool, includePaths ...string) (string, error) {
	t, err := c.start()
	if err != nil {
		return ``, err
	}
	syntax := godartsass.SourceSyntaxSCSS
	if indented {
		syntax = godartsass.SourceSyntaxSASS
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return ``, err
	}
	ret, err := t.Execute(godartsass.Args{
		Source:       source,
		URL:          `file://` + filepath.ToSlash(abs),
		SourceSyntax: syntax,
		OutputStyle:  godartsass.OutputStyleExpanded,
		IncludePaths: c.searchPath(abs, includePaths),
	})
	if err != nil {
		return ``, fmt.Errorf(`%v: %w`, path, err)
	}
	return ret.CSS, nil
}

func (c *Compiler) searchPath(abs string, includePaths []string) []string {
	dirs := make([]string, 0, 1+len(includePaths)+len(c.includePaths))
	dirs = append(dirs, filepath.Dir(abs))
	dirs = append(dirs, includePaths...)
	return append(dirs, c.includePaths...)
}

func (c *Compiler) start() (*godartsass.Transpiler, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transpiler != nil || c.startErr != nil {
		return c.transpiler, c.startErr
	}
	c.transpiler, c.startErr = godartsass.Start(godartsass.Options{
		DartSassEmbeddedFilename: c.binary,
		LogEventHandler:          c.logEvent,
	})
	if c.startErr != nil {
		c.startErr = fmt.Errorf(`starting %v: %w`, c.binary, c.startErr)
	}
	return c.transpiler, c.startErr
}

func (c *Compiler) logEvent(evt godartsass.LogEvent) {
	switch evt.Type {
	case godartsass.LogEventTypeDebug:
		c.log.Debug().Msg(evt.Message)
	default:
		c.log.Warn().Msg(evt.Message)
	}
}

// Close stops the Dart Sass process, if one was started.
func (c *Compiler) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transpiler == nil {
		return nil
	}
	err := c.transpiler.Close()
	c.transpiler = nil
	return err
}
