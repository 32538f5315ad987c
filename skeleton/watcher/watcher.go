// Package watcher reports changes to project sources so that a build can be repeated.
package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
)

// Start a watcher with the provided options.
func Start(options ...Option) (*Watcher, error) {
	wr := &Watcher{}
	for _, option := range options {
		err := option(wr)
		if err != nil {
			return nil, err
		}
	}
	err := wr.start()
	if err != nil {
		return nil, err
	}
	return wr, nil
}

// An Option adjusts a watcher during construction.
type Option func(*Watcher) error

// Include adds patterns for the files that should trigger a change.  Patterns are matched against the slash separated
// path relative to the watched directory, so "**.scss" matches stylesheets at any depth.  Without any includes, every
// file is included.
func Include(patterns ...string) Option {
	return func(wr *Watcher) (err error) {
		wr.includes, err = appendPatterns(wr.includes, patterns...)
		return
	}
}

// Exclude adds patterns for files that never trigger a change, even if they are included.  Files and directories
// whose names start with a dot are always excluded.
func Exclude(patterns ...string) Option {
	return func(wr *Watcher) (err error) {
		wr.excludes, err = appendPatterns(wr.excludes, patterns...)
		return
	}
}

func appendPatterns(seq []glob.Glob, patterns ...string) ([]glob.Glob, error) {
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf(`%w in %q`, err, pattern)
		}
		seq = append(seq, g)
	}
	return seq, nil
}

// Directory adds directories to watch recursively.  If none are given, the current directory is watched.
func Directory(paths ...string) Option {
	return func(wr *Watcher) error {
		for _, path := range paths {
			abs, err := filepath.Abs(path)
			if err != nil {
				return err
			}
			wr.directories = append(wr.directories, abs)
		}
		return nil
	}
}

// A Watcher sends the path of changed files on its Changes channel.
type Watcher struct {
	includes    []glob.Glob
	excludes    []glob.Glob
	directories []string

	fsnotify  *fsnotify.Watcher
	changes   chan string
	errors    chan error
	done      chan struct{}
	closeOnce sync.Once
}

func (wr *Watcher) start() (err error) {
	if len(wr.directories) == 0 {
		err = Directory(`.`)(wr)
		if err != nil {
			return err
		}
	}
	wr.fsnotify, err = fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, dir := range wr.directories {
		err = wr.add(dir)
		if err != nil {
			wr.fsnotify.Close()
			return err
		}
	}
	// one pending change is kept while the receiver is busy, further changes coalesce into it
	wr.changes = make(chan string, 1)
	wr.errors = make(chan error, 1)
	wr.done = make(chan struct{})
	go wr.process()
	return nil
}

// add watches dir and every directory below it.
func (wr *Watcher) add(dir string) error {
	return filepath.WalkDir(dir, func(path string, info fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if rel, _ := filepath.Rel(dir, path); hidden(rel) {
			return filepath.SkipDir
		}
		return wr.fsnotify.Add(path)
	})
}

// Changes returns a channel that receives the path of a changed file.  Changes that happen while a previous change
// is still pending are merged into it.
func (wr *Watcher) Changes() <-chan string { return wr.changes }

// Errors returns a channel that receives errors reported by the operating system.
func (wr *Watcher) Errors() <-chan error { return wr.errors }

// Close stops the watcher.
func (wr *Watcher) Close() error {
	var err error
	wr.closeOnce.Do(func() {
		close(wr.done)
		err = wr.fsnotify.Close()
	})
	return err
}

func (wr *Watcher) process() {
	for {
		select {
		case <-wr.done:
			return
		case event, ok := <-wr.fsnotify.Events:
			if !ok {
				return
			}
			wr.processEvent(event)
		case err, ok := <-wr.fsnotify.Errors:
			if !ok {
				return
			}
			select {
			case wr.errors <- err:
			default:
			}
		}
	}
}

func (wr *Watcher) processEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		info, err := os.Stat(event.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			// a new directory is watched but is not itself a change
			if rel, ok := wr.relative(event.Name); ok && !hidden(rel) {
				_ = wr.add(event.Name)
			}
			return
		}
	}
	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write), event.Has(fsnotify.Rename):
		wr.change(event.Name)
	case event.Has(fsnotify.Remove):
		_ = wr.fsnotify.Remove(event.Name)
		wr.change(event.Name)
	}
}

func (wr *Watcher) change(name string) {
	if !wr.Match(name) {
		return
	}
	select {
	case wr.changes <- name:
	default:
	}
}

// Match reports whether a change to the named file would be reported.
func (wr *Watcher) Match(name string) bool {
	rel, ok := wr.relative(name)
	if !ok || hidden(rel) {
		return false
	}
	included := len(wr.includes) == 0
	for _, g := range wr.includes {
		if g.Match(rel) {
			included = true
			break
		}
	}
	if !included {
		return false
	}
	for _, g := range wr.excludes {
		if g.Match(rel) {
			return false
		}
	}
	return true
}

func (wr *Watcher) relative(name string) (string, bool) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return ``, false
	}
	for _, dir := range wr.directories {
		rel, err := filepath.Rel(dir, abs)
		if err != nil || rel == `..` || strings.HasPrefix(rel, `..`+string(filepath.Separator)) {
			continue
		}
		return filepath.ToSlash(rel), true
	}
	return ``, false
}

// hidden reports whether any element of the path starts with a dot.
func hidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), `/`) {
		if len(part) > 1 && part[0] == '.' && part != `..` {
			return true
		}
	}
	return false
}
