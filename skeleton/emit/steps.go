package emit

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/google/renameio/v2"
	"github.com/swdunlop/skeleton-go/skeleton"
)

// renameStep gives source maps and extracted stylesheets their configured names and fixes the sourceMappingURL
// comments that point at them.
type renameStep struct{ cfg *skeleton.Config }

func (*renameStep) Name() string       { return `rename` }
func (*renameStep) Provides() []string { return []string{`names`} }

func (s *renameStep) Emit(m *Manifest) error {
	bundle := skeleton.Template(s.cfg.Output.Filename)
	sourceMap := skeleton.Template(s.cfg.Output.SourceMapFilename)
	extract, extracting := skeleton.Find[skeleton.ExtractText](s.cfg)

	for _, name := range s.cfg.Entry.Names() {
		assets, ok := m.Entries[name]
		if !ok {
			continue
		}
		vars, ok := bundle.Match(path.Base(assets.Script))
		if !ok {
			vars = map[string]string{}
		}
		vars[`name`] = name

		if sourceMap != `` {
			err := m.rename(assets.Script+`.map`, sibling(assets.Script, sourceMap.Expand(vars)))
			if err != nil {
				return err
			}
			m.relink(assets.Script, assets.Script+`.map`, sibling(assets.Script, sourceMap.Expand(vars)))
		}
		if extracting && assets.Stylesheet != `` {
			css := sibling(assets.Stylesheet, skeleton.Template(extract.Filename).Expand(vars))
			err := m.rename(assets.Stylesheet, css)
			if err != nil {
				return err
			}
			if m.File(assets.Stylesheet+`.map`) != nil {
				err = m.rename(assets.Stylesheet+`.map`, css+`.map`)
				if err != nil {
					return err
				}
				m.relink(css, assets.Stylesheet+`.map`, css+`.map`)
			}
			assets.Stylesheet = css
		}
	}
	return s.renameChunkMaps(m, sourceMap)
}

// renameChunkMaps names the maps of split chunks with the source map template.  Chunks have no name, so [name] is
// their id.
func (s *renameStep) renameChunkMaps(m *Manifest, sourceMap skeleton.Template) error {
	if sourceMap == `` || s.cfg.Output.ChunkFilename == `` {
		return nil
	}
	chunk := skeleton.Template(s.cfg.Output.ChunkFilename)
	entries := make(map[string]bool, len(m.Entries))
	for _, assets := range m.Entries {
		entries[assets.Script] = true
	}
	var chunks []string
	for _, file := range m.Files {
		if path.Ext(file.Path) == `.js` && !entries[file.Path] {
			chunks = append(chunks, file.Path)
		}
	}
	for _, script := range chunks {
		vars, ok := chunk.Match(path.Base(script))
		if !ok {
			continue
		}
		if vars[`name`] == `` {
			vars[`name`] = vars[`id`]
		}
		to := sibling(script, sourceMap.Expand(vars))
		err := m.rename(script+`.map`, to)
		if err != nil {
			return err
		}
		m.relink(script, script+`.map`, to)
	}
	return nil
}

// sibling returns name in the same directory as p.
func sibling(p, name string) string {
	dir := path.Dir(p)
	if dir == `.` {
		return name
	}
	return dir + `/` + name
}

// rename moves a manifest file.  A missing source is not an error, since maps may be inline.
func (m *Manifest) rename(from, to string) error {
	if from == to {
		return nil
	}
	file := m.File(from)
	if file == nil {
		return nil
	}
	if m.File(to) != nil {
		return fmt.Errorf(`cannot rename %v to %v, which already exists`, from, to)
	}
	file.Path = to
	return nil
}

// relink rewrites the sourceMappingURL in the file at owner from the old map name to the new one.
func (m *Manifest) relink(owner, from, to string) {
	file := m.File(owner)
	if file == nil {
		return
	}
	old := []byte(`sourceMappingURL=` + path.Base(from))
	file.Contents = bytes.Replace(file.Contents, old, []byte(`sourceMappingURL=`+path.Base(to)), 1)
}

// hashStep computes the compilation hash from the content of every output.
type hashStep struct{ md5 bool }

func (*hashStep) Name() string        { return `hash` }
func (*hashStep) Provides() []string  { return []string{`hash`} }
func (*hashStep) DependsOn() []string { return []string{`names`} }

func (s *hashStep) Emit(m *Manifest) error {
	files := append([]*File(nil), m.Files...)
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	if s.md5 {
		h := md5.New()
		for _, file := range files {
			h.Write([]byte(file.Path))
			h.Write(file.Contents)
		}
		m.Hash = hex.EncodeToString(h.Sum(nil))
		return nil
	}
	h := xxhash.New()
	for _, file := range files {
		_, _ = h.WriteString(file.Path)
		_, _ = h.Write(file.Contents)
	}
	m.Hash = strconv.FormatUint(h.Sum64(), 16)
	return nil
}

// writeStep writes the bundles, chunks and maps.
type writeStep struct{}

func (*writeStep) Name() string        { return `write` }
func (*writeStep) Provides() []string  { return []string{`write`} }
func (*writeStep) DependsOn() []string { return []string{`names`, `hash`} }

func (*writeStep) Emit(m *Manifest) error {
	for _, file := range m.Files {
		err := m.write(file)
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *Manifest) write(file *File) error {
	target := m.Abs(file.Path)
	err := os.MkdirAll(filepath.Dir(target), 0o755)
	if err != nil {
		return err
	}
	err = renameio.WriteFile(target, file.Contents, 0o644)
	if err != nil {
		return err
	}
	file.Written = true
	return nil
}

// copyStep copies static assets from the project into the output.
type copyStep struct{ plugin skeleton.Copy }

func (*copyStep) Name() string        { return `copy` }
func (*copyStep) Provides() []string  { return []string{`copy`} }
func (*copyStep) DependsOn() []string { return []string{`write`} }

func (s *copyStep) Emit(m *Manifest) error {
	for _, pattern := range s.plugin.Patterns {
		data, err := os.ReadFile(filepath.Join(m.Root, filepath.FromSlash(pattern.From)))
		if err != nil {
			return err
		}
		err = m.write(m.Put(path.Clean(pattern.To), data))
		if err != nil {
			return err
		}
	}
	return nil
}
