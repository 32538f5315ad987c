package skeleton

import (
	"path"
	"regexp"
	"strings"
)

// A Template is an output path template such as "[name].[chunkhash].bundle.js".  The placeholders are [name], [id],
// [hash] and [chunkhash].
type Template string

var placeholders = regexp.MustCompile(`\[(name|id|hash|chunkhash)\]`)

// Expand replaces each placeholder with its value in vars.  Placeholders missing from vars are left alone.
func (t Template) Expand(vars map[string]string) string {
	return placeholders.ReplaceAllStringFunc(string(t), func(m string) string {
		if v, ok := vars[m[1:len(m)-1]]; ok {
			return v
		}
		return m
	})
}

// Hashed reports whether the template includes a content hash.
func (t Template) Hashed() bool {
	return strings.Contains(string(t), `[chunkhash]`) || strings.Contains(string(t), `[hash]`)
}

// ESBuild converts the template into an esbuild EntryNames or ChunkNames pattern.  esbuild appends the extension
// itself and has no numeric chunk ids, so the extension is dropped and [id] becomes [name].
func (t Template) ESBuild() string {
	s := strings.TrimSuffix(string(t), path.Ext(string(t)))
	s = strings.ReplaceAll(s, `[chunkhash]`, `[hash]`)
	return strings.ReplaceAll(s, `[id]`, `[name]`)
}

// Match matches a base filename against the template, returning the placeholder values.  [hash] and [chunkhash]
// match the same value.
func (t Template) Match(filename string) (map[string]string, bool) {
	rx := t.regexp()
	m := rx.FindStringSubmatch(filename)
	if m == nil {
		return nil, false
	}
	vars := make(map[string]string, len(m))
	for i, name := range rx.SubexpNames() {
		if name == `` {
			continue
		}
		vars[name] = m[i]
		if name == `chunkhash` {
			vars[`hash`] = m[i]
		}
	}
	return vars, true
}

func (t Template) regexp() *regexp.Regexp {
	var buf strings.Builder
	buf.WriteByte('^')
	seen := map[string]bool{}
	s := string(t)
	for {
		loc := placeholders.FindStringIndex(s)
		if loc == nil {
			buf.WriteString(regexp.QuoteMeta(s))
			break
		}
		buf.WriteString(regexp.QuoteMeta(s[:loc[0]]))
		name := s[loc[0]+1 : loc[1]-1]
		if name == `hash` {
			name = `chunkhash`
		}
		switch {
		case seen[name]:
			buf.WriteString(`.+?`)
		case name == `chunkhash`:
			buf.WriteString(`(?P<chunkhash>[A-Za-z0-9]+)`)
		default:
			buf.WriteString(`(?P<` + name + `>.+?)`)
		}
		seen[name] = true
		s = s[loc[1]:]
	}
	buf.WriteByte('$')
	return regexp.MustCompile(buf.String())
}
