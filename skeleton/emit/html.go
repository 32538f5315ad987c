package emit

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/swdunlop/skeleton-go/skeleton"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// htmlStep renders the HTML template with a stylesheet link and script tag for each chunk, in chunk order.
type htmlStep struct{ plugin skeleton.HTML }

func (*htmlStep) Name() string        { return `html` }
func (*htmlStep) Provides() []string  { return []string{`html`} }
func (*htmlStep) DependsOn() []string { return []string{`copy`, `hash`, `write`} }

func (s *htmlStep) Emit(m *Manifest) error {
	tpl, err := os.ReadFile(filepath.Join(m.Root, filepath.FromSlash(s.plugin.Template)))
	if err != nil {
		return err
	}
	page := tpl
	if s.plugin.Inject {
		page, err = Inject(tpl, m, s.plugin)
		if err != nil {
			return fmt.Errorf(`%v: %w`, s.plugin.Template, err)
		}
	}
	return m.write(m.Put(`index.html`, page))
}

// Inject adds the assets of each chunk in plugin.Chunks to an HTML document: stylesheets at the end of <head> and
// scripts at the end of <body>.  Chunks without assets in the manifest are skipped.
func Inject(doc []byte, m *Manifest, plugin skeleton.HTML) ([]byte, error) {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return nil, err
	}
	head, body := find(root, atom.Head), find(root, atom.Body)
	if head == nil || body == nil {
		return nil, fmt.Errorf(`document has no head or body`)
	}

	url := func(p string) string {
		if plugin.Hash && m.Hash != `` {
			return p + `?` + m.Hash
		}
		return p
	}
	for _, chunk := range plugin.Chunks {
		assets, ok := m.Entries[chunk]
		if !ok {
			continue
		}
		if assets.Stylesheet != `` {
			head.AppendChild(element(atom.Link,
				html.Attribute{Key: `href`, Val: url(assets.Stylesheet)},
				html.Attribute{Key: `rel`, Val: `stylesheet`},
			))
		}
		if assets.Script != `` {
			kind := `text/javascript`
			if m.Module {
				kind = `module`
			}
			body.AppendChild(element(atom.Script,
				html.Attribute{Key: `type`, Val: kind},
				html.Attribute{Key: `src`, Val: url(assets.Script)},
			))
		}
	}

	var buf bytes.Buffer
	err = html.Render(&buf, root)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func find(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if it := find(c, a); it != nil {
			return it
		}
	}
	return nil
}
