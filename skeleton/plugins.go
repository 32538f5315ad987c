package skeleton

import (
	"encoding/json"
	"math"
	"regexp"
)

// A Plugin is an opaque build extension.  The esbuild and emit packages recognize the plugin types in this file and
// ignore any others.
type Plugin interface {
	PluginName() string
}

// Plugins is an ordered plugin list.  It marshals as a list of {"name": ..., "options": ...} objects.
type Plugins []Plugin

func (seq Plugins) MarshalJSON() ([]byte, error) {
	type named struct {
		Name    string `json:"name"`
		Options Plugin `json:"options"`
	}
	items := make([]named, len(seq))
	for i, it := range seq {
		items[i] = named{it.PluginName(), it}
	}
	return json.Marshal(items)
}

// Infinity is used for CommonsChunk.MinChunks to keep every module out of the commons chunk except the named ones.
const Infinity = math.MaxInt

var compressible = regexp.MustCompile(`\.css$|\.html$|\.js$|\.map$`)

// HTML generates an HTML file from Template with script and stylesheet tags for Chunks injected in order.
type HTML struct {
	Template string   `json:"template"`
	Hash     bool     `json:"hash"`   // append ?<compilation hash> to injected URLs
	Inject   bool     `json:"inject"` // inject tags into the template
	Chunks   []string `json:"chunks"`
}

func (HTML) PluginName() string { return `html` }

// ExtractText writes the stylesheets imported by each entry to a separate file.
type ExtractText struct {
	Filename string `json:"filename"`
}

func (ExtractText) PluginName() string { return `extract-text` }

// Copy copies static assets into the output directory.
type Copy struct {
	Patterns []CopyPattern `json:"patterns"`
}

func (Copy) PluginName() string { return `copy` }

// A CopyPattern copies From, relative to the project root, to To, relative to the output path.
type CopyPattern struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// MD5Hash makes the compilation hash an md5 digest of the emitted content.
type MD5Hash struct{}

func (MD5Hash) PluginName() string { return `md5-hash` }

// Dedupe removes duplicate modules from the output.
type Dedupe struct{}

func (Dedupe) PluginName() string { return `dedupe` }

// Uglify minifies the output.
type Uglify struct {
	Beautify bool     `json:"beautify"`
	Mangle   Mangle   `json:"mangle"`
	Compress Compress `json:"compress"`
	Comments bool     `json:"comments"`
}

type Mangle struct {
	ScrewIE8   bool `json:"screw_ie8"`
	KeepFnames bool `json:"keep_fnames"`
}

type Compress struct {
	ScrewIE8 bool `json:"screw_ie8"`
}

func (Uglify) PluginName() string { return `uglify` }

// Compression writes a gzip copy of every emitted file that matches RegExp and is at least Threshold bytes.
type Compression struct {
	RegExp    *regexp.Regexp `json:"regExp"`
	Threshold int            `json:"threshold"`
}

func (Compression) PluginName() string { return `compression` }

// OccurrenceOrder orders modules and chunks by how often they are used.
type OccurrenceOrder struct {
	PreferEntry bool `json:"preferEntry"`
}

func (OccurrenceOrder) PluginName() string { return `occurrence-order` }

// CommonsChunk moves modules shared between entries into the named chunks.
type CommonsChunk struct {
	Names     []string `json:"name"`
	MinChunks int      `json:"minChunks"`
}

func (CommonsChunk) PluginName() string { return `commons-chunk` }

// A Processor is a PostCSS processor run by the postcss loader.
type Processor interface {
	ProcessorName() string
}

// Autoprefixer adds vendor prefixes required by Browsers.
type Autoprefixer struct {
	Browsers []string `json:"browsers"`
}

func (Autoprefixer) ProcessorName() string { return `autoprefixer` }

// CSSNano minifies stylesheets.  Safe restricts it to transformations that cannot change behavior.
type CSSNano struct {
	Safe bool `json:"safe"`
}

func (CSSNano) ProcessorName() string { return `cssnano` }
