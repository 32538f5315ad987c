package skeleton_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdunlop/skeleton-go/skeleton"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		env  string
		want skeleton.Profile
	}{
		{``, skeleton.Development},
		{`dev`, skeleton.Development},
		{`development`, skeleton.Development},
		{`prod`, skeleton.Production},
		{`production`, skeleton.Production},
		{`test`, skeleton.Testing},
		{`testing`, skeleton.Testing},
		{`staging`, skeleton.Development},
		{`PRODUCTION`, skeleton.Development},
		{` prod`, skeleton.Development},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			assert.Equal(t, tt.want, skeleton.Select(tt.env))
		})
	}
}

func TestLoadDevelopment(t *testing.T) {
	for _, env := range []string{``, `dev`, `development`} {
		cfg := skeleton.Load(env, `/project`)
		assert.Equal(t, skeleton.CheapModuleSourceMap, cfg.Devtool, env)
		assert.True(t, cfg.Debug, env)
		assert.Equal(t, skeleton.Output{
			Path:              filepath.Join(`/project`, `dist`),
			Filename:          `[name].bundle.js`,
			SourceMapFilename: `[name].map`,
			ChunkFilename:     `[id].chunk.js`,
		}, cfg.Output, env)
		assert.False(t, skeleton.Template(cfg.Output.Filename).Hashed(), env)
		assert.Empty(t, skeleton.AdditionalPlugins(cfg.Profile), env)
		assert.Len(t, cfg.Plugins, 3, env)
	}
}

func TestLoadProduction(t *testing.T) {
	for _, env := range []string{`prod`, `production`} {
		cfg := skeleton.Load(env, `/project`)
		assert.Equal(t, skeleton.SourceMap, cfg.Devtool, env)
		assert.False(t, cfg.Debug, env)
		assert.True(t, skeleton.Template(cfg.Output.Filename).Hashed(), env)
		assert.True(t, skeleton.Template(cfg.Output.SourceMapFilename).Hashed(), env)
		assert.True(t, skeleton.Template(cfg.Output.ChunkFilename).Hashed(), env)

		extra := skeleton.AdditionalPlugins(cfg.Profile)
		require.NotEmpty(t, extra, env)
		_, ok := skeleton.Find[skeleton.Uglify](cfg)
		assert.True(t, ok, `production should minify`)
		compression, ok := skeleton.Find[skeleton.Compression](cfg)
		require.True(t, ok, `production should compress`)
		assert.Equal(t, 2048, compression.Threshold)
		assert.True(t, compression.RegExp.MatchString(`main.abc.bundle.js`))
		assert.True(t, compression.RegExp.MatchString(`index.html`))
		assert.False(t, compression.RegExp.MatchString(`logo.png`))
		assert.Equal(t, extra, []skeleton.Plugin(cfg.Plugins[len(cfg.Plugins)-len(extra):]))
	}
}

func TestLoadTesting(t *testing.T) {
	for _, env := range []string{`test`, `testing`} {
		cfg := skeleton.Load(env, `/project`)
		assert.Equal(t, skeleton.InlineSourceMap, cfg.Devtool, env)
		assert.False(t, cfg.Debug, env)
		assert.True(t, cfg.Output.Empty(), env)
		assert.Empty(t, skeleton.AdditionalPlugins(cfg.Profile), env)
		_, ok := skeleton.Find[skeleton.Compression](cfg)
		assert.False(t, ok, env)
	}
}

func TestLoadUnknownMatchesUnset(t *testing.T) {
	unset := skeleton.Load(``, `/project`)
	for _, env := range []string{`staging`, `qa`, `Production`, `devel`} {
		assert.Equal(t, unset, skeleton.Load(env, `/project`), env)
	}
}

func TestEntryIsFixed(t *testing.T) {
	for _, env := range []string{``, `prod`, `test`, `other`} {
		cfg := skeleton.Load(env, `.`)
		require.Len(t, cfg.Entry, 3)
		assert.Equal(t, []string{`polyfills`, `vendor`, `main`}, cfg.Entry.Names())
		for name, want := range map[string]string{
			`polyfills`: `./src/js/polyfills.js`,
			`vendor`:    `./src/js/vendor.js`,
			`main`:      `./src/js/main.js`,
		} {
			got, ok := cfg.Entry.Lookup(name)
			assert.True(t, ok)
			assert.Equal(t, want, got)
		}
	}
}

func TestModulePaths(t *testing.T) {
	root := t.TempDir()
	cfg := skeleton.Load(`dev`, root)
	paths, err := cfg.ModulePaths()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, `src`), filepath.Join(root, `node_modules`)}, paths)

	cfg.Resolve.ModulesDirectories = []string{`web_modules`, `/opt/shared`}
	paths, err = cfg.ModulePaths()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, `src`), filepath.Join(root, `web_modules`), `/opt/shared`}, paths)

	wd, err := os.Getwd()
	require.NoError(t, err)
	paths, err = skeleton.Load(`dev`, `.`).ModulePaths()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(wd, `src`), filepath.Join(wd, `node_modules`)}, paths)
}

func TestHTMLChunkOrder(t *testing.T) {
	html, ok := skeleton.Find[skeleton.HTML](skeleton.Load(`prod`, `.`))
	require.True(t, ok)
	assert.Equal(t, `src/index.html`, html.Template)
	assert.Equal(t, []string{`polyfills`, `vendor`, `main`}, html.Chunks)
	assert.True(t, html.Hash)
	assert.True(t, html.Inject)
}

func TestRuleMatch(t *testing.T) {
	mod := skeleton.DefaultModule()
	require.Len(t, mod.PreLoaders, 3)
	require.Len(t, mod.Loaders, 2)

	babel := mod.Loaders[0]
	assert.True(t, babel.Match(`src/js/main.js`))
	assert.False(t, babel.Match(`node_modules/lodash/index.js`))
	assert.False(t, babel.Match(`src/js/main.jsx`))

	sass := mod.Loaders[1]
	assert.True(t, sass.Match(`src/scss/app.scss`))
	assert.True(t, sass.Match(`src/sass/app.sass`))
	assert.True(t, sass.Match(`node_modules/bootstrap/scss/bootstrap.scss`))
	assert.Equal(t, []string{`css`, `postcss`, `sass`, `stylelint`}, sass.Loaders)
}

func TestConfigJSON(t *testing.T) {
	js, err := json.Marshal(skeleton.Load(`prod`, `.`))
	require.NoError(t, err)

	var doc struct {
		Devtool string `json:"devtool"`
		Plugins []struct {
			Name string `json:"name"`
		} `json:"plugins"`
		Module struct {
			PreLoaders []struct {
				Test string `json:"test"`
			} `json:"preLoaders"`
		} `json:"module"`
	}
	require.NoError(t, json.Unmarshal(js, &doc))
	assert.Equal(t, `source-map`, doc.Devtool)
	require.NotEmpty(t, doc.Plugins)
	assert.Equal(t, `html`, doc.Plugins[0].Name)
	assert.Equal(t, `commons-chunk`, doc.Plugins[len(doc.Plugins)-1].Name)
	assert.Equal(t, `\.js$`, doc.Module.PreLoaders[0].Test)
}
