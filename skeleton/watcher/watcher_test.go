package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	dir := t.TempDir()
	wr, err := Start(Directory(dir), Include(`**.js`, `**.scss`), Exclude(`vendor/**`))
	require.NoError(t, err)
	defer wr.Close()

	for name, expect := range map[string]bool{
		`main.js`:           true,
		`js/util.js`:        true,
		`css/site.scss`:     true,
		`index.html`:        false,
		`vendor/jquery.js`:  false,
		`.cache/main.js`:    false,
		`js/.main.js.swp`:   false,
		`../elsewhere/x.js`: false,
	} {
		assert.Equal(t, expect, wr.Match(filepath.Join(dir, filepath.FromSlash(name))), name)
	}
}

func TestMatchWithoutIncludes(t *testing.T) {
	dir := t.TempDir()
	wr, err := Start(Directory(dir))
	require.NoError(t, err)
	defer wr.Close()
	assert.True(t, wr.Match(filepath.Join(dir, `index.html`)))
	assert.False(t, wr.Match(filepath.Join(dir, `.gitignore`)))
}

func TestBadPattern(t *testing.T) {
	_, err := Start(Include(`[`))
	assert.Error(t, err)
}

func TestChanges(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, `js`), 0o755))
	wr, err := Start(Directory(dir), Include(`**.js`))
	require.NoError(t, err)
	defer wr.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, `js`, `skip.txt`), []byte(`x`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, `js`, `main.js`), []byte(`x`), 0o644))

	select {
	case name := <-wr.Changes():
		assert.Equal(t, filepath.Join(dir, `js`, `main.js`), name)
	case <-time.After(5 * time.Second):
		t.Fatal(`no change observed`)
	}
}

func TestClose(t *testing.T) {
	wr, err := Start(Directory(t.TempDir()))
	require.NoError(t, err)
	assert.NoError(t, wr.Close())
	assert.NoError(t, wr.Close())
}
