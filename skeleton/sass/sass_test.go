package sass_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdunlop/skeleton-go/skeleton/sass"
)

func TestMissingBinary(t *testing.T) {
	c := sass.New(sass.Binary(filepath.Join(t.TempDir(), `no-such-sass`)))
	_, err := c.CompileSass(`app.scss`, `.a { color: red; }`, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `starting`)

	// the start failure is remembered rather than retried
	_, again := c.CompileSass(`app.scss`, `.a { color: red; }`, false)
	assert.Equal(t, err, again)
	assert.NoError(t, c.Close())
}
