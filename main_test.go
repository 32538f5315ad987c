package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdunlop/skeleton-go/skeleton"
)

func reset() {
	skeletonEnv, skeletonRoot, sassBinary, sassPath = ``, ``, ``, ``
	listenNetwork, listenAddress = ``, ``
	tailscaleHostname, tailscaleListen, tailscaleDir, noTailscaleTLS = ``, ``, ``, false
	tailscaleFunnel = false
}

func TestSelectedConfig(t *testing.T) {
	defer reset()
	reset()
	cfg := selectedConfig()
	assert.Equal(t, skeleton.Development, cfg.Profile)
	assert.Equal(t, `.`, cfg.Root)

	skeletonEnv, skeletonRoot = `prod`, `/srv/app`
	cfg = selectedConfig()
	assert.Equal(t, skeleton.Production, cfg.Profile)
	assert.Equal(t, `/srv/app`, cfg.Root)
}

func TestOpenProjectLogsSelectedEnv(t *testing.T) {
	defer reset()
	defer func(log zerolog.Logger, level zerolog.Level) {
		zlog.Logger = log
		zerolog.SetGlobalLevel(level)
	}(zlog.Logger, zerolog.GlobalLevel())

	root := t.TempDir()
	for _, name := range []string{`polyfills`, `vendor`, `main`} {
		path := filepath.Join(root, `src`, `js`, name+`.js`)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("console.log('"+name+"');\n"), 0o644))
	}

	for env, want := range map[string]string{
		``:        `SKELETON_ENV=development`,
		`prod`:    `SKELETON_ENV=prod`,
		`staging`: `SKELETON_ENV=staging`,
	} {
		reset()
		skeletonEnv, skeletonRoot = env, root
		var buf bytes.Buffer
		zlog.Logger = zerolog.New(&buf)
		p, err := openProject()
		require.NoError(t, err, env)
		p.Close()
		assert.Contains(t, buf.String(), `"message":"`+want+`"`, env)
	}
}

func TestSassOptions(t *testing.T) {
	defer reset()
	reset()
	assert.Empty(t, sassOptions())

	sassBinary = `/opt/dart-sass/sass`
	sassPath = `/usr/share/sass` + string(filepath.ListSeparator) + string(filepath.ListSeparator) + `/opt/sass`
	assert.Len(t, sassOptions(), 2)
}

func TestListenOptions(t *testing.T) {
	defer reset()
	for _, test := range []struct {
		name  string
		setup func()
		err   string
	}{
		{name: `default`, setup: func() {}},
		{name: `unix`, setup: func() { listenNetwork, listenAddress = `unix`, `/tmp/skeleton.sock` }},
		{name: `unix without address`, setup: func() { listenNetwork = `unix` },
			err: `LISTEN_ADDRESS must be specified for LISTEN_NETWORK other than "tcp"`},
		{name: `tailscale`, setup: func() { tailscaleHostname, noTailscaleTLS = `skeleton`, true }},
		{name: `funnel`, setup: func() { tailscaleFunnel = true }},
		{name: `funnel without TLS`, setup: func() { tailscaleFunnel, noTailscaleTLS = true, true },
			err: `TAILSCALE_FUNNEL requires TLS, so it cannot be combined with NO_TAILSCALE_TLS`},
		{name: `funnel with listen`, setup: func() { tailscaleFunnel, tailscaleListen = true, `:8443` },
			err: `TAILSCALE_FUNNEL cannot be combined with TAILSCALE_LISTEN`},
		{name: `funnel and local`, setup: func() { tailscaleFunnel, listenNetwork = true, `tcp` },
			err: `LISTEN_NETWORK and LISTEN_ADDRESS cannot be combined with Tailscale`},
		{name: `tailscale and local`, setup: func() { tailscaleHostname, listenAddress = `skeleton`, `:8080` },
			err: `LISTEN_NETWORK and LISTEN_ADDRESS cannot be combined with Tailscale`},
	} {
		t.Run(test.name, func(t *testing.T) {
			reset()
			test.setup()
			options, err := listenOptions()
			if test.err != `` {
				assert.EqualError(t, err, test.err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, options, 1)
		})
	}
}
