package tailscale_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdunlop/skeleton-go/skeleton/local"
	"github.com/swdunlop/skeleton-go/skeleton/serve"
	"github.com/swdunlop/skeleton-go/skeleton/tailscale"
)

func TestListenerIsAHook(t *testing.T) {
	s, err := serve.New(t.TempDir(),
		tailscale.Listener(``, tailscale.Hostname(`skeleton`), tailscale.Dir(t.TempDir()), tailscale.NoTLS()),
		local.Listener(local.TCP(`localhost:0`)),
	)
	require.NoError(t, err)
	// both options registered a listener, so the server refuses to pick one without contacting Tailscale
	assert.EqualError(t, s.Serve(context.Background()), `more than one listener configured`)
}

func TestFunnelRequiresTLS(t *testing.T) {
	_, err := serve.New(t.TempDir(), tailscale.Listener(``, tailscale.Funnel(), tailscale.NoTLS()))
	assert.EqualError(t, err, `funnels are required to use TLS by Tailscale`)

	_, err = serve.New(t.TempDir(), tailscale.Listener(``, tailscale.Hostname(`skeleton`), tailscale.Funnel()))
	assert.NoError(t, err)
}
