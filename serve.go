package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	zlog "github.com/rs/zerolog/log"
	"github.com/swdunlop/skeleton-go/skeleton/emit"
	"github.com/swdunlop/skeleton-go/skeleton/local"
	"github.com/swdunlop/skeleton-go/skeleton/serve"
	"github.com/swdunlop/skeleton-go/skeleton/tailscale"
	"github.com/swdunlop/zugzug-go"
	"github.com/swdunlop/zugzug-go/zug/parser"
	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"
)

func init() {
	tasks = append(tasks, zugzug.Tasks{
		{Name: "serve", Use: "Watches the project and serves its output, reloading pages after each build", Fn: runServe, Parser: parser.New(
			parser.String(&skeletonEnv, "env", "e", "The profile to use, overriding SKELETON_ENV"),
			parser.String(&skeletonRoot, "root", "r", "The project directory, overriding SKELETON_ROOT"),
		), Settings: append(serveSettings, projectSettings...)},
	}...)
}

var serveSettings = zugzug.Settings{
	{Var: &listenNetwork, Name: `LISTEN_NETWORK`,
		Use: "Listening network for the address (default: \"tcp\" if Tailscale not used)"},
	{Var: &listenAddress, Name: `LISTEN_ADDRESS`,
		Use: "Listening address for the server (default: localhost:8080 if TCP used)"},

	{Var: &tailscaleHostname, Name: `TAILSCALE_HOSTNAME`,
		Use: "Serves on your Tailscale network with this hostname"},
	{Var: &tailscaleFunnel, Name: `TAILSCALE_FUNNEL`,
		Use: "Enables internet access via a Tailscale funnel"},
	{Var: &tailscaleListen, Name: `TAILSCALE_LISTEN`,
		Use: "Listening address for clients from your Tailscale network (default: \":443\" or \":80\")"},
	{Var: &tailscaleDir, Name: `TAILSCALE_DIR`,
		Use: "State directory for Tailscale"},
	{Var: &noTailscaleTLS, Name: `NO_TAILSCALE_TLS`,
		Use: "Disables TLS for Tailscale"},
}

var (
	listenNetwork string
	listenAddress string

	tailscaleFunnel   bool
	tailscaleHostname string
	tailscaleListen   string
	tailscaleDir      string
	noTailscaleTLS    bool
)

func runServe(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	options, err := listenOptions()
	if err != nil {
		return err
	}
	p, err := openProject()
	if err != nil {
		return err
	}
	defer p.Close()
	if p.cfg.Output.Empty() {
		return fmt.Errorf(`the %v profile does not write any files to serve`, p.cfg.Profile)
	}
	svr, err := serve.New(p.cfg.Output.Path, options...)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- svr.Serve(ctx) }()

	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		err := p.watch(ctx, func(m *emit.Manifest, err error) {
			if err != nil {
				err = svr.Failed(err)
			} else {
				err = svr.Published(m)
			}
			if err != nil {
				zlog.Warn().Err(err).Msg(`publishing build event`)
			}
		})
		if err != nil {
			zlog.Error().Err(err).Msg(`watch failed`)
		}
	}()
	err = <-errCh
	cancel()
	<-watchDone
	return err
}

// listenOptions chooses between a Tailscale and a local listener.
func listenOptions() ([]serve.Option, error) {
	useTailscale := tailscaleFunnel || tailscaleHostname != `` || tailscaleListen != ``
	if useTailscale {
		if listenNetwork != `` || listenAddress != `` {
			return nil, errors.New(`LISTEN_NETWORK and LISTEN_ADDRESS cannot be combined with Tailscale`)
		}
		var options []tailscale.Option
		if tailscaleFunnel {
			if noTailscaleTLS {
				return nil, errors.New(`TAILSCALE_FUNNEL requires TLS, so it cannot be combined with NO_TAILSCALE_TLS`)
			}
			if tailscaleListen != `` {
				return nil, errors.New(`TAILSCALE_FUNNEL cannot be combined with TAILSCALE_LISTEN`)
			}
			options = append(options, tailscale.Funnel())
		}
		if tailscaleHostname != `` {
			options = append(options, tailscale.Hostname(tailscaleHostname))
		}
		if tailscaleDir != `` {
			options = append(options, tailscale.Dir(tailscaleDir))
		}
		if noTailscaleTLS {
			options = append(options, tailscale.NoTLS())
		}
		options = append(options,
			tailscale.Logf(func(format string, args ...any) { zlog.Trace().Msgf(format, args...) }),
			tailscale.HookUp(func(_ *tsnet.Server, status *ipnstate.Status) error {
				if status.Self != nil {
					zlog.Info().Str(`name`, status.Self.DNSName).Msg(`connected to Tailscale`)
				}
				return nil
			}),
		)
		return []serve.Option{tailscale.Listener(tailscaleListen, options...)}, nil
	}

	network, address := listenNetwork, listenAddress
	if network == `` {
		network = `tcp`
	}
	if address == `` {
		if network != `tcp` {
			return nil, fmt.Errorf(`LISTEN_ADDRESS must be specified for LISTEN_NETWORK other than "tcp"`)
		}
		address = `localhost:8080`
	}
	return []serve.Option{local.Listener(local.Listen(network, address))}, nil
}
