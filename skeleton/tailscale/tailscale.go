// Package tailscale publishes the dev server on a Tailscale network using tsnet, so it can be reached from other
// devices without exposing it to the local network.
package tailscale

import (
	"context"
	"errors"
	"net"

	"github.com/swdunlop/skeleton-go/skeleton/hook"
	"github.com/swdunlop/skeleton-go/skeleton/serve"
	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"
)

// Listener returns a serve.Option that listens at address on the tailnet.  If address is empty, ":443" is used, or
// ":80" without TLS.
func Listener(address string, options ...Option) serve.Option {
	return func(s *serve.Server) error {
		cfg := &config{listen: address}
		for _, option := range options {
			err := option(cfg)
			if err != nil {
				return err
			}
		}
		if cfg.funnel && cfg.noTLS {
			return errors.New(`funnels are required to use TLS by Tailscale`)
		}
		if cfg.listen == `` {
			cfg.listen = `:443`
			if cfg.noTLS {
				cfg.listen = `:80`
			}
		}
		return serve.Hook(cfg)(s)
	}
}

type config struct {
	tsnet   tsnet.Server
	funnel  bool
	noTLS   bool
	upHooks []func(*tsnet.Server, *ipnstate.Status) error
	listen  string
}

func (cfg *config) Listen(ctx context.Context) (net.Listener, error) {
	status, err := cfg.tsnet.Up(ctx)
	if err != nil {
		return nil, err
	}
	for _, fn := range cfg.upHooks {
		err = fn(&cfg.tsnet, status)
		if err != nil {
			_ = cfg.tsnet.Close()
			return nil, err
		}
	}
	switch {
	case cfg.funnel:
		return cfg.tsnet.ListenFunnel(`tcp`, cfg.listen)
	case cfg.noTLS:
		return cfg.tsnet.Listen(`tcp`, cfg.listen)
	default:
		return cfg.tsnet.ListenTLS(`tcp`, cfg.listen)
	}
}

var _ hook.Listen = (*config)(nil)

// An Option configures the Tailscale node.
type Option func(*config) error

// Dir sets the Tailscale state directory.
func Dir(dir string) Option {
	return func(cfg *config) error {
		cfg.tsnet.Dir = dir
		return nil
	}
}

// Hostname sets the name of the node on the tailnet.
func Hostname(hostname string) Option {
	return func(cfg *config) error {
		cfg.tsnet.Hostname = hostname
		return nil
	}
}

// Funnel lets clients on the public internet reach the server through Tailscale Funnel.  Funnel requires TLS.
func Funnel() Option {
	return func(cfg *config) error {
		cfg.funnel = true
		return nil
	}
}

// NoTLS serves plain HTTP on the tailnet.  This is incompatible with Funnel.
func NoTLS() Option {
	return func(cfg *config) error {
		cfg.noTLS = true
		return nil
	}
}

// Logf sets the logging function for tsnet, which is very chatty.
func Logf(f func(format string, args ...any)) Option {
	return func(cfg *config) error {
		cfg.tsnet.Logf = f
		return nil
	}
}

// HookUp adds a function called once the node is connected and authorized, such as to report its address.  If the
// function fails, the node is closed.
func HookUp(fn func(*tsnet.Server, *ipnstate.Status) error) Option {
	return func(cfg *config) error {
		cfg.upHooks = append(cfg.upHooks, fn)
		return nil
	}
}
