// Package local listens for the dev server on a local network address.
package local

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/swdunlop/skeleton-go/skeleton/hook"
	"github.com/swdunlop/skeleton-go/skeleton/serve"
)

// Listener returns a serve.Option that adds a local listener to the server.
func Listener(options ...Option) serve.Option {
	return func(s *serve.Server) error {
		var cfg config
		for _, option := range options {
			err := option(&cfg)
			if err != nil {
				return err
			}
		}
		if cfg.network == `` || cfg.address == `` {
			return errors.New(`local listeners must configure both network and address`)
		}
		return serve.Hook(&cfg)(s)
	}
}

// An Option configures a local listener.
type Option func(*config) error

type config struct {
	network string
	address string
	lc      net.ListenConfig
}

// TCP listens on a TCP address, such as "localhost:8080".
func TCP(address string) Option {
	return Listen(`tcp`, address)
}

// Unix listens on a Unix socket.
func Unix(path string) Option {
	return Listen(`unix`, path)
}

// Listen sets the network and address of the listener.
func Listen(network, address string) Option {
	return func(cfg *config) error {
		cfg.network, cfg.address = network, address
		return nil
	}
}

// KeepAlive sets the keepalive period for accepted connections.
func KeepAlive(period time.Duration) Option {
	return func(cfg *config) error {
		cfg.lc.KeepAlive = period
		return nil
	}
}

func (cfg *config) Listen(ctx context.Context) (net.Listener, error) {
	return cfg.lc.Listen(ctx, cfg.network, cfg.address)
}

var _ hook.Listen = (*config)(nil)
