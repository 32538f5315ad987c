// Package hook defines the interfaces recognized by the dev server's Hook method, and orders hooks such as emit steps
// so that every hook runs after the hooks that provide what it depends on.
package hook

import (
	"context"
	"net"
	"net/http"
	"sort"
)

// Listen hooks supply the listener for the dev server.
type Listen interface {
	Listen(ctx context.Context) (net.Listener, error)
}

// Server hooks are called when the dev server is setting up its HTTP server.
type Server interface {
	HookServer(*http.Server)
}

// Mux hooks add handlers to the dev server.
type Mux interface {
	HookMux(*http.ServeMux)
}

// A Provider provides names that a Dependent can refer to.
type Provider interface {
	Provides() []string
}

// A Dependent is ordered after every hook providing one of its dependencies.
type Dependent interface {
	DependsOn() []string
}

// Order returns the hooks with each Dependent moved after its providers.  Otherwise the original order is kept as far
// as possible.  Dependencies that nothing provides are ignored, and cycles are broken rather than reported.
func Order[T any](hooks ...T) []T {
	providers := make(map[string][]int, len(hooks))
	for i, hook := range hooks {
		if p, ok := any(hook).(Provider); ok {
			for _, name := range p.Provides() {
				providers[name] = append(providers[name], i)
			}
		}
	}
	order := make([]T, 0, len(hooks))
	placed := make([]bool, len(hooks))
	var place func(int)
	place = func(i int) {
		if placed[i] {
			return
		}
		placed[i] = true
		if d, ok := any(hooks[i]).(Dependent); ok {
			var deps []int
			for _, name := range d.DependsOn() {
				deps = append(deps, providers[name]...)
			}
			sort.Ints(deps)
			for _, j := range deps {
				place(j)
			}
		}
		order = append(order, hooks[i])
	}
	for i := range hooks {
		place(i)
	}
	return order
}
