// Package serve serves the output of a build over HTTP while the project is being developed.  Browsers can observe
// rebuilds by subscribing to server sent events at /_skeleton/build; pages served by the server load a small script
// that does this and reloads the page after each successful build.
package serve

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/swdunlop/html-go/hog"
	"github.com/swdunlop/skeleton-go/skeleton/emit"
	"github.com/swdunlop/skeleton-go/skeleton/hook"
	"github.com/tmaxmax/go-sse"
)

// EventsPath is where clients subscribe to build events.
const EventsPath = `/_skeleton/build`

// ReloadPath serves the script injected into HTML pages.
const ReloadPath = `/_skeleton/reload.js`

// New returns a server for the files in dir.
func New(dir string, options ...Option) (*Server, error) {
	s := &Server{dir: dir}
	for _, option := range options {
		err := option(s)
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// An Option is a function that modifies a Server before it is started.
type Option func(*Server) error

// Hook returns an Option that adds hooks to the server, see the hook package for the interfaces it recognizes.
func Hook(hooks ...any) Option {
	return func(s *Server) error {
		s.hooks = append(s.hooks, hooks...)
		return nil
	}
}

// A Server serves build output and publishes build events.
type Server struct {
	dir    string
	hooks  []any
	events sse.Server
}

// A Build is the payload of a build event.
type Build struct {
	Hash  string   `json:"hash,omitempty"`
	Files []string `json:"files,omitempty"`
	Error string   `json:"error,omitempty"`
}

// Published tells subscribers that a build has been emitted.
func (s *Server) Published(m *emit.Manifest) error {
	return s.publish(`build`, Build{Hash: m.Hash, Files: m.Paths()})
}

// Failed tells subscribers that a build failed.  Pages are not reloaded.
func (s *Server) Failed(err error) error {
	return s.publish(`failed`, Build{Error: err.Error()})
}

func (s *Server) publish(kind string, info Build) error {
	js, err := json.Marshal(info)
	if err != nil {
		return err
	}
	msg := &sse.Message{Type: sse.Type(kind)}
	msg.AppendData(string(js))
	return s.events.Publish(msg)
}

// Handler returns the HTTP handler for the server, including handlers added by Mux hooks.
func (s *Server) Handler() http.Handler {
	var mux http.ServeMux
	mux.Handle(`GET `+EventsPath, &s.events)
	mux.HandleFunc(`GET `+ReloadPath, serveReload)
	mux.Handle(`GET /`, &files{dir: s.dir, next: http.FileServer(http.Dir(s.dir))})
	for _, it := range s.hooks {
		if impl, ok := it.(hook.Mux); ok {
			impl.HookMux(&mux)
		}
	}
	return &mux
}

// Serve runs the server on the listener provided by its hooks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	var listen hook.Listen
	for _, it := range s.hooks {
		if impl, ok := it.(hook.Listen); ok {
			if listen != nil {
				return errors.New(`more than one listener configured`)
			}
			listen = impl
		}
	}
	if listen == nil {
		return errors.New(`no listener configured`)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var svr http.Server
	svr.Handler = s.Handler()
	svr.RegisterOnShutdown(func() { _ = s.events.Shutdown(context.Background()) })
	for _, it := range s.hooks {
		if impl, ok := it.(hook.Server); ok {
			impl.HookServer(&svr)
		}
	}

	lr, err := listen.Listen(ctx)
	if err != nil {
		return err
	}
	// no need to defer lr.Close, svr.Shutdown will close it

	go func() {
		<-ctx.Done()
		svr.Shutdown(context.Background())
	}()

	ctx = hog.With(ctx, func(z zerolog.Context) zerolog.Context {
		return z.Str(`address`, lr.Addr().String()).Str(`dir`, s.dir)
	})
	hog.From(ctx).Info().Msg(`starting HTTP service`)
	err = svr.Serve(lr)
	hog.From(ctx).Info().Err(err).Msg(`HTTP service stopped`)
	if err == http.ErrServerClosed {
		return nil
	}
	_ = lr.Close()
	return err
}

// files serves the output directory, adding the reload script to HTML pages.
type files struct {
	dir  string
	next http.Handler
}

func (h *files) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := path.Clean(`/` + r.URL.Path)
	if strings.HasSuffix(r.URL.Path, `/`) {
		name = path.Join(name, `index.html`)
	}
	if path.Ext(name) != `.html` {
		h.next.ServeHTTP(w, r)
		return
	}
	page, err := os.ReadFile(filepath.Join(h.dir, filepath.FromSlash(name)))
	if err != nil {
		h.next.ServeHTTP(w, r)
		return
	}
	page = injectReload(page)
	w.Header().Set(`Content-Type`, `text/html; charset=utf-8`)
	w.Header().Set(`Cache-Control`, `no-cache`)
	_, err = w.Write(page)
	if err != nil {
		hog.For(r).Debug().Err(err).Str(`page`, name).Msg(`writing page failed`)
	}
}

var reloadTag = []byte(`<script src="` + ReloadPath + `"></script>`)

func injectReload(page []byte) []byte {
	i := bytes.LastIndex(page, []byte(`</body>`))
	if i < 0 {
		return append(page, reloadTag...)
	}
	out := make([]byte, 0, len(page)+len(reloadTag))
	out = append(out, page[:i]...)
	out = append(out, reloadTag...)
	return append(out, page[i:]...)
}

const reloadScript = `(function () {
  var events = new EventSource('` + EventsPath + `');
  events.addEventListener('build', function () { window.location.reload(); });
  events.addEventListener('failed', function (evt) { console.error('build failed', JSON.parse(evt.data).error); });
})();
`

func serveReload(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(`Content-Type`, `text/javascript; charset=utf-8`)
	w.Header().Set(`Cache-Control`, `no-cache`)
	_, _ = w.Write([]byte(reloadScript))
}
