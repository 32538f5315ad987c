package serve_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdunlop/skeleton-go/skeleton/emit"
	"github.com/swdunlop/skeleton-go/skeleton/serve"
)

func site(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, `index.html`),
		[]byte(`<html><head></head><body><script src="main.bundle.js"></script></body></html>`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, `main.bundle.js`), []byte(`console.log(1)`), 0o644))
	return dir
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	rsp, err := http.Get(url)
	require.NoError(t, err)
	defer rsp.Body.Close()
	body, err := io.ReadAll(rsp.Body)
	require.NoError(t, err)
	return rsp, string(body)
}

func TestFiles(t *testing.T) {
	s, err := serve.New(site(t))
	require.NoError(t, err)
	svr := httptest.NewServer(s.Handler())
	defer svr.Close()

	rsp, body := get(t, svr.URL+`/`)
	assert.Equal(t, http.StatusOK, rsp.StatusCode)
	assert.Equal(t, `<html><head></head><body><script src="main.bundle.js"></script>`+
		`<script src="/_skeleton/reload.js"></script></body></html>`, body)

	rsp, body = get(t, svr.URL+`/main.bundle.js?abc`)
	assert.Equal(t, http.StatusOK, rsp.StatusCode)
	assert.Equal(t, `console.log(1)`, body)

	rsp, body = get(t, svr.URL+serve.ReloadPath)
	assert.Equal(t, http.StatusOK, rsp.StatusCode)
	assert.Contains(t, body, `new EventSource('/_skeleton/build')`)

	rsp, _ = get(t, svr.URL+`/missing.js`)
	assert.Equal(t, http.StatusNotFound, rsp.StatusCode)
}

type muxHook struct{}

func (muxHook) HookMux(mux *http.ServeMux) {
	mux.HandleFunc(`GET /api/ping`, func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`pong`)) })
}

func TestMuxHook(t *testing.T) {
	s, err := serve.New(site(t), serve.Hook(muxHook{}))
	require.NoError(t, err)
	svr := httptest.NewServer(s.Handler())
	defer svr.Close()
	_, body := get(t, svr.URL+`/api/ping`)
	assert.Equal(t, `pong`, body)
}

func TestBuildEvents(t *testing.T) {
	s, err := serve.New(site(t))
	require.NoError(t, err)
	svr := httptest.NewServer(s.Handler())
	defer svr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, `GET`, svr.URL+serve.EventsPath, nil)
	require.NoError(t, err)

	// the subscription may not exist yet when the first build is published
	go func() {
		m := &emit.Manifest{Hash: `abc`, Files: []*emit.File{{Path: `main.bundle.js`}}}
		for ctx.Err() == nil {
			_ = s.Published(m)
			time.Sleep(50 * time.Millisecond)
		}
	}()

	rsp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer rsp.Body.Close()
	assert.Contains(t, rsp.Header.Get(`Content-Type`), `text/event-stream`)

	var event, data string
	scanner := bufio.NewScanner(rsp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, `event:`):
			event = strings.TrimSpace(strings.TrimPrefix(line, `event:`))
		case strings.HasPrefix(line, `data:`):
			data = strings.TrimSpace(strings.TrimPrefix(line, `data:`))
		}
		if event != `` && data != `` {
			break
		}
	}
	require.Equal(t, `build`, event)
	var info serve.Build
	require.NoError(t, json.Unmarshal([]byte(data), &info))
	assert.Equal(t, serve.Build{Hash: `abc`, Files: []string{`main.bundle.js`}}, info)
}

type listener struct{ lr net.Listener }

func (l listener) Listen(context.Context) (net.Listener, error) { return l.lr, nil }

func TestServe(t *testing.T) {
	lr, err := net.Listen(`tcp`, `127.0.0.1:0`)
	require.NoError(t, err)
	s, err := serve.New(site(t), serve.Hook(listener{lr}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	require.Eventually(t, func() bool {
		rsp, err := http.Get(`http://` + lr.Addr().String() + `/main.bundle.js`)
		if err != nil {
			return false
		}
		rsp.Body.Close()
		return rsp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal(`server did not stop`)
	}
}

func TestServeListeners(t *testing.T) {
	s, err := serve.New(t.TempDir())
	require.NoError(t, err)
	assert.EqualError(t, s.Serve(context.Background()), `no listener configured`)

	s, err = serve.New(t.TempDir(), serve.Hook(listener{}, listener{}))
	require.NoError(t, err)
	assert.EqualError(t, s.Serve(context.Background()), `more than one listener configured`)
}
