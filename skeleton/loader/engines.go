package loader

import (
	"fmt"
	"regexp"
	"strconv"

	esbuild "github.com/evanw/esbuild/pkg/api"
	"github.com/swdunlop/skeleton-go/skeleton"
)

// Current major versions used to resolve "last N versions" queries.
var currentEngines = []struct {
	name    esbuild.EngineName
	version int
}{
	{esbuild.EngineChrome, 130},
	{esbuild.EngineEdge, 130},
	{esbuild.EngineFirefox, 132},
	{esbuild.EngineSafari, 18},
	{esbuild.EngineIOS, 18},
	{esbuild.EngineOpera, 114},
}

var lastVersions = regexp.MustCompile(`^last (\d+) versions?$`)

// EnginesFor returns the esbuild engines for the Autoprefixer browsers in the processors.  esbuild adds the vendor
// prefixes the oldest engine needs.  Only "last N versions" queries are understood.
func EnginesFor(processors []skeleton.Processor) ([]esbuild.Engine, error) {
	oldest := 0
	for _, it := range processors {
		prefixer, ok := it.(skeleton.Autoprefixer)
		if !ok {
			continue
		}
		for _, query := range prefixer.Browsers {
			m := lastVersions.FindStringSubmatch(query)
			if m == nil {
				return nil, fmt.Errorf(`unsupported browsers query %q`, query)
			}
			n, _ := strconv.Atoi(m[1])
			if n < 1 {
				return nil, fmt.Errorf(`unsupported browsers query %q`, query)
			}
			oldest = max(oldest, n)
		}
	}
	if oldest == 0 {
		return nil, nil
	}
	engines := make([]esbuild.Engine, len(currentEngines))
	for i, it := range currentEngines {
		engines[i] = esbuild.Engine{Name: it.name, Version: strconv.Itoa(it.version - oldest + 1)}
	}
	return engines, nil
}
