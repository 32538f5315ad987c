package skeleton

// A Profile names one of the three build configurations.
type Profile string

const (
	Production  Profile = `production`
	Testing     Profile = `testing`
	Development Profile = `development`
)

// Select maps a SKELETON_ENV value to a profile.  Anything that is not a production or testing alias, including the
// empty string, selects Development.
func Select(env string) Profile {
	switch env {
	case `prod`, `production`:
		return Production
	case `test`, `testing`:
		return Testing
	default:
		return Development
	}
}

// AdditionalPlugins returns the plugins a profile adds after the base plugins.  Only production adds any.
func AdditionalPlugins(profile Profile) []Plugin {
	if profile != Production {
		return []Plugin{}
	}
	return []Plugin{
		MD5Hash{},
		Dedupe{},
		Uglify{
			Beautify: false,
			Mangle:   Mangle{ScrewIE8: true, KeepFnames: true},
			Compress: Compress{ScrewIE8: true},
			Comments: false,
		},
		Compression{
			RegExp:    compressible,
			Threshold: 2 * 1024,
		},
		OccurrenceOrder{PreferEntry: true},
		CommonsChunk{
			Names:     []string{`vendor`},
			MinChunks: Infinity,
		},
	}
}

func basePlugins() []Plugin {
	return []Plugin{
		HTML{
			Template: `src/index.html`,
			Hash:     true,
			Inject:   true,
			Chunks:   []string{`polyfills`, `vendor`, `main`},
		},
		ExtractText{Filename: `[name].css`},
		Copy{Patterns: []CopyPattern{{From: `src/index.html`, To: `index.html`}}},
	}
}
