package telemetry

import "strings"

var ignoredPaths = []string{"/metrics", "/health", "/favicon.ico"}

// IgnoredPaths returns the request path prefixes excluded from tracing.
func IgnoredPaths() []string {
	out := make([]string, len(ignoredPaths))
	copy(out, ignoredPaths)
	return out
}

// ShouldIgnore reports whether a request path is self-monitoring noise that
// should not produce spans: anything under /metrics, /health or /favicon.ico.
func ShouldIgnore(path string) bool {
	return hasAnyPrefix(path, ignoredPaths)
}

func hasAnyPrefix(path string, prefixes []string) bool {
	if path == "" {
		return false
	}
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
