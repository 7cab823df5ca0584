// Package version reports build provenance for startup logs and the health
// endpoint.
package version

import "runtime/debug"

// AppName prefixes version strings.
const AppName = "webcli"

// commitOverride is set with -ldflags for container builds where no .git
// directory is available. Empty means no override.
var commitOverride string

// Commit is the short VCS revision this binary was built from, "dev" when no
// build metadata is available (go test, non-git builds).
var Commit = resolveCommit()

// BuildDate is the commit timestamp from build metadata, empty when unknown.
var BuildDate = resolveSetting("vcs.time")

func resolveCommit() string {
	if commitOverride != "" {
		return shorten(commitOverride)
	}
	if revision := resolveSetting("vcs.revision"); revision != "" {
		return shorten(revision)
	}
	return "dev"
}

func resolveSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}

func shorten(revision string) string {
	if len(revision) > 8 {
		return revision[:8]
	}
	return revision
}

// Full returns "webcli/<commit>" for logs and user-agent strings.
func Full() string {
	return AppName + "/" + Commit
}
