// Package version holds build-time version information for why.
package version

import (
	"runtime/debug"
	"sync"
)

// These variables can be overridden at build time using ldflags:
// go build -ldflags "-X why/internal/version.Version=0.3.0 -X why/internal/version.Commit=abc123"
var (
	Version = "0.3.0"

	// Commit is the git commit hash (set at build time)
	Commit = "unknown"

	// BuildDate is the build timestamp (set at build time)
	BuildDate = "unknown"
)

var vcsOnce sync.Once

// fillFromBuildInfo falls back to the VCS stamp embedded by `go build` when
// ldflags were not used.
func fillFromBuildInfo() {
	vcsOnce.Do(func() {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if Commit == "unknown" {
					Commit = s.Value
				}
			case "vcs.time":
				if BuildDate == "unknown" {
					BuildDate = s.Value
				}
			}
		}
	})
}

// Info returns a formatted version string
func Info() string {
	fillFromBuildInfo()
	return short(Version, Commit)
}

func short(version, commit string) string {
	if commit != "unknown" && len(commit) > 7 {
		return version + " (" + commit[:7] + ")"
	}
	return version
}

// Full returns complete version information
func Full() string {
	fillFromBuildInfo()
	return "why version " + Version + "\n" +
		"Commit: " + Commit + "\n" +
		"Built: " + BuildDate
}
